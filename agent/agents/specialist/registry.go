package specialist

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
	licensex "github.com/tanpawarit/chative-bank-onboarding/agent/license"
	llmx "github.com/tanpawarit/chative-bank-onboarding/agent/llm"
	promptx "github.com/tanpawarit/chative-bank-onboarding/agent/prompt"
	openrouterx "github.com/tanpawarit/chative-bank-onboarding/pkg/openrouter"
)

type registryImpl struct {
	classifier contractx.IntentClassifier
	extractor  contractx.LicenseExtractor
}

func (r *registryImpl) Classifier() contractx.IntentClassifier {
	return r.classifier
}

func (r *registryImpl) Extractor() contractx.LicenseExtractor {
	return r.extractor
}

func NewRegistry(ctx context.Context, cfg llmx.Config, defaults licensex.Defaults) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()

	classifierModelCfg := cfg.OpenRouterFor(contractx.AgentTypeClassifier)
	classifierModel, err := classifierModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create classifier model: %v", contractx.ErrModelInvoke, err)
	}
	classifier, err := newClassifier(ctx, classifierModel, prompts.Classifier)
	if err != nil {
		return nil, err
	}

	extractorModelCfg := cfg.OpenRouterFor(contractx.AgentTypeExtractor)
	client := openrouterx.NewClient(extractorModelCfg)
	if client == nil {
		return nil, fmt.Errorf("%w: extractor client requires an api key", contractx.ErrValidation)
	}
	extractor, err := licensex.NewExtractor(client, licensex.Config{
		Model:               extractorModelCfg.Model,
		Temperature:         extractorModelCfg.Temperature,
		MaxCompletionTokens: *extractorModelCfg.MaxCompletionToken,
		SystemPrompt:        prompts.Extractor,
		Defaults:            defaults,
	})
	if err != nil {
		return nil, err
	}

	return &registryImpl{
		classifier: classifier,
		extractor:  extractor,
	}, nil
}

package specialist

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
)

type classifierImpl struct {
	runner compose.Runnable[map[string]any, contractx.IntentResult]
}

var _ contractx.IntentClassifier = (*classifierImpl)(nil)

func newClassifier(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*classifierImpl, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: classifier", contractx.ErrPromptMissing)
	}
	runner, err := compileClassifierGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile classifier graph: %v", contractx.ErrModelInvoke, err)
	}
	return &classifierImpl{runner: runner}, nil
}

// Classify maps free text to one intent. Any provider or contract failure is reported as
// ErrClassificationUnavailable; the caller decides the fallback reply.
func (c *classifierImpl) Classify(ctx context.Context, text string) (contractx.IntentResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return contractx.IntentResult{}, fmt.Errorf("%w: text is required", contractx.ErrValidation)
	}

	out, err := c.runner.Invoke(ctx, map[string]any{
		"input": text,
	})
	if err != nil {
		return contractx.IntentResult{}, fmt.Errorf("%w: %v", contractx.ErrClassificationUnavailable, err)
	}

	out.Reasoning = strings.TrimSpace(out.Reasoning)
	if !out.Intent.Valid() {
		return contractx.IntentResult{}, fmt.Errorf("%w: %w: intent=%q", contractx.ErrClassificationUnavailable, contractx.ErrSchemaViolation, out.Intent)
	}
	return out, nil
}

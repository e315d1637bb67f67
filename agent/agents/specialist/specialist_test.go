package specialist

import (
	"context"
	"errors"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
	llmx "github.com/tanpawarit/chative-bank-onboarding/agent/llm"
)

type fakeToolCallingModel struct {
	responses []*schema.Message
	err       error
	idx       int
	inputs    [][]*schema.Message
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

func TestClassifierClassifySuccess(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{
			{Content: "```json\n{\"intent\":\"open_account\",\"reasoning\":\"用户明确要求开户\"}\n```"},
		},
	}

	classifier, err := newClassifier(context.Background(), fake, `只输出 {"intent": "..."}`)
	if err != nil {
		t.Fatalf("newClassifier() error = %v", err)
	}

	out, err := classifier.Classify(context.Background(), "我要开户")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if out.Intent != contractx.IntentOpenAccount {
		t.Fatalf("unexpected intent: %s", out.Intent)
	}
	if out.Reasoning != "用户明确要求开户" {
		t.Fatalf("unexpected reasoning: %s", out.Reasoning)
	}

	if len(fake.inputs) != 1 || len(fake.inputs[0]) != 2 {
		t.Fatalf("expected one call with system and user messages, got %#v", fake.inputs)
	}
	if fake.inputs[0][1].Content != "我要开户" {
		t.Fatalf("unexpected user message: %q", fake.inputs[0][1].Content)
	}
	if !strings.Contains(fake.inputs[0][0].Content, `{"intent"`) {
		t.Fatalf("system prompt was altered: %q", fake.inputs[0][0].Content)
	}
}

func TestClassifierSchemaFailureIsUnavailable(t *testing.T) {
	t.Parallel()

	replies := []string{
		`{"intent":"transfer","reasoning":"x"}`,
		`好的，我来帮您开户`,
		`{"intent":"open_account","extra":true}`,
	}
	for _, reply := range replies {
		fake := &fakeToolCallingModel{responses: []*schema.Message{{Content: reply}}}
		classifier, err := newClassifier(context.Background(), fake, "prompt")
		if err != nil {
			t.Fatalf("newClassifier() error = %v", err)
		}

		_, err = classifier.Classify(context.Background(), "hello")
		if !errors.Is(err, contractx.ErrClassificationUnavailable) {
			t.Fatalf("Classify(%q) error = %v, want ErrClassificationUnavailable", reply, err)
		}
	}
}

func TestClassifierProviderFailureIsUnavailable(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{err: errors.New("provider down")}
	classifier, err := newClassifier(context.Background(), fake, "prompt")
	if err != nil {
		t.Fatalf("newClassifier() error = %v", err)
	}

	_, err = classifier.Classify(context.Background(), "我要销户")
	if !errors.Is(err, contractx.ErrClassificationUnavailable) {
		t.Fatalf("Classify() error = %v, want ErrClassificationUnavailable", err)
	}
}

func TestClassifierRejectsEmptyText(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{}
	classifier, err := newClassifier(context.Background(), fake, "prompt")
	if err != nil {
		t.Fatalf("newClassifier() error = %v", err)
	}
	if _, err := classifier.Classify(context.Background(), "  "); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Classify() error = %v, want ErrValidation", err)
	}
	if len(fake.inputs) != 0 {
		t.Fatal("model must not be called for empty text")
	}
}

func TestNewClassifierRequiresPrompt(t *testing.T) {
	t.Parallel()

	if _, err := newClassifier(context.Background(), &fakeToolCallingModel{}, " "); !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("newClassifier() error = %v, want ErrPromptMissing", err)
	}
}

func TestNewRegistryValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(context.Background(), llmx.Config{Model: "m"}, nil)
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("NewRegistry() error = %v, want ErrValidation", err)
	}
}

func TestNewRegistryBuildsAgents(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(context.Background(), llmx.Config{
		BaseURL:              "https://openrouter.ai/api/v1",
		APIKey:               "k",
		Model:                "openai/gpt-4o-mini",
		ExtractorModel:       "openai/gpt-4o",
		MaxCompletionToken:   512,
		ExtractorTemperature: -1,
	}, nil)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if reg.Classifier() == nil || reg.Extractor() == nil {
		t.Fatal("registry must expose classifier and extractor")
	}
}

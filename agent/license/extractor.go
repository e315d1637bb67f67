package license

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
)

const defaultHint = "请解析以下营业执照图片，按要求输出JSON。"

type completer interface {
	New(ctx context.Context, body openaisdk.ChatCompletionNewParams, opts ...option.RequestOption) (*openaisdk.ChatCompletion, error)
}

type Config struct {
	Model               string
	Temperature         float32
	MaxCompletionTokens int
	SystemPrompt        string
	Defaults            Defaults
}

// Extractor reads business-license images with a vision model and returns a complete
// LicenseRecord.
type Extractor struct {
	completions completer
	cfg         Config
}

var _ contractx.LicenseExtractor = (*Extractor)(nil)

func NewExtractor(client *openaisdk.Client, cfg Config) (*Extractor, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	return newExtractor(&client.Chat.Completions, cfg)
}

func newExtractor(c completer, cfg Config) (*Extractor, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("%w: extractor model is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		return nil, fmt.Errorf("%w: extractor", contractx.ErrPromptMissing)
	}
	if cfg.Defaults == nil {
		cfg.Defaults = BuiltinDefaults()
	}
	return &Extractor{completions: c, cfg: cfg}, nil
}

func (e *Extractor) Extract(ctx context.Context, images [][]byte, hint string) (contractx.LicenseRecord, error) {
	if len(images) == 0 {
		return contractx.LicenseRecord{}, contractx.ErrNoImages
	}

	reply, err := e.complete(ctx, images, hint)
	if err != nil {
		return contractx.LicenseRecord{}, err
	}

	record, err := ParseReply(reply)
	if err != nil {
		log.Debug().Str("reply", reply).Err(err).Msg("license extraction reply rejected")
		return contractx.LicenseRecord{}, err
	}
	return Complete(record, e.cfg.Defaults)
}

func (e *Extractor) complete(ctx context.Context, images [][]byte, hint string) (string, error) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		hint = defaultHint
	}

	parts := make([]openaisdk.ChatCompletionContentPartUnionParam, 0, len(images)+1)
	parts = append(parts, openaisdk.TextContentPart(hint))
	for _, img := range images {
		parts = append(parts, openaisdk.ImageContentPart(openaisdk.ChatCompletionContentPartImageImageURLParam{
			URL: dataURI(img),
		}))
	}

	params := openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(e.cfg.Model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(e.cfg.SystemPrompt),
			openaisdk.UserMessage(parts),
		},
		Temperature: openaisdk.Float(float64(e.cfg.Temperature)),
	}
	if e.cfg.MaxCompletionTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(e.cfg.MaxCompletionTokens))
	}

	resp, err := e.completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: vision completion: %v", contractx.ErrModelInvoke, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: vision completion returned no choices", contractx.ErrUnparsableExtraction)
	}
	return resp.Choices[0].Message.Content, nil
}

// ParseReply recovers the license object from a model reply. Fields are copied as-is;
// no defaults or normalization are applied.
func ParseReply(reply string) (contractx.LicenseRecord, error) {
	doc, ok := contractx.ExtractJSONObject(reply)
	if !ok {
		return contractx.LicenseRecord{}, fmt.Errorf("%w: no json object in reply", contractx.ErrUnparsableExtraction)
	}
	if err := contractx.LicenseContract.Validate(doc); err != nil {
		return contractx.LicenseRecord{}, fmt.Errorf("%w: %v", contractx.ErrUnparsableExtraction, err)
	}

	raw := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return contractx.LicenseRecord{}, fmt.Errorf("%w: %v", contractx.ErrUnparsableExtraction, err)
	}

	var record contractx.LicenseRecord
	for name, v := range raw {
		var s string
		switch val := v.(type) {
		case nil:
			continue
		case string:
			s = val
		case json.Number:
			s = val.String()
		default:
			return contractx.LicenseRecord{}, fmt.Errorf("%w: field %s has type %T", contractx.ErrUnparsableExtraction, name, v)
		}
		if err := record.Set(name, s); err != nil {
			return contractx.LicenseRecord{}, fmt.Errorf("%w: %v", contractx.ErrUnparsableExtraction, err)
		}
	}
	return record, nil
}

// Complete derives alias fields, normalizes registered capital and fills defaults. The
// result satisfies the completeness invariant or an error is returned.
func Complete(record contractx.LicenseRecord, defaults Defaults) (contractx.LicenseRecord, error) {
	record.TrimSpace()
	record.AcctNo = ""
	record.USCC = contractx.NormalizeRegistrationID(record.USCC)
	record.AcctFileNo1 = contractx.NormalizeRegistrationID(record.AcctFileNo1)
	record.FileNo1 = contractx.NormalizeRegistrationID(record.FileNo1)
	deriveAliases(&record)

	if record.RegisteredCapital == "" {
		return contractx.LicenseRecord{}, fmt.Errorf("%w: %w: registeredCapital is missing", contractx.ErrMalformedField, contractx.ErrIncompleteRecord)
	}
	capital, err := NormalizeCapital(record.RegisteredCapital)
	if err != nil {
		return contractx.LicenseRecord{}, err
	}
	record.RegisteredCapital = capital

	defaults.Apply(&record)

	if missing := record.MissingFields(); len(missing) > 0 {
		return contractx.LicenseRecord{}, fmt.Errorf("%w: %w: missing %s",
			contractx.ErrMalformedField, contractx.ErrIncompleteRecord, strings.Join(missing, ", "))
	}
	return record, nil
}

func deriveAliases(r *contractx.LicenseRecord) {
	if r.AcctName == "" {
		r.AcctName = r.DepositorName
	}
	if r.DepositorName == "" {
		r.DepositorName = r.AcctName
	}
	if r.USCC == "" {
		r.USCC = firstNonEmpty(r.AcctFileNo1, r.FileNo1)
	}
	if r.AcctFileNo1 == "" {
		r.AcctFileNo1 = r.USCC
	}
	if r.FileNo1 == "" {
		r.FileNo1 = r.USCC
	}
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}

func dataURI(img []byte) string {
	mime := http.DetectContentType(img)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img)
}

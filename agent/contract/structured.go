package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Contract is a JSON schema a model reply must satisfy before any field is read.
type Contract struct {
	name   string
	schema *gojsonschema.Schema
}

func NewContract(name string, schema map[string]any) (*Contract, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return &Contract{name: name, schema: compiled}, nil
}

func MustContract(name string, schema map[string]any) *Contract {
	c, err := NewContract(name, schema)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Contract) Name() string {
	return c.name
}

// Validate checks a JSON document against the contract.
func (c *Contract) Validate(doc []byte) error {
	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSchemaViolation, c.name, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s: %s", ErrSchemaViolation, c.name, strings.Join(errs, "; "))
	}
	return nil
}

// Decode recovers the JSON object from a model reply, validates it and unmarshals into out.
func (c *Contract) Decode(reply string, out any) error {
	doc, ok := ExtractJSONObject(reply)
	if !ok {
		return fmt.Errorf("%w: %s: no json object in reply", ErrSchemaViolation, c.name)
	}
	if err := c.Validate(doc); err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSchemaViolation, c.name, err)
	}
	return nil
}

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSONObject returns the JSON object carried by a model reply. It accepts a bare
// object, the first fenced block, or the outermost brace span, in that order.
func ExtractJSONObject(reply string) ([]byte, bool) {
	text := strings.TrimSpace(reply)
	if text == "" {
		return nil, false
	}

	if strings.HasPrefix(text, "{") && json.Valid([]byte(text)) {
		return []byte(text), true
	}

	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		if json.Valid([]byte(m[1])) {
			return []byte(m[1]), true
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return []byte(candidate), true
		}
	}
	return nil, false
}

// IntentContract constrains classifier replies to the closed intent enumeration.
var IntentContract = MustContract("intent", map[string]any{
	"type":     "object",
	"required": []any{"intent"},
	"properties": map[string]any{
		"intent": map[string]any{
			"type": "string",
			"enum": intentEnum(),
		},
		"reasoning": map[string]any{"type": "string"},
	},
	"additionalProperties": false,
})

// LicenseContract constrains extractor replies to the AMS field set. Every field is
// optional here; completeness is enforced after defaults are applied.
var LicenseContract = MustContract("license", licenseSchema())

func intentEnum() []any {
	out := make([]any, 0, len(Intents))
	for _, i := range Intents {
		out = append(out, string(i))
	}
	return out
}

func licenseSchema() map[string]any {
	props := make(map[string]any, len(recordFields))
	for _, f := range recordFields {
		props[f.name] = map[string]any{"type": []any{"string", "null"}}
	}
	props["registeredCapital"] = map[string]any{"type": []any{"string", "number", "null"}}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
}

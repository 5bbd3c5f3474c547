package validation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"pulse-reports/internal/models"
)

//go:embed schemas/envelope_schema.json
var envelopeSchemaJSON string

// EnvelopeValidator validates and parses LLM responses against the report
// envelope shape. A response failing validation is a hard failure for the
// attempt; there is no default envelope to fall back to.
type EnvelopeValidator struct {
	schema *gojsonschema.Schema
}

// NewEnvelopeValidator compiles the envelope schema
func NewEnvelopeValidator() (*EnvelopeValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(envelopeSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to compile envelope schema: %w", err)
	}
	return &EnvelopeValidator{schema: schema}, nil
}

// StripMarkdownFences removes a surrounding markdown code fence from an LLM
// response. Models sometimes wrap JSON in ```json fences despite
// instructions not to.
func StripMarkdownFences(response string) string {
	trimmed := strings.TrimSpace(response)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	return trimmed
}

// Parse validates an LLM response and decodes it into an envelope
func (v *EnvelopeValidator) Parse(response string) (*models.Envelope, error) {
	cleaned := StripMarkdownFences(response)

	result, err := v.schema.Validate(gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, fmt.Errorf("response does not match envelope schema: %s", strings.Join(problems, "; "))
	}

	var envelope models.Envelope
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return &envelope, nil
}

package agents

import (
	"context"
	"fmt"

	"pulse-reports/internal/metrics"
	"pulse-reports/internal/models"
	"pulse-reports/internal/validation"
)

// LLMClient is the text completion interface agents generate through
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Agent is the per-report-type contract. GatherContext always returns a
// context map; fetch or derivation problems are recorded inside it rather
// than aborting, because a degraded report is more useful than none.
type Agent interface {
	Type() models.ReportType
	GatherContext(ctx context.Context, userID string, parameters map[string]interface{}, timeRange models.TimeRange, authToken string) map[string]interface{}
	PreparePrompt(context map[string]interface{}) string
}

// BaseAgent carries the shared collaborators every agent needs
type BaseAgent struct {
	aggregator *metrics.Aggregator
}

// Runner drives the shared generation flow for any agent: gather context,
// prepare the prompt, call the LLM and parse the response into the
// envelope. A response that does not parse as the envelope is an error;
// agents never substitute a default result for malformed content.
type Runner struct {
	llm       LLMClient
	validator *validation.EnvelopeValidator
}

// NewRunner creates an agent runner over an LLM client
func NewRunner(llm LLMClient, validator *validation.EnvelopeValidator) *Runner {
	return &Runner{
		llm:       llm,
		validator: validator,
	}
}

// Generate runs one full generation pass with the given agent
func (r *Runner) Generate(
	ctx context.Context,
	agent Agent,
	userID string,
	parameters map[string]interface{},
	timeRange models.TimeRange,
	authToken string,
) (*models.Envelope, error) {
	agentContext := agent.GatherContext(ctx, userID, parameters, timeRange, authToken)
	prompt := agent.PreparePrompt(agentContext)

	response, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm completion failed: %w", err)
	}

	envelope, err := r.validator.Parse(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse llm response: %w", err)
	}
	return envelope, nil
}

// envelopeInstructions is appended to every agent prompt so all outputs
// share the same top-level shape
const envelopeInstructions = `Respond with a single JSON object and nothing else. No markdown, no code fences, no explanation.
The JSON object must have exactly this shape:
{
  "summary": "<2-3 sentence executive summary>",
  "content": { <report-specific keys as described above> },
  "sections": [
    {"title": "<section title>", "content": "<section body text>", "type": "<text|list|metric>"}
  ]
}`

func formatRange(timeRange models.TimeRange) string {
	return fmt.Sprintf("%s to %s",
		timeRange.Start.Format("2006-01-02"),
		timeRange.End.Format("2006-01-02"))
}

func rangeDays(timeRange models.TimeRange) int {
	days := int(timeRange.End.Sub(timeRange.Start).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return days
}

// Helpers for walking raw JSON payloads. Decoded JSON carries float64 for
// numbers and []interface{} for arrays, so every read goes through these.

func payloadItems(payload interface{}, key string) []map[string]interface{} {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	items := make([]map[string]interface{}, 0, len(raw))
	for _, entry := range raw {
		if item, ok := entry.(map[string]interface{}); ok {
			items = append(items, item)
		}
	}
	return items
}

func payloadError(payload interface{}) string {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return ""
	}
	if errMsg, ok := m["error"].(string); ok {
		return errMsg
	}
	return ""
}

func itemFloat(item map[string]interface{}, key string) float64 {
	switch v := item[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func itemBool(item map[string]interface{}, key string) bool {
	v, _ := item[key].(bool)
	return v
}

func itemString(item map[string]interface{}, key string) string {
	v, _ := item[key].(string)
	return v
}

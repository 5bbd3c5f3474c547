package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"pulse-reports/internal/metrics"
	"pulse-reports/internal/models"
)

// SummaryAgent produces the broad overview report spanning every metric
// domain. It is also the agent the weekly digest runs.
type SummaryAgent struct {
	BaseAgent
}

// NewSummaryAgent creates a summary report agent
func NewSummaryAgent(aggregator *metrics.Aggregator) *SummaryAgent {
	return &SummaryAgent{BaseAgent{aggregator: aggregator}}
}

func (a *SummaryAgent) Type() models.ReportType {
	return models.ReportTypeSummary
}

func (a *SummaryAgent) GatherContext(ctx context.Context, userID string, parameters map[string]interface{}, timeRange models.TimeRange, authToken string) map[string]interface{} {
	raw := a.aggregator.CollectAll(ctx, userID, authToken, timeRange.Start, timeRange.End)

	agentContext := map[string]interface{}{
		"timeRange":  formatRange(timeRange),
		"rangeDays":  rangeDays(timeRange),
		"parameters": parameters,
		"metrics":    raw,
		"derived":    DeriveActivityStats(raw),
	}

	for domain, payload := range raw {
		if errMsg := payloadError(payload); errMsg != "" {
			log.Printf("WARNING: Summary context for user %s missing %s data: %s", userID, domain, errMsg)
			agentContext["error"] = fmt.Sprintf("partial data: %s metrics unavailable", domain)
		}
	}

	return agentContext
}

func (a *SummaryAgent) PreparePrompt(agentContext map[string]interface{}) string {
	contextJSON, _ := json.MarshalIndent(agentContext, "", "  ")

	return fmt.Sprintf(`You are a personal analytics assistant. Write a concise overview of the user's period %v across tasks, habits, meetings, focus time and projects.

Data:
%s

Report requirements:
- "content" must contain a "key_metrics" object with the most notable derived statistics, a "highlights" array of strings and a "lowlights" array of strings.
- Include one section per area that has data. Skip areas whose metrics are unavailable.

%s`, agentContext["timeRange"], string(contextJSON), envelopeInstructions)
}

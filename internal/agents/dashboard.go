package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"pulse-reports/internal/metrics"
	"pulse-reports/internal/models"
)

// DashboardAgent produces a compact, numbers-first report intended to feed
// a dashboard view rather than prose reading
type DashboardAgent struct {
	BaseAgent
}

// NewDashboardAgent creates a dashboard report agent
func NewDashboardAgent(aggregator *metrics.Aggregator) *DashboardAgent {
	return &DashboardAgent{BaseAgent{aggregator: aggregator}}
}

func (a *DashboardAgent) Type() models.ReportType {
	return models.ReportTypeDashboard
}

func (a *DashboardAgent) GatherContext(ctx context.Context, userID string, parameters map[string]interface{}, timeRange models.TimeRange, authToken string) map[string]interface{} {
	raw := a.aggregator.CollectAll(ctx, userID, authToken, timeRange.Start, timeRange.End)

	derived := DeriveActivityStats(raw)

	habits := payloadItems(raw[metrics.DomainHabits], "habits")
	if habits != nil {
		maxStreak := 0
		for _, habit := range habits {
			if streak := int(itemFloat(habit, "streak")); streak > maxStreak {
				maxStreak = streak
			}
		}
		derived["max_streak"] = maxStreak
	}

	projects := payloadItems(raw[metrics.DomainProjects], "projects")
	if projects != nil {
		active := 0
		for _, project := range projects {
			if itemString(project, "status") == "active" {
				active++
			}
		}
		derived["active_projects"] = active
	}

	agentContext := map[string]interface{}{
		"timeRange":  formatRange(timeRange),
		"rangeDays":  rangeDays(timeRange),
		"parameters": parameters,
		"metrics":    raw,
		"derived":    derived,
	}

	for domain, payload := range raw {
		if errMsg := payloadError(payload); errMsg != "" {
			log.Printf("WARNING: Dashboard context for user %s missing %s data: %s", userID, domain, errMsg)
			agentContext["error"] = fmt.Sprintf("partial data: %s metrics unavailable", domain)
		}
	}

	return agentContext
}

func (a *DashboardAgent) PreparePrompt(agentContext map[string]interface{}) string {
	contextJSON, _ := json.MarshalIndent(agentContext, "", "  ")

	return fmt.Sprintf(`You are generating data for a personal analytics dashboard covering %v.

Data:
%s

Report requirements:
- Keep the summary to one sentence.
- "content" must contain a "tiles" array where each tile is {"label": string, "value": string or number, "trend": "up"|"down"|"flat"}, built from the derived statistics above.
- Sections should use type "metric" and carry one headline number each.

%s`, agentContext["timeRange"], string(contextJSON), envelopeInstructions)
}

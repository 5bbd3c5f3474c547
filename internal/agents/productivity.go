package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"pulse-reports/internal/metrics"
	"pulse-reports/internal/models"
)

// ProductivityAgent scores the user's output across tasks, focus sessions
// and projects
type ProductivityAgent struct {
	BaseAgent
}

// NewProductivityAgent creates a productivity report agent
func NewProductivityAgent(aggregator *metrics.Aggregator) *ProductivityAgent {
	return &ProductivityAgent{BaseAgent{aggregator: aggregator}}
}

func (a *ProductivityAgent) Type() models.ReportType {
	return models.ReportTypeProductivity
}

func (a *ProductivityAgent) GatherContext(ctx context.Context, userID string, parameters map[string]interface{}, timeRange models.TimeRange, authToken string) map[string]interface{} {
	raw := a.aggregator.Collect(ctx,
		[]string{metrics.DomainTasks, metrics.DomainFocus, metrics.DomainProjects},
		userID, authToken, timeRange.Start, timeRange.End)

	derived := map[string]interface{}{}

	tasks := payloadItems(raw[metrics.DomainTasks], "items")
	if tasks != nil {
		completed := 0
		for _, task := range tasks {
			if itemBool(task, "completed") {
				completed++
			}
		}
		derived["tasks_total"] = len(tasks)
		derived["tasks_completed"] = completed
		if len(tasks) > 0 {
			derived["completion_rate"] = float64(completed) / float64(len(tasks))
		}
	}

	sessions := payloadItems(raw[metrics.DomainFocus], "sessions")
	if sessions != nil {
		focusMinutes := 0
		for _, session := range sessions {
			focusMinutes += int(itemFloat(session, "durationMinutes"))
		}
		derived["focus_session_count"] = len(sessions)
		derived["total_focus_minutes"] = focusMinutes
		days := rangeDays(timeRange)
		derived["avg_focus_minutes_per_day"] = float64(focusMinutes) / float64(days)
	}

	projects := payloadItems(raw[metrics.DomainProjects], "projects")
	if projects != nil {
		active := 0
		var progressSum float64
		for _, project := range projects {
			if itemString(project, "status") == "active" {
				active++
			}
			progressSum += itemFloat(project, "progress")
		}
		derived["active_projects"] = active
		if len(projects) > 0 {
			derived["avg_project_progress"] = progressSum / float64(len(projects))
		}
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
			log.Printf("WARNING: Productivity context for user %s missing %s data: %s", userID, domain, errMsg)
			agentContext["error"] = fmt.Sprintf("partial data: %s metrics unavailable", domain)
		}
	}

	return agentContext
}

func (a *ProductivityAgent) PreparePrompt(agentContext map[string]interface{}) string {
	contextJSON, _ := json.MarshalIndent(agentContext, "", "  ")

	return fmt.Sprintf(`You are a productivity analyst. Evaluate how productive the user was during %v.

Productivity data:
%s

Report requirements:
- "content" must contain a "productivity_score" (number 0-100), a "key_metrics" object with "completion_rate", "total_focus_minutes" and "active_projects" taken from the derived statistics, and an "insights" array of strings.
- Include sections on task throughput, deep work and project momentum, plus one section with concrete recommendations.

%s`, agentContext["timeRange"], string(contextJSON), envelopeInstructions)
}

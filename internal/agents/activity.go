package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"pulse-reports/internal/metrics"
	"pulse-reports/internal/models"
)

// ActivityAgent produces the general activity report covering tasks and
// meetings over the analysis window
type ActivityAgent struct {
	BaseAgent
}

// NewActivityAgent creates an activity report agent
func NewActivityAgent(aggregator *metrics.Aggregator) *ActivityAgent {
	return &ActivityAgent{BaseAgent{aggregator: aggregator}}
}

func (a *ActivityAgent) Type() models.ReportType {
	return models.ReportTypeActivity
}

// GatherContext fetches tasks and calendar metrics and derives the headline
// activity statistics
func (a *ActivityAgent) GatherContext(ctx context.Context, userID string, parameters map[string]interface{}, timeRange models.TimeRange, authToken string) map[string]interface{} {
	raw := a.aggregator.Collect(ctx,
		[]string{metrics.DomainTasks, metrics.DomainCalendar, metrics.DomainFocus},
		userID, authToken, timeRange.Start, timeRange.End)

	agentContext := map[string]interface{}{
		"timeRange":  formatRange(timeRange),
		"rangeDays":  rangeDays(timeRange),
		"parameters": parameters,
		"metrics":    raw,
		"derived":    DeriveActivityStats(raw),
	}

	for domain, payload := range raw {
		if errMsg := payloadError(payload); errMsg != "" {
			log.Printf("WARNING: Activity context for user %s missing %s data: %s", userID, domain, errMsg)
			agentContext["error"] = fmt.Sprintf("partial data: %s metrics unavailable", domain)
		}
	}

	return agentContext
}

// DeriveActivityStats computes the scalar statistics the activity report
// is built around: task completion, overdue count and meeting time.
func DeriveActivityStats(raw map[string]interface{}) map[string]interface{} {
	stats := map[string]interface{}{}

	tasks := payloadItems(raw[metrics.DomainTasks], "items")
	if tasks != nil {
		total := len(tasks)
		completed := 0
		overdue := 0
		for _, task := range tasks {
			if itemBool(task, "completed") {
				completed++
			}
			if itemBool(task, "overdue") {
				overdue++
			}
		}
		stats["tasks_completed"] = fmt.Sprintf("%d out of %d", completed, total)
		stats["overdue_tasks"] = overdue
		if total > 0 {
			stats["task_completion_rate"] = float64(completed) / float64(total)
		}
	}

	events := payloadItems(raw[metrics.DomainCalendar], "events")
	if events != nil {
		totalMinutes := 0
		for _, event := range events {
			totalMinutes += int(itemFloat(event, "durationMinutes"))
		}
		stats["total_meeting_time_minutes"] = totalMinutes
		stats["meeting_count"] = len(events)
	}

	sessions := payloadItems(raw[metrics.DomainFocus], "sessions")
	if sessions != nil {
		focusMinutes := 0
		for _, session := range sessions {
			focusMinutes += int(itemFloat(session, "durationMinutes"))
		}
		stats["total_focus_minutes"] = focusMinutes
	}

	return stats
}

// PreparePrompt renders the activity context into the LLM instruction
func (a *ActivityAgent) PreparePrompt(agentContext map[string]interface{}) string {
	contextJSON, _ := json.MarshalIndent(agentContext, "", "  ")

	return fmt.Sprintf(`You are a productivity analyst. Analyze the user's activity data for the period %v and write an activity report.

Activity data:
%s

Report requirements:
- "content" must contain an "activity_score" (number 0-100), a "key_metrics" object and an "insights" array of strings.
- "key_metrics" must include "tasks_completed", "overdue_tasks" and "total_meeting_time_minutes" copied exactly from the derived statistics in the data above. Do not recompute or reword these values.
- Include 2-4 sections covering task activity, meeting load and focus time.

%s`, agentContext["timeRange"], string(contextJSON), envelopeInstructions)
}

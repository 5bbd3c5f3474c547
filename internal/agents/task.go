package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"pulse-reports/internal/metrics"
	"pulse-reports/internal/models"
)

// TaskAgent produces a task-focused report: throughput, overdue work and
// distribution across projects
type TaskAgent struct {
	BaseAgent
}

// NewTaskAgent creates a task report agent
func NewTaskAgent(aggregator *metrics.Aggregator) *TaskAgent {
	return &TaskAgent{BaseAgent{aggregator: aggregator}}
}

func (a *TaskAgent) Type() models.ReportType {
	return models.ReportTypeTask
}

func (a *TaskAgent) GatherContext(ctx context.Context, userID string, parameters map[string]interface{}, timeRange models.TimeRange, authToken string) map[string]interface{} {
	raw := a.aggregator.Collect(ctx,
		[]string{metrics.DomainTasks, metrics.DomainProjects},
		userID, authToken, timeRange.Start, timeRange.End)

	derived := map[string]interface{}{}

	tasks := payloadItems(raw[metrics.DomainTasks], "items")
	if tasks != nil {
		completed := 0
		overdue := 0
		byProject := map[string]int{}
		for _, task := range tasks {
			if itemBool(task, "completed") {
				completed++
			}
			if itemBool(task, "overdue") {
				overdue++
			}
			if project := itemString(task, "project"); project != "" {
				byProject[project]++
			}
		}
		derived["tasks_total"] = len(tasks)
		derived["tasks_completed"] = completed
		derived["overdue_tasks"] = overdue
		derived["tasks_by_project"] = byProject
		if len(tasks) > 0 {
			derived["completion_rate"] = float64(completed) / float64(len(tasks))
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
			log.Printf("WARNING: Task context for user %s missing %s data: %s", userID, domain, errMsg)
			agentContext["error"] = fmt.Sprintf("partial data: %s metrics unavailable", domain)
		}
	}

	return agentContext
}

func (a *TaskAgent) PreparePrompt(agentContext map[string]interface{}) string {
	contextJSON, _ := json.MarshalIndent(agentContext, "", "  ")

	return fmt.Sprintf(`You are a task management analyst. Review the user's tasks for %v.

Task data:
%s

Report requirements:
- "content" must contain a "key_metrics" object with "tasks_total", "tasks_completed", "overdue_tasks" and "completion_rate" taken from the derived statistics, an "insights" array of strings, and a "priorities" array naming what to tackle next.
- Include sections on completed work, overdue work and per-project distribution.

%s`, agentContext["timeRange"], string(contextJSON), envelopeInstructions)
}

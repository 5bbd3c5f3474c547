package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"pulse-reports/internal/metrics"
	"pulse-reports/internal/models"
)

// HabitsAgent analyzes habit consistency and streaks. Habit reports run
// over the longer 30 day default window.
type HabitsAgent struct {
	BaseAgent
}

// NewHabitsAgent creates a habits report agent
func NewHabitsAgent(aggregator *metrics.Aggregator) *HabitsAgent {
	return &HabitsAgent{BaseAgent{aggregator: aggregator}}
}

func (a *HabitsAgent) Type() models.ReportType {
	return models.ReportTypeHabits
}

func (a *HabitsAgent) GatherContext(ctx context.Context, userID string, parameters map[string]interface{}, timeRange models.TimeRange, authToken string) map[string]interface{} {
	raw := a.aggregator.Collect(ctx,
		[]string{metrics.DomainHabits},
		userID, authToken, timeRange.Start, timeRange.End)

	derived := map[string]interface{}{}

	habits := payloadItems(raw[metrics.DomainHabits], "habits")
	if habits != nil {
		maxStreak := 0
		var streakSum, rateSum float64
		for _, habit := range habits {
			streak := int(itemFloat(habit, "streak"))
			if streak > maxStreak {
				maxStreak = streak
			}
			streakSum += float64(streak)
			rateSum += itemFloat(habit, "completionRate")
		}
		derived["habit_count"] = len(habits)
		derived["max_streak"] = maxStreak
		if len(habits) > 0 {
			derived["avg_streak"] = streakSum / float64(len(habits))
			derived["avg_completion_rate"] = rateSum / float64(len(habits))
		}
	}

	agentContext := map[string]interface{}{
		"timeRange":  formatRange(timeRange),
		"rangeDays":  rangeDays(timeRange),
		"parameters": parameters,
		"metrics":    raw,
		"derived":    derived,
	}

	if errMsg := payloadError(raw[metrics.DomainHabits]); errMsg != "" {
		log.Printf("WARNING: Habits context for user %s missing habit data: %s", userID, errMsg)
		agentContext["error"] = "partial data: habits metrics unavailable"
	}

	return agentContext
}

func (a *HabitsAgent) PreparePrompt(agentContext map[string]interface{}) string {
	contextJSON, _ := json.MarshalIndent(agentContext, "", "  ")

	return fmt.Sprintf(`You are a habit coach. Analyze the user's habit tracking data for %v.

Habit data:
%s

Report requirements:
- "content" must contain a "consistency_score" (number 0-100), a "key_metrics" object with "max_streak", "avg_streak" and "avg_completion_rate" taken from the derived statistics, and an "insights" array of strings.
- Include sections on streaks, consistency trends and habits at risk of breaking.

%s`, agentContext["timeRange"], string(contextJSON), envelopeInstructions)
}

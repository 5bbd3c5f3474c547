// Seeds the database with sample reports for local development and prints
// a JWT usable against the running server.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"pulse-reports/internal/config"
	"pulse-reports/internal/database"
	"pulse-reports/internal/models"
	"pulse-reports/internal/services"
	"pulse-reports/internal/utils"
)

func main() {
	userID := flag.String("user", "dev-user", "user id to seed reports for")
	email := flag.String("email", "dev@example.com", "email claim for the generated token")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	mongoClient, err := database.NewMongoDBClient(cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()
	completed := now.Add(-time.Hour)

	samples := []models.Report{
		{
			ID:         utils.GenerateUUID(),
			Title:      "Last week's activity",
			Type:       models.ReportTypeActivity,
			Status:     models.ReportStatusCompleted,
			UserID:     *userID,
			Parameters: map[string]interface{}{},
			ParamsHash: utils.HashParams(map[string]interface{}{}),
			TimeRange:  utils.DefaultTimeRange(models.ReportTypeActivity, completed),
			Summary:    "A productive week with 15 of 20 tasks completed and moderate meeting load.",
			Content: map[string]interface{}{
				"activity_score": 78,
				"key_metrics": map[string]interface{}{
					"tasks_completed":            "15 out of 20",
					"overdue_tasks":              2,
					"total_meeting_time_minutes": 180,
				},
			},
			Sections: []models.ReportSection{
				{Title: "Task activity", Content: "15 of 20 tasks were completed, 2 are overdue.", Type: "text"},
				{Title: "Meetings", Content: "4 meetings totaling 3 hours.", Type: "text"},
			},
			CreatedAt:   completed,
			UpdatedAt:   completed,
			CompletedAt: &completed,
		},
		{
			ID:         utils.GenerateUUID(),
			Title:      "Habit check-in",
			Type:       models.ReportTypeHabits,
			Status:     models.ReportStatusPending,
			UserID:     *userID,
			Parameters: map[string]interface{}{"focus": "morning routine"},
			ParamsHash: utils.HashParams(map[string]interface{}{"focus": "morning routine"}),
			TimeRange:  utils.DefaultTimeRange(models.ReportTypeHabits, now),
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}

	for _, report := range samples {
		if err := mongoClient.InsertReport(ctx, &report); err != nil {
			log.Fatalf("Failed to insert sample report: %v", err)
		}
		log.Printf("Inserted %s report %s (status %s)", report.Type, report.ID, report.Status)
	}

	// Print a token for exercising the API as the seeded user
	jwtService := services.NewJWTService(cfg.JWT.Secret)
	token, err := jwtService.GenerateToken(*userID, *email)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}
	log.Printf("Bearer token for user %s:\n%s", *userID, token)
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"pulse-reports/internal/agents"
	"pulse-reports/internal/api"
	"pulse-reports/internal/config"
	"pulse-reports/internal/database"
	"pulse-reports/internal/metrics"
	"pulse-reports/internal/services"
	"pulse-reports/internal/validation"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	mongoClient, err := database.NewMongoDBClient(cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoClient.Close()
	log.Println("Connected to MongoDB")

	// Redis is optional; without it reads go straight to MongoDB
	var cache services.Cache
	redisClient, err := database.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("WARNING: Redis unavailable, running without cache: %v", err)
	} else {
		defer redisClient.Close()
		cache = redisClient
	}

	validator, err := validation.NewEnvelopeValidator()
	if err != nil {
		log.Fatalf("Failed to compile envelope schema: %v", err)
	}

	aggregator := metrics.NewAggregator(metrics.NewHTTPSource(cfg.Metrics.BaseURL))
	registry := agents.NewRegistry(aggregator)
	llmService := services.NewLLMService(cfg.OpenAI)
	runner := agents.NewRunner(llmService, validator)

	store := services.NewReportStore(mongoClient, cache, time.Duration(cfg.Generation.CacheTTLSeconds)*time.Second)
	orchestrator := services.NewOrchestrator(store, registry, runner,
		cfg.Generation.MaxRetries,
		time.Duration(cfg.Generation.AttemptTimeoutSeconds)*time.Second)

	progressHub := services.NewProgressHub()
	jwtService := services.NewJWTService(cfg.JWT.Secret)
	emailService := services.NewEmailService(cfg.Email)
	assistantService := services.NewAssistantService(store, orchestrator, aggregator, progressHub)

	digestService := services.NewDigestService(store, orchestrator, emailService, mongoClient, cfg.Metrics.ServiceToken)
	if err := digestService.LoadAndScheduleSubscriptions(context.Background()); err != nil {
		log.Printf("WARNING: Failed to schedule digest subscriptions: %v", err)
	}
	digestService.Start()
	defer digestService.Stop()

	handler := api.NewHandler(store, orchestrator, progressHub, digestService, assistantService, emailService, jwtService)

	router := gin.Default()
	api.SetupRoutes(router, handler, jwtService)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting pulse-reports server on %s", addr)

	go func() {
		if err := router.Run(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down pulse-reports server")
}

package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pulse-reports/internal/models"
)

// DigestDatabase is the subscription storage the digest service schedules
// from
type DigestDatabase interface {
	AddSubscription(ctx context.Context, sub models.DigestSubscription) error
	RemoveSubscription(ctx context.Context, userID string) error
	GetSubscription(ctx context.Context, userID string) (*models.DigestSubscription, error)
	GetAllSubscriptions(ctx context.Context) ([]models.DigestSubscription, error)
}

// DigestService sends subscribers a weekly summary report by email. Each
// subscription gets its own cron entry; digest runs use the configured
// service token against the metrics backend since no user token is
// available in a scheduled run.
type DigestService struct {
	store        *ReportStore
	orchestrator *Orchestrator
	emailService *EmailService
	db           DigestDatabase
	serviceToken string
	cron         *cron.Cron

	// entries is touched by concurrent subscribe/unsubscribe handlers
	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewDigestService creates a new digest service
func NewDigestService(
	store *ReportStore,
	orchestrator *Orchestrator,
	emailService *EmailService,
	db DigestDatabase,
	serviceToken string,
) *DigestService {
	// Seconds precision keeps custom trigger times exact
	c := cron.New(cron.WithSeconds())

	return &DigestService{
		store:        store,
		orchestrator: orchestrator,
		emailService: emailService,
		db:           db,
		serviceToken: serviceToken,
		cron:         c,
		entries:      make(map[string]cron.EntryID),
	}
}

// Start starts the cron scheduler
func (s *DigestService) Start() {
	s.cron.Start()
	log.Println("Weekly digest cron scheduler started")
}

// Stop stops the cron scheduler
func (s *DigestService) Stop() {
	s.cron.Stop()
	log.Println("Weekly digest cron scheduler stopped")
}

// Subscribe stores a subscription and schedules its weekly run
func (s *DigestService) Subscribe(ctx context.Context, userID string, email string, nextTrigger *time.Time) error {
	sub := models.DigestSubscription{
		UserID:       userID,
		Email:        email,
		SubscribedAt: time.Now(),
		NextTrigger:  nextTrigger,
	}

	if err := s.db.AddSubscription(ctx, sub); err != nil {
		return err
	}
	return s.schedule(sub)
}

// Unsubscribe removes a subscription and its cron entry
func (s *DigestService) Unsubscribe(ctx context.Context, userID string) error {
	if err := s.db.RemoveSubscription(ctx, userID); err != nil {
		return err
	}

	s.mu.Lock()
	entryID, ok := s.entries[userID]
	if ok {
		delete(s.entries, userID)
	}
	s.mu.Unlock()

	if ok {
		s.cron.Remove(entryID)
		log.Printf("Unscheduled weekly digest for user %s", userID)
	}
	return nil
}

// GetSubscription returns a user's subscription, nil when not subscribed
func (s *DigestService) GetSubscription(ctx context.Context, userID string) (*models.DigestSubscription, error) {
	return s.db.GetSubscription(ctx, userID)
}

// LoadAndScheduleSubscriptions loads all stored subscriptions and schedules
// them. Called once at startup.
func (s *DigestService) LoadAndScheduleSubscriptions(ctx context.Context) error {
	subs, err := s.db.GetAllSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load digest subscriptions: %w", err)
	}

	log.Printf("Loading %d digest subscriptions", len(subs))

	for _, sub := range subs {
		if err := s.schedule(sub); err != nil {
			log.Printf("WARNING: Failed to schedule digest for user %s: %v", sub.UserID, err)
			continue
		}
	}
	return nil
}

// schedule adds (or replaces) the cron entry for a subscription. A custom
// trigger time becomes a recurring weekly schedule at that weekday and
// time; the default is Monday 08:00:00.
func (s *DigestService) schedule(sub models.DigestSubscription) error {
	var schedule string

	if sub.NextTrigger != nil {
		t := sub.NextTrigger
		// cron format with seconds: second minute hour day month weekday
		schedule = fmt.Sprintf("%d %d %d * * %d", t.Second(), t.Minute(), t.Hour(), int(t.Weekday()))
		log.Printf("Scheduling weekly digest for user %s at %s (recurring weekly)", sub.UserID, t.Format("Monday 15:04:05"))
	} else {
		schedule = "0 0 8 * * 1"
		log.Printf("Scheduling weekly digest for user %s at Monday 08:00:00 (default)", sub.UserID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[sub.UserID]; ok {
		s.cron.Remove(entryID)
	}

	userID := sub.UserID
	email := sub.Email
	entryID, err := s.cron.AddFunc(schedule, func() {
		s.runDigest(userID, email)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule weekly digest: %w", err)
	}

	s.entries[sub.UserID] = entryID
	return nil
}

// runDigest generates a fresh summary report for the past week and emails
// it to the subscriber
func (s *DigestService) runDigest(userID string, email string) {
	log.Printf("Generating weekly digest for user %s", userID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	report, created, err := s.store.Create(ctx, userID, models.CreateReportRequest{
		Title: "Weekly digest",
		Type:  models.ReportTypeSummary,
	})
	if err != nil {
		log.Printf("ERROR: Failed to create digest report for user %s: %v", userID, err)
		return
	}

	// A coalesced report that is generating belongs to another caller;
	// only failed ones are worth regenerating here
	if created || report.Status == models.ReportStatusFailed {
		if _, err := s.orchestrator.GenerateReport(ctx, report.ID, s.serviceToken, nil); err != nil {
			log.Printf("ERROR: Failed to generate digest report for user %s: %v", userID, err)
			return
		}
	}

	report, err = s.store.Get(ctx, report.ID)
	if err != nil {
		log.Printf("ERROR: Failed to reload digest report for user %s: %v", userID, err)
		return
	}

	if err := s.emailService.SendReportEmail(email, report); err != nil {
		log.Printf("ERROR: Failed to send digest email to %s for user %s: %v", email, userID, err)
		return
	}

	log.Printf("Successfully sent weekly digest to %s for user %s", email, userID)
}

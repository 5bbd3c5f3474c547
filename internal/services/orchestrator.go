package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"pulse-reports/internal/agents"
	"pulse-reports/internal/models"
)

// ErrUnknownReportType is returned when a report's type has no agent bound
var ErrUnknownReportType = errors.New("no agent registered for report type")

// Orchestrator drives report generation: agent selection, the retry loop
// with exponential backoff, status transitions and progress events. It is
// the only component that moves a report to generating, completed or
// failed.
type Orchestrator struct {
	store          *ReportStore
	registry       *agents.Registry
	runner         *agents.Runner
	maxRetries     int
	attemptTimeout time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates a report generation orchestrator. maxRetries is
// the number of retries after the first attempt; negative values mean no
// retries.
func NewOrchestrator(store *ReportStore, registry *agents.Registry, runner *agents.Runner, maxRetries int, attemptTimeout time.Duration) *Orchestrator {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Orchestrator{
		store:          store,
		registry:       registry,
		runner:         runner,
		maxRetries:     maxRetries,
		attemptTimeout: attemptTimeout,
		sleep:          sleepContext,
	}
}

// GenerateReport runs the full generation flow for a report. Progress
// events are pushed into sink as the loop advances. Cancellation via ctx is
// observed between attempts; a report cancelled mid-flight is marked
// failed.
func (o *Orchestrator) GenerateReport(ctx context.Context, reportID string, authToken string, sink ProgressSink) (*models.Envelope, error) {
	report, err := o.store.Get(ctx, reportID)
	if err != nil {
		if errors.Is(err, ErrReportNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load report %s: %w", reportID, err)
	}

	agent, ok := o.registry.Get(report.Type)
	if !ok {
		errMsg := fmt.Sprintf("no agent registered for report type %q", report.Type)
		if updateErr := o.store.UpdateStatus(ctx, reportID, models.ReportStatusFailed, errMsg); updateErr != nil {
			log.Printf("WARNING: Failed to mark report %s failed: %v", reportID, updateErr)
		}
		o.publish(sink, reportID, 1, string(models.ReportStatusFailed), errMsg)
		return nil, fmt.Errorf("%w: %s", ErrUnknownReportType, report.Type)
	}

	if err := o.store.UpdateStatus(ctx, reportID, models.ReportStatusGenerating, ""); err != nil {
		return nil, fmt.Errorf("failed to mark report %s generating: %w", reportID, err)
	}

	parameters := report.Parameters
	if report.CustomPrompt != "" {
		parameters = cloneParameters(parameters)
		parameters["custom_instructions"] = report.CustomPrompt
	}

	totalAttempts := o.maxRetries + 1
	var lastErr error

	for attempt := 0; attempt < totalAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = fmt.Errorf("generation cancelled: %w", err)
			break
		}

		o.publish(sink, reportID, float64(attempt)/float64(totalAttempts), string(models.ReportStatusGenerating),
			fmt.Sprintf("Generating report (attempt %d of %d)", attempt+1, totalAttempts))

		envelope, err := o.runAttempt(ctx, agent, report, parameters, authToken)
		if err == nil {
			if err := o.store.UpdateContent(ctx, reportID, envelope); err != nil {
				return nil, fmt.Errorf("failed to persist report content: %w", err)
			}
			return envelope, nil
		}

		lastErr = err
		log.Printf("WARNING: Report %s generation attempt %d/%d failed: %v", reportID, attempt+1, totalAttempts, err)

		if attempt+1 < totalAttempts {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			o.publish(sink, reportID, float64(attempt+1)/float64(totalAttempts), string(models.ReportStatusGenerating),
				fmt.Sprintf("Attempt %d failed, retrying in %s", attempt+1, backoff))
			if err := o.sleep(ctx, backoff); err != nil {
				lastErr = fmt.Errorf("generation cancelled: %w", err)
				break
			}
		}
	}

	errMsg := lastErr.Error()
	if err := o.store.UpdateStatus(context.WithoutCancel(ctx), reportID, models.ReportStatusFailed, errMsg); err != nil {
		log.Printf("WARNING: Failed to mark report %s failed: %v", reportID, err)
	}
	o.publish(sink, reportID, 1, string(models.ReportStatusFailed), errMsg)
	return nil, lastErr
}

// runAttempt executes one generation attempt under the per-attempt timeout
func (o *Orchestrator) runAttempt(ctx context.Context, agent agents.Agent, report *models.Report, parameters map[string]interface{}, authToken string) (*models.Envelope, error) {
	attemptCtx := ctx
	if o.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, o.attemptTimeout)
		defer cancel()
	}
	return o.runner.Generate(attemptCtx, agent, report.UserID, parameters, report.TimeRange, authToken)
}

func (o *Orchestrator) publish(sink ProgressSink, reportID string, progress float64, status string, message string) {
	if sink == nil {
		return
	}
	sink.Publish(models.ProgressEvent{
		ReportID: reportID,
		Progress: progress,
		Status:   status,
		Message:  message,
	})
}

func cloneParameters(parameters map[string]interface{}) map[string]interface{} {
	clone := make(map[string]interface{}, len(parameters)+1)
	for k, v := range parameters {
		clone[k] = v
	}
	return clone
}

// sleepContext sleeps for d or until the context is cancelled
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse-reports/internal/agents"
	"pulse-reports/internal/metrics"
	"pulse-reports/internal/models"
	"pulse-reports/internal/validation"
)

// fakeMetricsSource serves canned payloads per domain
type fakeMetricsSource struct {
	payloads map[string]map[string]interface{}
	failing  map[string]error
}

func (f *fakeMetricsSource) Fetch(ctx context.Context, domain string, userID string, authToken string, start, end time.Time) (map[string]interface{}, error) {
	if err, ok := f.failing[domain]; ok {
		return nil, err
	}
	if payload, ok := f.payloads[domain]; ok {
		return payload, nil
	}
	return map[string]interface{}{}, nil
}

// fakeLLM returns canned responses, optionally failing the first N calls
type fakeLLM struct {
	mu        sync.Mutex
	response  string
	err       error
	failFirst int
	calls     int
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.calls <= f.failFirst {
		return "", fmt.Errorf("transient llm failure %d", f.calls)
	}
	return f.response, nil
}

// recordingSink collects published progress events
type recordingSink struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (s *recordingSink) Publish(event models.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) snapshot() []models.ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ProgressEvent(nil), s.events...)
}

const orchestratorResponse = `{
	"summary": "Good period.",
	"content": {"activity_score": 70, "key_metrics": {"tasks_completed": "3 out of 5"}},
	"sections": [{"title": "Tasks", "content": "Steady progress.", "type": "text"}]
}`

type orchestratorFixture struct {
	db           *fakeDB
	store        *ReportStore
	llm          *fakeLLM
	orchestrator *Orchestrator
	backoffs     []time.Duration
}

func newOrchestratorFixture(t *testing.T, llm *fakeLLM, source metrics.Source) *orchestratorFixture {
	t.Helper()

	db := newFakeDB()
	now := time.Date(2025, 3, 10, 14, 23, 0, 0, time.UTC)
	store := newTestStore(db, newFakeCache(), now)

	validator, err := validation.NewEnvelopeValidator()
	require.NoError(t, err)

	registry := agents.NewRegistry(metrics.NewAggregator(source))
	runner := agents.NewRunner(llm, validator)

	fixture := &orchestratorFixture{db: db, store: store, llm: llm}
	fixture.orchestrator = NewOrchestrator(store, registry, runner, 2, 0)
	fixture.orchestrator.sleep = func(ctx context.Context, d time.Duration) error {
		fixture.backoffs = append(fixture.backoffs, d)
		return ctx.Err()
	}
	return fixture
}

func (f *orchestratorFixture) createReport(t *testing.T, reportType models.ReportType) *models.Report {
	t.Helper()
	report, _, err := f.store.Create(context.Background(), "u1", models.CreateReportRequest{Type: reportType})
	require.NoError(t, err)
	return report
}

func TestGenerateReportSuccess(t *testing.T) {
	llm := &fakeLLM{response: orchestratorResponse}
	fixture := newOrchestratorFixture(t, llm, &fakeMetricsSource{})
	report := fixture.createReport(t, models.ReportTypeActivity)
	sink := &recordingSink{}

	envelope, err := fixture.orchestrator.GenerateReport(context.Background(), report.ID, "token", sink)
	require.NoError(t, err)
	assert.Equal(t, "Good period.", envelope.Summary)

	stored, err := fixture.store.Get(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, stored.Status)
	assert.Equal(t, "Good period.", stored.Summary)
	assert.NotNil(t, stored.CompletedAt)
	assert.Empty(t, stored.Error)
	assert.Equal(t, 1, llm.calls)
	assert.Empty(t, fixture.backoffs)
}

func TestGenerateReportRetryBound(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("llm always down")}
	fixture := newOrchestratorFixture(t, llm, &fakeMetricsSource{})
	report := fixture.createReport(t, models.ReportTypeActivity)
	sink := &recordingSink{}

	_, err := fixture.orchestrator.GenerateReport(context.Background(), report.ID, "token", sink)
	require.Error(t, err)

	// maxRetries=2 means exactly 3 attempts with 1s then 2s backoff
	assert.Equal(t, 3, llm.calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, fixture.backoffs)

	stored, getErr := fixture.store.Get(context.Background(), report.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "llm always down")

	events := sink.snapshot()
	require.NotEmpty(t, events)
	terminal := events[len(events)-1]
	assert.Equal(t, string(models.ReportStatusFailed), terminal.Status)
	assert.Equal(t, 1.0, terminal.Progress)
}

func TestGenerateReportNegativeRetriesClamped(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("llm always down")}
	fixture := newOrchestratorFixture(t, llm, &fakeMetricsSource{})
	report := fixture.createReport(t, models.ReportTypeActivity)

	// A negative retry count means a single attempt, not zero attempts
	fixture.orchestrator = NewOrchestrator(fixture.store, fixture.orchestrator.registry, fixture.orchestrator.runner, -1, 0)

	_, err := fixture.orchestrator.GenerateReport(context.Background(), report.ID, "token", &recordingSink{})
	require.Error(t, err)
	assert.Equal(t, 1, llm.calls)

	stored, getErr := fixture.store.Get(context.Background(), report.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "llm always down")
}

func TestGenerateReportRecoversAfterTransientFailure(t *testing.T) {
	llm := &fakeLLM{response: orchestratorResponse, failFirst: 2}
	fixture := newOrchestratorFixture(t, llm, &fakeMetricsSource{})
	report := fixture.createReport(t, models.ReportTypeActivity)

	envelope, err := fixture.orchestrator.GenerateReport(context.Background(), report.ID, "token", &recordingSink{})
	require.NoError(t, err)
	assert.Equal(t, "Good period.", envelope.Summary)
	assert.Equal(t, 3, llm.calls)

	stored, err := fixture.store.Get(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, stored.Status)
}

func TestGenerateReportNotFound(t *testing.T) {
	fixture := newOrchestratorFixture(t, &fakeLLM{response: orchestratorResponse}, &fakeMetricsSource{})

	_, err := fixture.orchestrator.GenerateReport(context.Background(), "missing", "token", &recordingSink{})
	assert.ErrorIs(t, err, ErrReportNotFound)
	assert.Equal(t, 0, fixture.llm.calls)
}

func TestGenerateReportUnregisteredType(t *testing.T) {
	fixture := newOrchestratorFixture(t, &fakeLLM{response: orchestratorResponse}, &fakeMetricsSource{})
	report := fixture.createReport(t, models.ReportTypeCustom)
	sink := &recordingSink{}

	_, err := fixture.orchestrator.GenerateReport(context.Background(), report.ID, "token", sink)
	assert.ErrorIs(t, err, ErrUnknownReportType)
	assert.Equal(t, 0, fixture.llm.calls, "unregistered type must not retry")

	stored, getErr := fixture.store.Get(context.Background(), report.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)

	events := sink.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, string(models.ReportStatusFailed), events[0].Status)
}

func TestGenerateReportPartialMetricsStillCompletes(t *testing.T) {
	source := &fakeMetricsSource{
		payloads: map[string]map[string]interface{}{
			metrics.DomainTasks: {"items": []interface{}{
				map[string]interface{}{"completed": true, "overdue": false},
			}},
		},
		failing: map[string]error{
			metrics.DomainCalendar: fmt.Errorf("calendar service unavailable"),
		},
	}
	llm := &fakeLLM{response: orchestratorResponse}
	fixture := newOrchestratorFixture(t, llm, source)
	report := fixture.createReport(t, models.ReportTypeActivity)

	_, err := fixture.orchestrator.GenerateReport(context.Background(), report.ID, "token", &recordingSink{})
	require.NoError(t, err)
	assert.Equal(t, 1, llm.calls)

	stored, err := fixture.store.Get(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, stored.Status)
}

func TestGenerateReportProgressSequence(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("down")}
	fixture := newOrchestratorFixture(t, llm, &fakeMetricsSource{})
	report := fixture.createReport(t, models.ReportTypeActivity)
	sink := &recordingSink{}

	_, err := fixture.orchestrator.GenerateReport(context.Background(), report.ID, "token", sink)
	require.Error(t, err)

	events := sink.snapshot()
	require.NotEmpty(t, events)

	for _, event := range events {
		assert.Equal(t, report.ID, event.ReportID)
		assert.GreaterOrEqual(t, event.Progress, 0.0)
		assert.LessOrEqual(t, event.Progress, 1.0)
	}

	// Progress never moves backwards and the last event is terminal
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Progress, events[i-1].Progress)
	}
	assert.Equal(t, string(models.ReportStatusFailed), events[len(events)-1].Status)
}

func TestGenerateReportCancellation(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("down")}
	fixture := newOrchestratorFixture(t, llm, &fakeMetricsSource{})
	report := fixture.createReport(t, models.ReportTypeActivity)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The cancelled context is observed before backoff completes
	_, err := fixture.orchestrator.GenerateReport(ctx, report.ID, "token", &recordingSink{})
	require.Error(t, err)

	stored, getErr := fixture.store.Get(context.Background(), report.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
}

func TestGenerateReportRegeneration(t *testing.T) {
	llm := &fakeLLM{response: orchestratorResponse}
	fixture := newOrchestratorFixture(t, llm, &fakeMetricsSource{})
	report := fixture.createReport(t, models.ReportTypeActivity)

	_, err := fixture.orchestrator.GenerateReport(context.Background(), report.ID, "token", &recordingSink{})
	require.NoError(t, err)

	// Completed reports re-enter generating on an explicit regeneration
	_, err = fixture.orchestrator.GenerateReport(context.Background(), report.ID, "token", &recordingSink{})
	require.NoError(t, err)
	assert.Equal(t, 2, llm.calls)

	stored, err := fixture.store.Get(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, stored.Status)
}

package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource returns canned payloads per domain and records fetch calls
type fakeSource struct {
	payloads map[string]map[string]interface{}
	failing  map[string]error
	calls    []string
}

func (f *fakeSource) Fetch(ctx context.Context, domain string, userID string, authToken string, start, end time.Time) (map[string]interface{}, error) {
	f.calls = append(f.calls, domain)
	if err, ok := f.failing[domain]; ok {
		return nil, err
	}
	return f.payloads[domain], nil
}

func TestCollectAllDomainsSucceed(t *testing.T) {
	source := &fakeSource{
		payloads: map[string]map[string]interface{}{
			DomainTasks:  {"items": []interface{}{}},
			DomainHabits: {"habits": []interface{}{}},
		},
	}
	aggregator := NewAggregator(source)

	results := aggregator.Collect(context.Background(), []string{DomainTasks, DomainHabits},
		"u1", "token", time.Now().Add(-24*time.Hour), time.Now())

	require.Len(t, results, 2)
	assert.Equal(t, source.payloads[DomainTasks], results[DomainTasks])
	assert.Equal(t, source.payloads[DomainHabits], results[DomainHabits])
}

func TestCollectContinuesPastFailingDomain(t *testing.T) {
	source := &fakeSource{
		payloads: map[string]map[string]interface{}{
			DomainTasks: {"items": []interface{}{map[string]interface{}{"completed": true}}},
		},
		failing: map[string]error{
			DomainCalendar: fmt.Errorf("calendar service unavailable"),
		},
	}
	aggregator := NewAggregator(source)

	results := aggregator.Collect(context.Background(), []string{DomainTasks, DomainCalendar, DomainFocus},
		"u1", "token", time.Now().Add(-24*time.Hour), time.Now())

	// Every requested domain gets an entry and every domain was attempted
	require.Len(t, results, 3)
	assert.Equal(t, []string{DomainTasks, DomainCalendar, DomainFocus}, source.calls)

	// Failing domain carries an error marker instead of aborting
	marker, ok := results[DomainCalendar].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, marker["error"], "calendar service unavailable")

	// Healthy domain is untouched
	assert.Equal(t, source.payloads[DomainTasks], results[DomainTasks])
}

func TestCollectAllCoversEveryDomain(t *testing.T) {
	source := &fakeSource{}
	aggregator := NewAggregator(source)

	results := aggregator.CollectAll(context.Background(), "u1", "token",
		time.Now().Add(-24*time.Hour), time.Now())

	assert.Len(t, results, len(AllDomains))
	for _, domain := range AllDomains {
		assert.Contains(t, results, domain)
	}
}

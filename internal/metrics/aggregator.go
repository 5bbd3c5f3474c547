package metrics

import (
	"context"
	"log"
	"time"
)

// Metric domains available to report agents
const (
	DomainTasks    = "tasks"
	DomainHabits   = "habits"
	DomainCalendar = "calendar"
	DomainFocus    = "focus"
	DomainProjects = "projects"
)

// AllDomains lists every metric domain in a stable order
var AllDomains = []string{DomainTasks, DomainHabits, DomainCalendar, DomainFocus, DomainProjects}

// Aggregator collects metrics across domains for a user and time range.
// Each domain is fetched independently; a failing domain does not abort
// the aggregation, it is recorded as an error marker in the result so
// agents can generate from partial data.
type Aggregator struct {
	source Source
}

// NewAggregator creates a metrics aggregator over a source
func NewAggregator(source Source) *Aggregator {
	return &Aggregator{source: source}
}

// Collect fetches the requested domains. The returned map has one entry per
// requested domain: the decoded payload on success, or a map with an
// "error" key on failure. Fetch failures are not retried here; the
// generation retry loop retries the whole attempt.
func (a *Aggregator) Collect(ctx context.Context, domains []string, userID string, authToken string, start, end time.Time) map[string]interface{} {
	results := make(map[string]interface{}, len(domains))

	for _, domain := range domains {
		data, err := a.source.Fetch(ctx, domain, userID, authToken, start, end)
		if err != nil {
			log.Printf("WARNING: Failed to fetch %s metrics for user %s: %v", domain, userID, err)
			results[domain] = map[string]interface{}{
				"error": err.Error(),
			}
			continue
		}
		results[domain] = data
	}

	return results
}

// CollectAll fetches every known domain
func (a *Aggregator) CollectAll(ctx context.Context, userID string, authToken string, start, end time.Time) map[string]interface{} {
	return a.Collect(ctx, AllDomains, userID, authToken, start, end)
}

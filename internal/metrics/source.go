package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Source fetches raw metrics for a single domain over a time range.
// Implementations return the decoded payload for one domain; the aggregator
// fans out across domains and collects the results.
type Source interface {
	Fetch(ctx context.Context, domain string, userID string, authToken string, start, end time.Time) (map[string]interface{}, error)
}

// HTTPSource fetches metrics from the tracking backend over HTTP. Each
// domain maps to a path under the configured base URL.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSource creates an HTTP metrics source against the given base URL
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch retrieves metrics for one domain. The caller's auth token is
// forwarded so the backend applies its own access control.
func (s *HTTPSource) Fetch(ctx context.Context, domain string, userID string, authToken string, start, end time.Time) (map[string]interface{}, error) {
	url := fmt.Sprintf("%s/api/metrics/%s?userId=%s&start=%s&end=%s",
		s.baseURL,
		domain,
		userID,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+authToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s metrics: %w", domain, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s metrics response: %w", domain, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s metrics request returned status %d: %s", domain, resp.StatusCode, string(body))
	}

	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to decode %s metrics response: %w", domain, err)
	}
	return data, nil
}

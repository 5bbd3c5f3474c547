package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pulse-reports/internal/metrics"
	"pulse-reports/internal/models"
	"pulse-reports/internal/utils"
)

// Tool represents a function the assistant can execute on the user's behalf
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON schema for function calling
	Execute     func(ctx context.Context, userID string, authToken string, params map[string]interface{}) (string, error)
}

// AssistantService exposes report and metrics operations as callable tools
type AssistantService struct {
	store        *ReportStore
	orchestrator *Orchestrator
	aggregator   *metrics.Aggregator
	progressHub  *ProgressHub
}

// NewAssistantService creates a new assistant service
func NewAssistantService(store *ReportStore, orchestrator *Orchestrator, aggregator *metrics.Aggregator, progressHub *ProgressHub) *AssistantService {
	return &AssistantService{
		store:        store,
		orchestrator: orchestrator,
		aggregator:   aggregator,
		progressHub:  progressHub,
	}
}

// GetAllTools returns every tool available to the assistant
func (s *AssistantService) GetAllTools() []Tool {
	return []Tool{
		s.buildGenerateReportTool(),
		s.buildListReportsTool(),
		s.buildGetMetricsTool(),
	}
}

// GetTool looks a tool up by name
func (s *AssistantService) GetTool(name string) (Tool, bool) {
	for _, tool := range s.GetAllTools() {
		if tool.Name == name {
			return tool, true
		}
	}
	return Tool{}, false
}

// buildGenerateReportTool creates a report and runs generation synchronously
func (s *AssistantService) buildGenerateReportTool() Tool {
	return Tool{
		Name:        "generate_report",
		Description: "Generate a new report of the given type over an optional date range",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"report_type": map[string]interface{}{
					"type":        "string",
					"description": "One of: activity, productivity, habits, task, summary, dashboard",
				},
				"date_start": map[string]interface{}{
					"type":        "string",
					"description": "Optional range start, YYYY-MM-DD",
				},
				"date_end": map[string]interface{}{
					"type":        "string",
					"description": "Optional range end, YYYY-MM-DD",
				},
			},
			"required": []string{"report_type"},
		},
		Execute: func(ctx context.Context, userID string, authToken string, params map[string]interface{}) (string, error) {
			reportType, ok := params["report_type"].(string)
			if !ok {
				return "", fmt.Errorf("report_type must be a string")
			}

			req := models.CreateReportRequest{Type: models.ReportType(reportType)}

			timeRange, err := parseToolDateRange(params)
			if err != nil {
				return "", err
			}
			req.TimeRange = timeRange

			report, created, err := s.store.Create(ctx, userID, req)
			if err != nil {
				return "", err
			}

			if created || report.Status == models.ReportStatusFailed {
				if _, err := s.orchestrator.GenerateReport(ctx, report.ID, authToken, s.progressHub); err != nil {
					return "", err
				}
				report, err = s.store.Get(ctx, report.ID)
				if err != nil {
					return "", err
				}
			}

			result, err := json.Marshal(report)
			if err != nil {
				return "", fmt.Errorf("failed to encode report: %w", err)
			}
			return string(result), nil
		},
	}
}

// buildListReportsTool lists the user's recent reports
func (s *AssistantService) buildListReportsTool() Tool {
	return Tool{
		Name:        "list_reports",
		Description: "List the user's recent reports, optionally filtered by type or status",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"report_type": map[string]interface{}{"type": "string"},
				"status":      map[string]interface{}{"type": "string"},
				"limit":       map[string]interface{}{"type": "integer"},
			},
		},
		Execute: func(ctx context.Context, userID string, authToken string, params map[string]interface{}) (string, error) {
			filter := models.ReportFilter{UserID: userID, Limit: 10}
			if reportType, ok := params["report_type"].(string); ok {
				filter.Type = models.ReportType(reportType)
			}
			if status, ok := params["status"].(string); ok {
				filter.Status = models.ReportStatus(status)
			}
			if limit, ok := params["limit"].(float64); ok && limit > 0 {
				filter.Limit = int64(limit)
			}

			reports, err := s.store.List(ctx, filter)
			if err != nil {
				return "", err
			}

			result, err := json.Marshal(reports)
			if err != nil {
				return "", fmt.Errorf("failed to encode reports: %w", err)
			}
			return string(result), nil
		},
	}
}

// buildGetMetricsTool fetches raw metrics for one domain
func (s *AssistantService) buildGetMetricsTool() Tool {
	return Tool{
		Name:        "get_metrics",
		Description: "Fetch raw metrics for one domain (tasks, habits, calendar, focus, projects) over an optional date range",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"domain": map[string]interface{}{
					"type":        "string",
					"description": "One of: tasks, habits, calendar, focus, projects",
				},
				"date_start": map[string]interface{}{"type": "string"},
				"date_end":   map[string]interface{}{"type": "string"},
			},
			"required": []string{"domain"},
		},
		Execute: func(ctx context.Context, userID string, authToken string, params map[string]interface{}) (string, error) {
			domain, ok := params["domain"].(string)
			if !ok {
				return "", fmt.Errorf("domain must be a string")
			}

			timeRange, err := parseToolDateRange(params)
			if err != nil {
				return "", err
			}
			if timeRange == nil {
				defaulted := utils.DefaultTimeRange(models.ReportTypeSummary, time.Now())
				timeRange = &defaulted
			}

			data := s.aggregator.Collect(ctx, []string{domain}, userID, authToken, timeRange.Start, timeRange.End)

			result, err := json.Marshal(data[domain])
			if err != nil {
				return "", fmt.Errorf("failed to encode metrics: %w", err)
			}
			return string(result), nil
		},
	}
}

// parseToolDateRange reads optional date_start/date_end parameters. Returns
// nil when neither is present.
func parseToolDateRange(params map[string]interface{}) (*models.TimeRange, error) {
	startStr, hasStart := params["date_start"].(string)
	endStr, hasEnd := params["date_end"].(string)
	if !hasStart && !hasEnd {
		return nil, nil
	}
	if !hasStart || !hasEnd {
		return nil, fmt.Errorf("date_start and date_end must be provided together")
	}

	start, err := utils.ParseDate(startStr)
	if err != nil {
		return nil, fmt.Errorf("invalid date_start: %w", err)
	}
	end, err := utils.ParseDate(endStr)
	if err != nil {
		return nil, fmt.Errorf("invalid date_end: %w", err)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("date_end must be after date_start")
	}

	return &models.TimeRange{Start: start, End: end.Add(24*time.Hour - time.Second)}, nil
}

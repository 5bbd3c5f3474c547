package models

// CreateReportRequest represents the request to create a report
type CreateReportRequest struct {
	Title        string                 `json:"title"`
	Type         ReportType             `json:"type" binding:"required"`
	Parameters   map[string]interface{} `json:"parameters"`
	TimeRange    *TimeRange             `json:"timeRange,omitempty"` // defaulted when omitted
	CustomPrompt string                 `json:"customPrompt,omitempty"`
}

// UpdateReportRequest carries the user-editable fields of a report.
// Generation state (status, content, error) is never touched through this path.
type UpdateReportRequest struct {
	Title        *string                `json:"title,omitempty"`
	Parameters   map[string]interface{} `json:"parameters,omitempty"`
	CustomPrompt *string                `json:"customPrompt,omitempty"`
}

// GenerateResponse represents the response when triggering generation
type GenerateResponse struct {
	ReportID string `json:"reportId"`
	Status   string `json:"status"`
}

// SubscribeDigestRequest represents the request to opt into weekly digests
type SubscribeDigestRequest struct {
	Email       string  `json:"email" binding:"required,email"`
	NextTrigger *string `json:"nextTrigger,omitempty"` // optional ISO 8601 override for testing
}

// AssistantExecuteRequest represents a conversational tool invocation
type AssistantExecuteRequest struct {
	ToolName string                 `json:"tool_name" binding:"required"`
	Params   map[string]interface{} `json:"params"`
}

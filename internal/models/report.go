package models

import "time"

// ReportType identifies which analysis a report performs
type ReportType string

const (
	ReportTypeActivity     ReportType = "activity"
	ReportTypeProductivity ReportType = "productivity"
	ReportTypeHabits       ReportType = "habits"
	ReportTypeTask         ReportType = "task"
	ReportTypeSummary      ReportType = "summary"
	ReportTypeDashboard    ReportType = "dashboard"
	ReportTypeCustom       ReportType = "custom"
)

// ReportStatus represents the lifecycle state of a report
type ReportStatus string

const (
	ReportStatusPending    ReportStatus = "pending"
	ReportStatusGenerating ReportStatus = "generating"
	ReportStatusCompleted  ReportStatus = "completed"
	ReportStatusFailed     ReportStatus = "failed"
)

// allowedTransitions encodes the monotonic lifecycle:
// pending -> generating -> {completed|failed}. Terminal states only
// re-enter generating through an explicit regeneration call.
var allowedTransitions = map[ReportStatus]map[ReportStatus]struct{}{
	ReportStatusPending: {
		ReportStatusGenerating: {},
		ReportStatusFailed:     {}, // unregistered type is marked failed before generating
	},
	ReportStatusGenerating: {
		ReportStatusCompleted: {},
		ReportStatusFailed:    {},
	},
	ReportStatusCompleted: {
		ReportStatusGenerating: {}, // regeneration
	},
	ReportStatusFailed: {
		ReportStatusGenerating: {}, // regeneration
	},
}

// CanTransition reports whether moving from one status to another is legal
func CanTransition(from, to ReportStatus) bool {
	_, ok := allowedTransitions[from][to]
	return ok
}

// TimeRange is the analysis window of a report. Once set it is immutable
// for the life of the record; regeneration reuses it.
type TimeRange struct {
	Start time.Time `bson:"start" json:"start"`
	End   time.Time `bson:"end" json:"end"`
}

// ReportSection is one ordered section of generated report content
type ReportSection struct {
	Title   string                 `bson:"title" json:"title"`
	Content string                 `bson:"content" json:"content"`
	Type    string                 `bson:"type" json:"type"` // text, chart, metrics, ...
	Data    map[string]interface{} `bson:"data,omitempty" json:"data,omitempty"`
}

// Report is a persisted request for AI-generated analysis and its result
type Report struct {
	ID           string                 `bson:"_id" json:"id"`
	Title        string                 `bson:"title" json:"title"`
	Type         ReportType             `bson:"type" json:"type"`
	Status       ReportStatus           `bson:"status" json:"status"`
	UserID       string                 `bson:"userId" json:"userId"`
	Parameters   map[string]interface{} `bson:"parameters" json:"parameters"`
	ParamsHash   string                 `bson:"paramsHash" json:"-"` // stable hash of Parameters, used by the coalescing query
	TimeRange    TimeRange              `bson:"timeRange" json:"timeRange"`
	CustomPrompt string                 `bson:"customPrompt,omitempty" json:"customPrompt,omitempty"`
	Content      map[string]interface{} `bson:"content,omitempty" json:"content,omitempty"`
	Summary      string                 `bson:"summary,omitempty" json:"summary,omitempty"`
	Sections     []ReportSection        `bson:"sections,omitempty" json:"sections,omitempty"`
	Error        string                 `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt    time.Time              `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time              `bson:"updatedAt" json:"updatedAt"`
	CompletedAt  *time.Time             `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// Envelope is the fixed JSON shape every agent must produce. The key names
// inside Content vary per report type; the envelope itself does not.
type Envelope struct {
	Summary  string                 `json:"summary"`
	Content  map[string]interface{} `json:"content"`
	Sections []ReportSection        `json:"sections"`
}

// ReportFilter selects reports for a list query
type ReportFilter struct {
	UserID string
	Type   ReportType
	Status ReportStatus
	Limit  int64
	Offset int64
}

// ProgressEvent is one generation lifecycle event pushed to a progress sink
type ProgressEvent struct {
	ReportID string  `json:"reportId"`
	Progress float64 `json:"progress"` // 0.0 to 1.0
	Status   string  `json:"status"`
	Message  string  `json:"message"`
}

// DigestSubscription marks a user as receiving scheduled weekly summary reports
type DigestSubscription struct {
	UserID       string     `bson:"userId" json:"userId"`
	Email        string     `bson:"email" json:"email"`
	SubscribedAt time.Time  `bson:"subscribedAt" json:"subscribedAt"`
	NextTrigger  *time.Time `bson:"nextTrigger,omitempty" json:"nextTrigger,omitempty"` // optional override for testing
}

package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pulse-reports/internal/middleware"
	"pulse-reports/internal/models"
	"pulse-reports/internal/services"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store            *services.ReportStore
	orchestrator     *services.Orchestrator
	progressHub      *services.ProgressHub
	digestService    *services.DigestService
	assistantService *services.AssistantService
	emailService     *services.EmailService
	jwtService       *services.JWTService
}

// NewHandler creates a new API handler
func NewHandler(
	store *services.ReportStore,
	orchestrator *services.Orchestrator,
	progressHub *services.ProgressHub,
	digestService *services.DigestService,
	assistantService *services.AssistantService,
	emailService *services.EmailService,
	jwtService *services.JWTService,
) *Handler {
	return &Handler{
		store:            store,
		orchestrator:     orchestrator,
		progressHub:      progressHub,
		digestService:    digestService,
		assistantService: assistantService,
		emailService:     emailService,
		jwtService:       jwtService,
	}
}

// HealthCheck reports service liveness
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "pulse-reports"})
}

// CreateReport creates a report and starts generation in the background.
// A request matching a recent equivalent returns that report instead of
// creating a new one.
func (h *Handler) CreateReport(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	authToken := c.GetString(middleware.ContextAuthToken)

	var req models.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TimeRange != nil && !req.TimeRange.End.After(req.TimeRange.Start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timeRange.end must be after timeRange.start"})
		return
	}

	report, created, err := h.store.Create(c.Request.Context(), userID, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Coalesced requests must not start a second generation; the earlier
	// request's goroutine already owns the cancel handle for this report
	if created {
		h.startGeneration(report.ID, authToken)
	}

	c.JSON(http.StatusAccepted, report)
}

// GenerateReport re-runs generation for an existing report, including
// reports already in a terminal state
func (h *Handler) GenerateReport(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	authToken := c.GetString(middleware.ContextAuthToken)
	reportID := c.Param("id")

	report, err := h.loadOwnedReport(c, reportID, userID)
	if err != nil {
		return
	}

	if report.Status == models.ReportStatusGenerating {
		c.JSON(http.StatusConflict, gin.H{"error": "report is already generating"})
		return
	}

	h.startGeneration(report.ID, authToken)
	c.JSON(http.StatusAccepted, models.GenerateResponse{
		ReportID: report.ID,
		Status:   string(models.ReportStatusGenerating),
	})
}

// GetReport retrieves one report
func (h *Handler) GetReport(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	report, err := h.loadOwnedReport(c, c.Param("id"), userID)
	if err != nil {
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListReports retrieves the caller's reports with optional filters
func (h *Handler) ListReports(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	filter := models.ReportFilter{
		UserID: userID,
		Type:   models.ReportType(c.Query("type")),
		Status: models.ReportStatus(c.Query("status")),
		Limit:  parseInt64Query(c, "limit", 20),
		Offset: parseInt64Query(c, "offset", 0),
	}

	reports, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if reports == nil {
		reports = []models.Report{}
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

// UpdateReport edits a report's mutable fields
func (h *Handler) UpdateReport(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	var req models.UpdateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.store.Update(c.Request.Context(), c.Param("id"), userID, req)
	if err != nil {
		if errors.Is(err, services.ErrReportNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// DeleteReport removes a report
func (h *Handler) DeleteReport(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	err := h.store.Delete(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, services.ErrReportNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "report deleted"})
}

// EmailReport sends a completed report to an email address. The caller's
// own email is used when none is provided.
func (h *Handler) EmailReport(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	var body struct {
		Email string `json:"email"`
	}
	_ = c.ShouldBindJSON(&body)
	if body.Email == "" {
		body.Email = c.GetString(middleware.ContextUserEmail)
	}
	if body.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no destination email available"})
		return
	}

	report, err := h.loadOwnedReport(c, c.Param("id"), userID)
	if err != nil {
		return
	}
	if report.Status != models.ReportStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "report is not completed"})
		return
	}

	if err := h.emailService.SendReportEmail(body.Email, report); err != nil {
		log.Printf("WARNING: Failed to email report %s to %s: %v", report.ID, body.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send email"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "report sent"})
}

// SubscribeDigest subscribes the caller to the weekly digest email
func (h *Handler) SubscribeDigest(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	var req models.SubscribeDigestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var nextTrigger *time.Time
	if req.NextTrigger != nil {
		parsed, err := time.Parse(time.RFC3339, *req.NextTrigger)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "nextTrigger must be RFC3339"})
			return
		}
		nextTrigger = &parsed
	}

	if err := h.digestService.Subscribe(c.Request.Context(), userID, req.Email, nextTrigger); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "subscribed"})
}

// UnsubscribeDigest removes the caller's digest subscription
func (h *Handler) UnsubscribeDigest(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	if err := h.digestService.Unsubscribe(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unsubscribed"})
}

// GetDigestSubscription returns the caller's digest subscription
func (h *Handler) GetDigestSubscription(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	sub, err := h.digestService.GetSubscription(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not subscribed"})
		return
	}
	c.JSON(http.StatusOK, sub)
}

// ListAssistantTools lists the tools the assistant can execute
func (h *Handler) ListAssistantTools(c *gin.Context) {
	tools := h.assistantService.GetAllTools()
	descriptions := make([]gin.H, 0, len(tools))
	for _, tool := range tools {
		descriptions = append(descriptions, gin.H{
			"name":        tool.Name,
			"description": tool.Description,
			"parameters":  tool.Parameters,
		})
	}
	c.JSON(http.StatusOK, gin.H{"tools": descriptions})
}

// ExecuteAssistantTool executes a named assistant tool for the caller
func (h *Handler) ExecuteAssistantTool(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	authToken := c.GetString(middleware.ContextAuthToken)

	var req models.AssistantExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tool, ok := h.assistantService.GetTool(req.ToolName)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tool: " + req.ToolName})
		return
	}

	params := req.Params
	if params == nil {
		params = map[string]interface{}{}
	}

	result, err := tool.Execute(c.Request.Context(), userID, authToken, params)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tool": tool.Name, "result": result})
}

// startGeneration runs report generation in the background. The generation
// context is registered with the progress hub so a websocket cancel command
// can interrupt it between attempts.
func (h *Handler) startGeneration(reportID string, authToken string) {
	ctx, cancel := context.WithCancel(context.Background())
	h.progressHub.RegisterCancel(reportID, cancel)

	go func() {
		defer h.progressHub.ClearCancel(reportID)
		defer cancel()

		_, err := h.orchestrator.GenerateReport(ctx, reportID, authToken, h.progressHub)
		if err != nil {
			log.Printf("WARNING: Generation for report %s ended with error: %v", reportID, err)
			return
		}

		h.progressHub.Publish(models.ProgressEvent{
			ReportID: reportID,
			Progress: 1,
			Status:   "completed",
			Message:  "Report generation completed",
		})
	}()
}

// loadOwnedReport loads a report and verifies ownership, writing the error
// response itself when it fails
func (h *Handler) loadOwnedReport(c *gin.Context, reportID string, userID string) (*models.Report, error) {
	report, err := h.store.Get(c.Request.Context(), reportID)
	if err != nil {
		if errors.Is(err, services.ErrReportNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return nil, err
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, err
	}
	if report.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return nil, services.ErrReportNotFound
	}
	return report, nil
}

func parseInt64Query(c *gin.Context, key string, defaultValue int64) int64 {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return defaultValue
	}
	return value
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"pulse-reports/internal/models"
	"pulse-reports/internal/utils"
)

// ErrReportNotFound is returned when a report id does not exist
var ErrReportNotFound = errors.New("report not found")

// CoalescingWindow is the lookback used to fold duplicate create requests
// onto an existing report
const CoalescingWindow = 10 * time.Minute

// ReportDatabase is the document store contract the report store persists
// through
type ReportDatabase interface {
	InsertReport(ctx context.Context, report *models.Report) error
	FindReportByID(ctx context.Context, id string) (*models.Report, error)
	FindReports(ctx context.Context, filter models.ReportFilter) ([]models.Report, error)
	FindRecentSimilar(ctx context.Context, userID string, reportType models.ReportType, paramsHash string, timeRange models.TimeRange, since time.Time) (*models.Report, error)
	UpdateReportStatus(ctx context.Context, id string, status models.ReportStatus, errMsg string, now time.Time) error
	UpdateReportContent(ctx context.Context, id string, content map[string]interface{}, summary string, sections []models.ReportSection, now time.Time) error
	UpdateReportFields(ctx context.Context, id string, fields map[string]interface{}, now time.Time) error
	DeleteReport(ctx context.Context, id string) error
}

// Cache is the key/value cache contract. Get reports presence explicitly so
// a miss is distinguishable from an error.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// ReportStore owns report persistence, the read-through cache and the
// create-time dedup policy. Cache failures degrade to the database and are
// logged, never surfaced.
type ReportStore struct {
	db       ReportDatabase
	cache    Cache
	cacheTTL time.Duration
	now      func() time.Time
}

// NewReportStore creates a report store over a database and cache. cache
// may be nil, in which case every read goes to the database.
func NewReportStore(db ReportDatabase, cache Cache, cacheTTL time.Duration) *ReportStore {
	return &ReportStore{
		db:       db,
		cache:    cache,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Create creates a new pending report, or returns an existing one when an
// equivalent request was made within the coalescing window. The second
// return value reports whether a record was newly inserted, so callers only
// kick off generation for reports that are not already owned by an earlier
// request. The dedup check is a best-effort read before insert; concurrent
// identical requests can still both insert, which is accepted.
func (s *ReportStore) Create(ctx context.Context, userID string, req models.CreateReportRequest) (*models.Report, bool, error) {
	now := s.now()

	var timeRange models.TimeRange
	if req.TimeRange != nil {
		timeRange = *req.TimeRange
	} else {
		timeRange = utils.DefaultTimeRange(req.Type, now)
	}

	params := req.Parameters
	if params == nil {
		params = map[string]interface{}{}
	}
	paramsHash := utils.HashParams(params)

	existing, err := s.db.FindRecentSimilar(ctx, userID, req.Type, paramsHash, timeRange, now.Add(-CoalescingWindow))
	if err != nil {
		return nil, false, fmt.Errorf("failed to check for recent similar report: %w", err)
	}
	if existing != nil {
		log.Printf("Coalescing report request onto existing report %s (user %s, type %s)", existing.ID, userID, req.Type)
		return existing, false, nil
	}

	report := &models.Report{
		ID:           utils.GenerateUUID(),
		Title:        req.Title,
		Type:         req.Type,
		Status:       models.ReportStatusPending,
		UserID:       userID,
		Parameters:   params,
		ParamsHash:   paramsHash,
		TimeRange:    timeRange,
		CustomPrompt: req.CustomPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if report.Title == "" {
		report.Title = fmt.Sprintf("%s report %s", req.Type, utils.FormatDate(now))
	}

	if err := s.db.InsertReport(ctx, report); err != nil {
		return nil, false, err
	}

	s.invalidateListCache(ctx, userID)
	return report, true, nil
}

// Get retrieves a report by id through the cache
func (s *ReportStore) Get(ctx context.Context, id string) (*models.Report, error) {
	cacheKey := reportCacheKey(id)

	if s.cache != nil {
		cached, found, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			log.Printf("WARNING: Cache read failed for report %s: %v", id, err)
		} else if found {
			var report models.Report
			if err := json.Unmarshal([]byte(cached), &report); err == nil {
				return &report, nil
			}
			log.Printf("WARNING: Discarding undecodable cache entry for report %s", id)
		}
	}

	report, err := s.db.FindReportByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, ErrReportNotFound
	}

	s.cacheReport(ctx, report)
	return report, nil
}

// List retrieves a user's reports through the cache, keyed by the full
// filter tuple
func (s *ReportStore) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	cacheKey := listCacheKey(filter)

	if s.cache != nil {
		cached, found, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			log.Printf("WARNING: Cache read failed for report list (user %s): %v", filter.UserID, err)
		} else if found {
			var reports []models.Report
			if err := json.Unmarshal([]byte(cached), &reports); err == nil {
				return reports, nil
			}
			log.Printf("WARNING: Discarding undecodable list cache entry for user %s", filter.UserID)
		}
	}

	reports, err := s.db.FindReports(ctx, filter)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(reports); err == nil {
			if err := s.cache.Set(ctx, cacheKey, string(data), s.cacheTTL); err != nil {
				log.Printf("WARNING: Cache write failed for report list (user %s): %v", filter.UserID, err)
			}
		}
	}
	return reports, nil
}

// UpdateStatus transitions a report's status. Transitions outside the
// status machine are rejected.
func (s *ReportStore) UpdateStatus(ctx context.Context, id string, status models.ReportStatus, errMsg string) error {
	report, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !models.CanTransition(report.Status, status) {
		return fmt.Errorf("invalid status transition %s -> %s for report %s", report.Status, status, id)
	}

	if err := s.db.UpdateReportStatus(ctx, id, status, errMsg, s.now()); err != nil {
		return err
	}

	s.invalidateReportCache(ctx, id, report.UserID)
	return nil
}

// UpdateContent writes generated content, which always completes the report
func (s *ReportStore) UpdateContent(ctx context.Context, id string, envelope *models.Envelope) error {
	report, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.db.UpdateReportContent(ctx, id, envelope.Content, envelope.Summary, envelope.Sections, s.now()); err != nil {
		return err
	}

	s.invalidateReportCache(ctx, id, report.UserID)
	return nil
}

// Update applies a partial edit of the user-editable fields. Generation
// state is not touched here.
func (s *ReportStore) Update(ctx context.Context, id string, userID string, req models.UpdateReportRequest) (*models.Report, error) {
	report, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.UserID != userID {
		return nil, ErrReportNotFound
	}

	fields := map[string]interface{}{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Parameters != nil {
		fields["parameters"] = req.Parameters
		fields["paramsHash"] = utils.HashParams(req.Parameters)
	}
	if req.CustomPrompt != nil {
		fields["customPrompt"] = *req.CustomPrompt
	}
	if len(fields) == 0 {
		return report, nil
	}

	if err := s.db.UpdateReportFields(ctx, id, fields, s.now()); err != nil {
		return nil, err
	}

	s.invalidateReportCache(ctx, id, userID)
	return s.Get(ctx, id)
}

// Delete removes a report owned by the user
func (s *ReportStore) Delete(ctx context.Context, id string, userID string) error {
	report, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if report.UserID != userID {
		return ErrReportNotFound
	}

	if err := s.db.DeleteReport(ctx, id); err != nil {
		return err
	}

	s.invalidateReportCache(ctx, id, userID)
	return nil
}

func (s *ReportStore) cacheReport(ctx context.Context, report *models.Report) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, reportCacheKey(report.ID), string(data), s.cacheTTL); err != nil {
		log.Printf("WARNING: Cache write failed for report %s: %v", report.ID, err)
	}
}

// invalidateReportCache drops the single-report entry and every list entry
// for the owning user. Over-invalidation is preferred to stale lists.
func (s *ReportStore) invalidateReportCache(ctx context.Context, id string, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, reportCacheKey(id)); err != nil {
		log.Printf("WARNING: Cache invalidation failed for report %s: %v", id, err)
	}
	s.invalidateListCache(ctx, userID)
}

func (s *ReportStore) invalidateListCache(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, listCachePrefix(userID)); err != nil {
		log.Printf("WARNING: List cache invalidation failed for user %s: %v", userID, err)
	}
}

func reportCacheKey(id string) string {
	return "report:" + id
}

func listCachePrefix(userID string) string {
	return "reports:" + userID + ":"
}

func listCacheKey(filter models.ReportFilter) string {
	tuple := fmt.Sprintf("type=%s;status=%s;limit=%d;offset=%d",
		filter.Type, filter.Status, filter.Limit, filter.Offset)
	return listCachePrefix(filter.UserID) + utils.HashKey(tuple)
}

package database

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pulse-reports/internal/config"
	"pulse-reports/internal/models"
)

// MongoDBClient wraps the MongoDB client for report persistence
type MongoDBClient struct {
	client                  *mongo.Client
	database                *mongo.Database
	reportsCollection       *mongo.Collection
	subscriptionsCollection *mongo.Collection
}

// NewMongoDBClient creates a new MongoDB client for report persistence
func NewMongoDBClient(cfg config.MongoDBConfig) (*MongoDBClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Build connection URI
	uri := cfg.URI
	if uri == "" {
		// Build URI from components if URI not provided
		if cfg.Username != "" && cfg.Password != "" {
			userInfo := url.UserPassword(cfg.Username, cfg.Password)
			uri = fmt.Sprintf("mongodb://%s@%s:%s/%s?authSource=%s",
				userInfo.String(),
				cfg.Host,
				cfg.Port,
				cfg.Database,
				url.QueryEscape(cfg.AuthSource),
			)
		} else {
			uri = fmt.Sprintf("mongodb://%s:%s/%s", cfg.Host, cfg.Port, cfg.Database)
		}
	}

	// Log connection attempt (mask password)
	logURI := uri
	if cfg.Password != "" && cfg.Username != "" {
		logURI = fmt.Sprintf("mongodb://%s:***@%s:%s/%s", cfg.Username, cfg.Host, cfg.Port, cfg.Database)
	}
	log.Printf("Attempting to connect to MongoDB at %s", logURI)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB at %s: %w", logURI, err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB at %s: %w", logURI, err)
	}

	database := client.Database(cfg.Database)
	reports := database.Collection("reports")
	subscriptions := database.Collection("digest_subscriptions")

	// Compound index backing the coalescing query
	dedupIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "userId", Value: 1},
			{Key: "type", Value: 1},
			{Key: "paramsHash", Value: 1},
			{Key: "createdAt", Value: -1},
		},
	}
	if _, err := reports.Indexes().CreateOne(ctx, dedupIndex); err != nil {
		// Index might already exist, that's okay
		log.Printf("Note: MongoDB reports index creation: %v", err)
	}

	// Listing index
	listIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	}
	if _, err := reports.Indexes().CreateOne(ctx, listIndex); err != nil {
		log.Printf("Note: MongoDB reports list index creation: %v", err)
	}

	// One subscription per user
	subIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := subscriptions.Indexes().CreateOne(ctx, subIndex); err != nil {
		log.Printf("Note: MongoDB subscriptions index creation: %v", err)
	}

	return &MongoDBClient{
		client:                  client,
		database:                database,
		reportsCollection:       reports,
		subscriptionsCollection: subscriptions,
	}, nil
}

// Close closes the MongoDB client connection
func (c *MongoDBClient) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}

// InsertReport inserts a new report document
func (c *MongoDBClient) InsertReport(ctx context.Context, report *models.Report) error {
	_, err := c.reportsCollection.InsertOne(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// FindReportByID retrieves a report by id. Returns nil when no document matches.
func (c *MongoDBClient) FindReportByID(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	err := c.reportsCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&report)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query report: %w", err)
	}
	return &report, nil
}

// FindReports retrieves reports matching a filter, newest first
func (c *MongoDBClient) FindReports(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	query := bson.M{"userId": filter.UserID}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	if filter.Offset > 0 {
		opts.SetSkip(filter.Offset)
	}

	cursor, err := c.reportsCollection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer cursor.Close(ctx)

	var reports []models.Report
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("failed to decode reports: %w", err)
	}
	return reports, nil
}

// FindRecentSimilar looks for a report with the same user, type, parameters
// and time range created at or after the threshold, in a reusable status.
// Returns nil when nothing matches. The read is not atomic with the
// subsequent insert; duplicates under concurrent identical requests are
// possible and accepted.
func (c *MongoDBClient) FindRecentSimilar(
	ctx context.Context,
	userID string,
	reportType models.ReportType,
	paramsHash string,
	timeRange models.TimeRange,
	since time.Time,
) (*models.Report, error) {
	query := bson.M{
		"userId":          userID,
		"type":            reportType,
		"paramsHash":      paramsHash,
		"timeRange.start": timeRange.Start,
		"timeRange.end":   timeRange.End,
		"status": bson.M{"$in": []models.ReportStatus{
			models.ReportStatusPending,
			models.ReportStatusGenerating,
			models.ReportStatusCompleted,
		}},
		"createdAt": bson.M{"$gte": since},
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var report models.Report
	err := c.reportsCollection.FindOne(ctx, query, opts).Decode(&report)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query similar reports: %w", err)
	}
	return &report, nil
}

// UpdateReportStatus sets the status (and error message) of a report.
// completedAt is set when transitioning to completed.
func (c *MongoDBClient) UpdateReportStatus(ctx context.Context, id string, status models.ReportStatus, errMsg string, now time.Time) error {
	set := bson.M{
		"status":    status,
		"updatedAt": now,
	}
	if errMsg != "" {
		set["error"] = errMsg
	} else {
		set["error"] = ""
	}
	if status == models.ReportStatusCompleted {
		set["completedAt"] = now
	}

	result, err := c.reportsCollection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update report status: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("report not found: %s", id)
	}
	return nil
}

// UpdateReportContent writes generated content and marks the report
// completed. There is no reachable completed-without-content state.
func (c *MongoDBClient) UpdateReportContent(
	ctx context.Context,
	id string,
	content map[string]interface{},
	summary string,
	sections []models.ReportSection,
	now time.Time,
) error {
	set := bson.M{
		"content":     content,
		"summary":     summary,
		"sections":    sections,
		"status":      models.ReportStatusCompleted,
		"error":       "",
		"updatedAt":   now,
		"completedAt": now,
	}

	result, err := c.reportsCollection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update report content: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("report not found: %s", id)
	}
	return nil
}

// UpdateReportFields applies a partial update of user-editable fields
func (c *MongoDBClient) UpdateReportFields(ctx context.Context, id string, fields map[string]interface{}, now time.Time) error {
	set := bson.M{"updatedAt": now}
	for k, v := range fields {
		set[k] = v
	}

	result, err := c.reportsCollection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("report not found: %s", id)
	}
	return nil
}

// DeleteReport removes a report document
func (c *MongoDBClient) DeleteReport(ctx context.Context, id string) error {
	result, err := c.reportsCollection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("report not found: %s", id)
	}
	return nil
}

// AddSubscription adds (or replaces) a digest subscription for a user
func (c *MongoDBClient) AddSubscription(ctx context.Context, sub models.DigestSubscription) error {
	opts := options.Update().SetUpsert(true)
	filter := bson.M{"userId": sub.UserID}
	update := bson.M{"$set": sub}

	if _, err := c.subscriptionsCollection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to add digest subscription: %w", err)
	}
	return nil
}

// RemoveSubscription removes a user's digest subscription
func (c *MongoDBClient) RemoveSubscription(ctx context.Context, userID string) error {
	if _, err := c.subscriptionsCollection.DeleteOne(ctx, bson.M{"userId": userID}); err != nil {
		return fmt.Errorf("failed to remove digest subscription: %w", err)
	}
	return nil
}

// GetSubscription retrieves a user's digest subscription, nil when absent
func (c *MongoDBClient) GetSubscription(ctx context.Context, userID string) (*models.DigestSubscription, error) {
	var sub models.DigestSubscription
	err := c.subscriptionsCollection.FindOne(ctx, bson.M{"userId": userID}).Decode(&sub)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query digest subscription: %w", err)
	}
	return &sub, nil
}

// GetAllSubscriptions retrieves every digest subscription
func (c *MongoDBClient) GetAllSubscriptions(ctx context.Context) ([]models.DigestSubscription, error) {
	cursor, err := c.subscriptionsCollection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to query digest subscriptions: %w", err)
	}
	defer cursor.Close(ctx)

	var subs []models.DigestSubscription
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, fmt.Errorf("failed to decode digest subscriptions: %w", err)
	}
	return subs, nil
}

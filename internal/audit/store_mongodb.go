package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// auditCollection is the record-store collection name.
const auditCollection = "audit_logs"

// MongoStore implements RecordStore for MongoDB, the default document store.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates a MongoDB record store. It creates query indexes and,
// when retention is configured, a TTL index so MongoDB expires old entries on
// its own in addition to the on-demand cleanup path.
func NewMongoStore(database *mongo.Database, retentionDays int) (*MongoStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}

	collection := database.Collection(auditCollection)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "action", Value: 1}}},
		{Keys: bson.D{{Key: "entity", Value: 1}}},
		{Keys: bson.D{{Key: "status_code", Value: 1}}},
		{Keys: bson.D{{Key: "correlation_id", Value: 1}}},
	}
	if retentionDays > 0 {
		ttlSeconds := int32(retentionDays * 24 * 60 * 60)
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(ttlSeconds),
		})
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		// Indexes may already exist; don't fail startup over it.
		slog.Warn("failed to create some MongoDB indexes", "error", err)
	}

	return &MongoStore{collection: collection}, nil
}

// Insert writes a single entry.
func (s *MongoStore) Insert(ctx context.Context, entry *LogEntry) error {
	if entry == nil {
		return nil
	}
	if _, err := s.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Count returns the total number of stored entries.
func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	count, err := s.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count audit records: %w", err)
	}
	return count, nil
}

// DeleteBefore removes entries older than the cutoff.
func (s *MongoStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, bson.D{
		{Key: "timestamp", Value: bson.D{{Key: "$lt", Value: cutoff}}},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit records: %w", err)
	}
	return res.DeletedCount, nil
}

// List returns a filtered page of entries, newest first.
func (s *MongoStore) List(ctx context.Context, params ListParams) (*ListResult, error) {
	limit, offset := clampLimitOffset(params.Limit, params.Offset)

	filter := bson.D{}
	if params.Action != "" {
		filter = append(filter, bson.E{Key: "action", Value: params.Action})
	}
	if params.Entity != "" {
		filter = append(filter, bson.E{Key: "entity", Value: params.Entity})
	}
	if params.StatusCode != nil {
		filter = append(filter, bson.E{Key: "status_code", Value: *params.StatusCode})
	}

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit records: %w", err)
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]LogEntry, 0, limit)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode audit records: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}, nil
}

// Close is a no-op; the client is managed by the storage layer.
func (s *MongoStore) Close() error {
	return nil
}

// listDefaults bounds admin pagination.
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func clampLimitOffset(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

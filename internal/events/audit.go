package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// Event types recorded in the audit trail.
const (
	EventUpload    = "upload"
	EventDelete    = "delete"
	EventDownload  = "download"
	EventAnalyze   = "analyze"
	EventReanalyze = "reanalyze"
	EventSync      = "sync"
)

// AuditEvent is one entry in the audit trail, persisted alongside the file
// metadata.
type AuditEvent struct {
	ID        string         `bson:"event_id" json:"event_id"`
	EventType string         `bson:"event_type" json:"event_type"`
	Resource  string         `bson:"resource" json:"resource"`
	User      string         `bson:"user" json:"user"`
	Timestamp time.Time      `bson:"timestamp" json:"timestamp"`
	Details   map[string]any `bson:"details,omitempty" json:"details,omitempty"`
}

// Recorder persists audit events. Recording is best-effort: a failed write
// is logged and dropped, never surfaced to the caller.
type Recorder interface {
	Record(ctx context.Context, eventType, resource, user string, details map[string]any)
}

// MongoRecorder writes audit events to a MongoDB collection.
type MongoRecorder struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

func NewMongoRecorder(collection *mongo.Collection, logger *slog.Logger) *MongoRecorder {
	return &MongoRecorder{
		collection: collection,
		logger:     logger.With(slog.String("component", "audit")),
	}
}

func (r *MongoRecorder) Record(ctx context.Context, eventType, resource, user string, details map[string]any) {
	event := AuditEvent{
		ID:        uuid.New().String(),
		EventType: eventType,
		Resource:  resource,
		User:      user,
		Timestamp: time.Now().UTC(),
		Details:   details,
	}

	if _, err := r.collection.InsertOne(ctx, event); err != nil {
		r.logger.Warn("Failed to record audit event",
			"event_type", eventType,
			"resource", resource,
			"error", err.Error())
	}
}

// NopRecorder discards events; used when auditing is not configured and in
// tests.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, string, string, string, map[string]any) {}

package mongo

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/devanshpatel/filevault/internal/config"
	"github.com/devanshpatel/filevault/internal/storage"
	"github.com/devanshpatel/filevault/internal/types"
)

// Store implements storage.MetadataStore on a MongoDB collection.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	files  *mongo.Collection
}

// NewStore connects to MongoDB and prepares the files collection, including
// the indexes the worker queries rely on.
func NewStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(cfg.Mongo.Database)
	s := &Store{
		client: client,
		db:     db,
		files:  db.Collection(cfg.Mongo.Collection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return s, nil
}

// ensureIndexes creates the unique document key plus the two status indexes
// the workers filter on every pass.
func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.files.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "filename", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "ai_analysis_status", Value: 1}}},
	})
	return err
}

// AuditCollection returns the collection the audit recorder writes to.
func (s *Store) AuditCollection() *mongo.Collection {
	return s.db.Collection("audit_logs")
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Insert(ctx context.Context, rec *types.FileRecord) error {
	_, err := s.files.InsertOne(ctx, rec)
	if err != nil {
		return fmt.Errorf("failed to insert file record: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, ownerID, filename string) (*types.FileRecord, error) {
	var rec types.FileRecord
	err := s.files.FindOne(ctx, bson.M{"user_id": ownerID, "filename": filename}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch file record: %w", err)
	}
	return &rec, nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]types.FileRecord, error) {
	return s.list(ctx, bson.M{"user_id": ownerID})
}

// ListSyncCandidates pushes the candidate filter into the indexed status
// field instead of listing everything and filtering in-process.
func (s *Store) ListSyncCandidates(ctx context.Context) ([]types.FileRecord, error) {
	filter := bson.M{"status": bson.M{"$nin": bson.A{
		string(types.SyncStatusUploaded),
		string(types.SyncStatusInfected),
	}}}
	return s.list(ctx, filter)
}

func (s *Store) ListPendingAnalysis(ctx context.Context) ([]types.FileRecord, error) {
	return s.list(ctx, bson.M{"ai_analysis_status": string(types.AnalysisStatusPending)})
}

func (s *Store) list(ctx context.Context, filter bson.M) ([]types.FileRecord, error) {
	cursor, err := s.files.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query file records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []types.FileRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode file records: %w", err)
	}
	return records, nil
}

func (s *Store) Update(ctx context.Context, ownerID, filename string, fields map[string]any) (bool, error) {
	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	set["last_updated"] = time.Now().UTC().Format(time.RFC3339)

	res, err := s.files.UpdateOne(ctx,
		bson.M{"user_id": ownerID, "filename": filename},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update file record: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

// ClaimForAnalysis is a compare-and-swap: the status filter and the update run
// as one document operation, so only one claimant wins.
func (s *Store) ClaimForAnalysis(ctx context.Context, ownerID, filename string) (bool, error) {
	res, err := s.files.UpdateOne(ctx,
		bson.M{
			"user_id":            ownerID,
			"filename":           filename,
			"ai_analysis_status": string(types.AnalysisStatusPending),
		},
		bson.M{"$set": bson.M{
			"ai_analysis_status": string(types.AnalysisStatusProcessing),
			"last_updated":       time.Now().UTC().Format(time.RFC3339),
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim record for analysis: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

func (s *Store) SearchByKeyword(ctx context.Context, ownerID, query string) ([]types.FileRecord, error) {
	return s.list(ctx, keywordFilter(ownerID, query))
}

// keywordFilter builds the case-insensitive substring match over an owner's
// completed analyses. The query is a literal, not a user-supplied pattern.
func keywordFilter(ownerID, query string) bson.M {
	return bson.M{
		"user_id":            ownerID,
		"ai_analysis_status": string(types.AnalysisStatusCompleted),
		"ai_analysis.keywords": bson.M{
			"$regex":   regexp.QuoteMeta(query),
			"$options": "i",
		},
	}
}

func (s *Store) Delete(ctx context.Context, ownerID, filename string) error {
	res, err := s.files.DeleteOne(ctx, bson.M{"user_id": ownerID, "filename": filename})
	if err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

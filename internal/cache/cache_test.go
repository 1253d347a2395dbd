package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/devanshpatel/filevault/internal/storage"
	"github.com/devanshpatel/filevault/internal/types"
)

// setupTestRedis creates an in-memory Redis server for testing
func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
		DB:   0,
	})

	if _, err = redisClient.Ping(context.Background()).Result(); err != nil {
		t.Fatalf("Failed to connect to test Redis: %v", err)
	}

	cleanup := func() {
		redisClient.Close()
		mr.Close()
	}

	return redisClient, cleanup
}

// countingStore serves fixed records and counts store hits, so tests can tell
// cache hits from misses.
type countingStore struct {
	records   map[string]*types.FileRecord
	listCalls int
	getCalls  int
}

func (s *countingStore) Insert(ctx context.Context, rec *types.FileRecord) error { return nil }

func (s *countingStore) Get(ctx context.Context, ownerID, filename string) (*types.FileRecord, error) {
	s.getCalls++
	rec, ok := s.records[ownerID+"/"+filename]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (s *countingStore) ListByOwner(ctx context.Context, ownerID string) ([]types.FileRecord, error) {
	s.listCalls++
	var out []types.FileRecord
	for _, rec := range s.records {
		if rec.OwnerID == ownerID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *countingStore) ListSyncCandidates(ctx context.Context) ([]types.FileRecord, error) {
	return nil, nil
}

func (s *countingStore) ListPendingAnalysis(ctx context.Context) ([]types.FileRecord, error) {
	return nil, nil
}

func (s *countingStore) Update(ctx context.Context, ownerID, filename string, fields map[string]any) (bool, error) {
	return false, nil
}

func (s *countingStore) ClaimForAnalysis(ctx context.Context, ownerID, filename string) (bool, error) {
	return false, nil
}

func (s *countingStore) SearchByKeyword(ctx context.Context, ownerID, query string) ([]types.FileRecord, error) {
	return nil, nil
}

func (s *countingStore) Delete(ctx context.Context, ownerID, filename string) error { return nil }

func testRecord(owner, filename string) *types.FileRecord {
	return &types.FileRecord{
		OwnerID:          owner,
		Filename:         filename,
		SyncStatus:       types.SyncStatusMinio,
		ScanStatus:       types.ScanStatusPending,
		AIAnalysisStatus: types.AnalysisStatusPending,
	}
}

func TestListByOwnerCachesListing(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	store := &countingStore{records: map[string]*types.FileRecord{
		"alice/a.txt": testRecord("alice", "a.txt"),
		"alice/b.txt": testRecord("alice", "b.txt"),
	}}
	service := NewService(store, redisClient)
	ctx := context.Background()

	first, err := service.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(first))
	}

	second, err := service.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(second))
	}

	if store.listCalls != 1 {
		t.Fatalf("Expected 1 store hit, got %d", store.listCalls)
	}
}

func TestGetRecordCachesRecord(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	store := &countingStore{records: map[string]*types.FileRecord{
		"bob/doc.pdf": testRecord("bob", "doc.pdf"),
	}}
	service := NewService(store, redisClient)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec, err := service.GetRecord(ctx, "bob", "doc.pdf")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if rec.Filename != "doc.pdf" {
			t.Fatalf("Unexpected record: %+v", rec)
		}
	}

	if store.getCalls != 1 {
		t.Fatalf("Expected 1 store hit, got %d", store.getCalls)
	}
}

func TestGetRecordNotFoundIsNotCached(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	store := &countingStore{records: map[string]*types.FileRecord{}}
	service := NewService(store, redisClient)

	if _, err := service.GetRecord(context.Background(), "bob", "nope.txt"); err != storage.ErrNotFound {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestInvalidateClearsListingAndRecords(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	store := &countingStore{records: map[string]*types.FileRecord{
		"carol/x.txt": testRecord("carol", "x.txt"),
	}}
	service := NewService(store, redisClient)
	ctx := context.Background()

	// Warm both caches
	if _, err := service.ListByOwner(ctx, "carol"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := service.GetRecord(ctx, "carol", "x.txt"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	service.Invalidate(ctx, "carol", "x.txt")

	// Both reads go back to the store
	if _, err := service.ListByOwner(ctx, "carol"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := service.GetRecord(ctx, "carol", "x.txt"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if store.listCalls != 2 {
		t.Errorf("Expected listing refetched after invalidation, store hits = %d", store.listCalls)
	}
	if store.getCalls != 2 {
		t.Errorf("Expected record refetched after invalidation, store hits = %d", store.getCalls)
	}
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/devanshpatel/filevault/internal/storage"
	"github.com/devanshpatel/filevault/internal/types"
)

// Service wraps the metadata store with Redis caching for the read path.
// The workers write through the store directly; every status they flip is
// short-lived here, so listings stay close to live without hammering Mongo
// on every poll from the UI.
type Service struct {
	store storage.MetadataStore
	redis *redis.Client
}

// NewService creates a new cache service
func NewService(store storage.MetadataStore, redisClient *redis.Client) *Service {
	return &Service{
		store: store,
		redis: redisClient,
	}
}

// Cache key patterns
const (
	OwnerFilesKey = "files:owner:%s"  // files:owner:ownerID
	FileRecordKey = "file:%s:%s"      // file:ownerID:filename
)

// Cache durations
const (
	ListingCacheDuration = 30 * time.Second // listings chase worker status flips
	RecordCacheDuration  = time.Minute      // single-record lookups
)

// ListByOwner returns the owner's cached file listing or fetches it from the
// store.
func (c *Service) ListByOwner(ctx context.Context, ownerID string) ([]types.FileRecord, error) {
	key := fmt.Sprintf(OwnerFilesKey, ownerID)

	// Try cache first
	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var records []types.FileRecord
		if err := json.Unmarshal([]byte(cached), &records); err == nil {
			return records, nil
		}
	}

	// Cache miss - fetch from the store
	records, err := c.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	data, _ := json.Marshal(records)
	c.redis.Set(ctx, key, data, ListingCacheDuration)

	return records, nil
}

// GetRecord returns one cached file record or fetches it from the store.
func (c *Service) GetRecord(ctx context.Context, ownerID, filename string) (*types.FileRecord, error) {
	key := fmt.Sprintf(FileRecordKey, ownerID, filename)

	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var rec types.FileRecord
		if err := json.Unmarshal([]byte(cached), &rec); err == nil {
			return &rec, nil
		}
	}

	rec, err := c.store.Get(ctx, ownerID, filename)
	if err != nil {
		return nil, err
	}

	data, _ := json.Marshal(rec)
	c.redis.Set(ctx, key, data, RecordCacheDuration)

	return rec, nil
}

// Invalidate clears the cached listing for an owner plus any named records.
// Called on upload, delete and explicit status mutations.
func (c *Service) Invalidate(ctx context.Context, ownerID string, filenames ...string) {
	keys := []string{fmt.Sprintf(OwnerFilesKey, ownerID)}
	for _, filename := range filenames {
		keys = append(keys, fmt.Sprintf(FileRecordKey, ownerID, filename))
	}

	c.redis.Del(ctx, keys...)
}

package objectstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the object does not exist.
var ErrNotFound = errors.New("object not found")

// PresignedURLTTL is how long generated preview/download links stay valid.
const PresignedURLTTL = 24 * time.Hour

// URLs are the two presigned links handed to clients for one object: an
// inline preview and an attachment download.
type URLs struct {
	Preview  string
	Download string
}

// Store is the capability interface over one object tier. The hot tier
// (MinIO) and the cold tier (S3) both satisfy it, keyed by owner-scoped
// "{owner}/{filename}" object keys.
type Store interface {
	Put(ctx context.Context, ownerID, filename string, data []byte, contentType string) error
	Get(ctx context.Context, ownerID, filename string) ([]byte, error)
	Delete(ctx context.Context, ownerID, filename string) error
	PresignedURLs(ctx context.Context, ownerID, filename string) (*URLs, error)

	// Available reports whether the tier is configured and reachable.
	// An unavailable tier is skipped, not an error.
	Available() bool
}

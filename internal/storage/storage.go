package storage

import (
	"context"
	"errors"

	"github.com/devanshpatel/filevault/internal/types"
)

// ErrNotFound is returned when no record matches (owner, filename).
var ErrNotFound = errors.New("file record not found")

// MetadataStore holds one FileRecord per (owner, filename) and is the only
// shared mutable state between the request path and the background workers.
// All mutation goes through single-document partial updates.
type MetadataStore interface {
	Insert(ctx context.Context, rec *types.FileRecord) error
	Get(ctx context.Context, ownerID, filename string) (*types.FileRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]types.FileRecord, error)

	// ListSyncCandidates returns records whose sync status is neither
	// uploaded-to-s3 nor infected. sync-failed records are included so that
	// transient cold-tier outages are retried on later passes.
	ListSyncCandidates(ctx context.Context) ([]types.FileRecord, error)

	// ListPendingAnalysis returns records with ai_analysis_status == pending.
	ListPendingAnalysis(ctx context.Context) ([]types.FileRecord, error)

	// Update applies the given fields to the record and reports whether a
	// document was modified.
	Update(ctx context.Context, ownerID, filename string, fields map[string]any) (bool, error)

	// ClaimForAnalysis atomically flips ai_analysis_status from pending to
	// processing. It returns false when the record was already claimed (or
	// re-statused) by someone else, making the claim safe across multiple
	// worker instances.
	ClaimForAnalysis(ctx context.Context, ownerID, filename string) (bool, error)

	// SearchByKeyword finds an owner's completed analyses whose keywords
	// match the query (case-insensitive substring).
	SearchByKeyword(ctx context.Context, ownerID, query string) ([]types.FileRecord, error)

	Delete(ctx context.Context, ownerID, filename string) error
}

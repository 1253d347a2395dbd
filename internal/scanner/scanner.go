package scanner

import "context"

// Result is a single scan verdict.
type Result struct {
	Infected  bool
	Signature string
}

// Scanner streams file bytes through a malware scanning daemon.
type Scanner interface {
	Scan(ctx context.Context, data []byte) (*Result, error)

	// Available reports whether the scanning daemon answers. Scanning is
	// best-effort in the sync worker and fail-closed at upload time.
	Available() bool
}

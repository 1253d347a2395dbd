package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/devanshpatel/filevault/internal/objectstore"
	"github.com/devanshpatel/filevault/internal/scanner"
	"github.com/devanshpatel/filevault/internal/storage"
	"github.com/devanshpatel/filevault/internal/types"
)

// SyncWorker mirrors clean hot-tier files to the cold tier. Each pass selects
// records whose sync status is neither uploaded-to-s3 nor infected, scans
// them when a scanner is configured, uploads the clean ones and records the
// outcome on the file record. sync-failed records are picked up again on the
// next pass, which is how transient cold-tier outages recover.
type SyncWorker struct {
	store       storage.MetadataStore
	hot         objectstore.Store
	cold        objectstore.Store
	scanner     scanner.Scanner // nil when scanning is not configured
	interval    time.Duration
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewSyncWorker wires the sync worker. scan may be nil.
func NewSyncWorker(
	store storage.MetadataStore,
	hot objectstore.Store,
	cold objectstore.Store,
	scan scanner.Scanner,
	interval time.Duration,
	callTimeout time.Duration,
	logger *slog.Logger,
) *SyncWorker {
	return &SyncWorker{
		store:       store,
		hot:         hot,
		cold:        cold,
		scanner:     scan,
		interval:    interval,
		callTimeout: callTimeout,
		logger:      logger.With(slog.String("component", "sync_worker")),
	}
}

// Enabled reports whether the worker has a cold tier to sync to.
func (w *SyncWorker) Enabled() bool {
	return w.cold != nil && w.cold.Available()
}

// Run executes passes until the context is cancelled. The first pass runs
// immediately, then one per interval.
func (w *SyncWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Sync worker started", "interval", w.interval.String())

	w.Pass(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Sync worker shutting down")
			return
		case <-ticker.C:
			w.Pass(ctx)
		}
	}
}

// Pass runs one full sweep over the current sync candidates. A failing file
// never aborts the batch; the pass itself only logs when candidate listing
// fails, leaving everything for the next cycle.
func (w *SyncWorker) Pass(ctx context.Context) {
	startTime := time.Now()

	if !w.cold.Available() {
		w.logger.Info("Cold tier unavailable, skipping sync pass")
		return
	}

	listCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	candidates, err := w.store.ListSyncCandidates(listCtx)
	cancel()
	if err != nil {
		w.logger.Error("Failed to list sync candidates", "error", err.Error())
		return
	}

	if len(candidates) == 0 {
		return
	}

	w.logger.Info("Starting sync pass", "candidates", len(candidates))

	for i := range candidates {
		if ctx.Err() != nil {
			return
		}
		w.syncFile(ctx, &candidates[i])
	}

	w.logger.Info("Completed sync pass",
		"candidates", len(candidates),
		"duration_ms", time.Since(startTime).Milliseconds())
}

// syncFile drives one record through fetch -> scan -> upload -> persist.
// Every failure, panics included, becomes a sync-failed status update.
func (w *SyncWorker) syncFile(ctx context.Context, rec *types.FileRecord) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Panic while syncing file",
				"owner", rec.OwnerID, "filename", rec.Filename, "panic", fmt.Sprint(r))
			w.markSyncFailed(ctx, rec, fmt.Sprintf("internal error: %v", r))
		}
	}()

	logger := w.logger.With("owner", rec.OwnerID, "filename", rec.Filename)

	getCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	data, err := w.hot.Get(getCtx, rec.OwnerID, rec.Filename)
	cancel()
	if errors.Is(err, objectstore.ErrNotFound) {
		logger.Warn("File missing in hot tier")
		w.markSyncFailed(ctx, rec, "file missing in hot storage")
		return
	}
	if err != nil {
		logger.Error("Failed to fetch file from hot tier", "error", err.Error())
		w.markSyncFailed(ctx, rec, fmt.Sprintf("hot tier fetch failed: %v", err))
		return
	}

	// Scanning here is best-effort: uploads were already scanned fail-closed
	// on the request path, so an unreachable daemon must not stall the sync.
	if w.scanner != nil {
		if !w.scanner.Available() {
			logger.Warn("Scanner unavailable, skipping scan")
		} else if infected := w.scanFile(ctx, rec, data, logger); infected {
			return
		}
	}

	putCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	err = w.cold.Put(putCtx, rec.OwnerID, rec.Filename, data, rec.ContentType)
	cancel()
	if err != nil {
		logger.Error("Failed to upload file to cold tier", "error", err.Error())
		w.markSyncFailed(ctx, rec, fmt.Sprintf("cold tier upload failed: %v", err))
		return
	}

	presignCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	urls, err := w.cold.PresignedURLs(presignCtx, rec.OwnerID, rec.Filename)
	cancel()
	if err != nil {
		// Object is uploaded but unlinked; retry the whole file next pass,
		// the re-upload is idempotent.
		logger.Error("Failed to presign cold tier URLs", "error", err.Error())
		w.markSyncFailed(ctx, rec, fmt.Sprintf("cold tier presign failed: %v", err))
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	defer cancel()
	_, err = w.store.Update(updateCtx, rec.OwnerID, rec.Filename, map[string]any{
		"status":          string(types.SyncStatusUploaded),
		"s3_preview_url":  urls.Preview,
		"s3_download_url": urls.Download,
		"s3_synced_at":    time.Now().UTC().Format(time.RFC3339),
		"sync_error":      "",
	})
	if err != nil {
		logger.Error("Failed to persist sync result", "error", err.Error())
		return
	}

	logger.Info("File synced to cold tier")
}

// scanFile streams the bytes through the scanner. It returns true when the
// file is infected and the record has been quarantined. Scanner errors are
// logged and ignored; the file proceeds to upload.
func (w *SyncWorker) scanFile(ctx context.Context, rec *types.FileRecord, data []byte, logger *slog.Logger) bool {
	scanCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	result, err := w.scanner.Scan(scanCtx, data)
	cancel()
	if err != nil {
		logger.Warn("Scan failed, proceeding without verdict", "error", err.Error())
		return false
	}

	now := time.Now().UTC().Format(time.RFC3339)

	if result.Infected {
		logger.Warn("Virus detected, quarantining file", "signature", result.Signature)
		updateCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
		defer cancel()
		// Quarantine closes the analysis state machine too; infected
		// content must never reach the analyzer.
		_, err := w.store.Update(updateCtx, rec.OwnerID, rec.Filename, map[string]any{
			"status":             string(types.SyncStatusInfected),
			"scan_status":        string(types.ScanStatusInfected),
			"virus_name":         result.Signature,
			"scanned_at":         now,
			"ai_analysis_status": string(types.AnalysisStatusFailed),
			"ai_error":           "file blocked by virus scan",
		})
		if err != nil {
			logger.Error("Failed to persist infection status", "error", err.Error())
		}
		return true
	}

	updateCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	defer cancel()
	_, err = w.store.Update(updateCtx, rec.OwnerID, rec.Filename, map[string]any{
		"scan_status": string(types.ScanStatusClean),
		"scanned_at":  now,
	})
	if err != nil {
		logger.Error("Failed to persist scan status", "error", err.Error())
	}
	return false
}

// markSyncFailed records a retriable failure. The attempt counter is
// bookkeeping only; sync-failed records are retried on every pass.
func (w *SyncWorker) markSyncFailed(ctx context.Context, rec *types.FileRecord, reason string) {
	updateCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	defer cancel()

	_, err := w.store.Update(updateCtx, rec.OwnerID, rec.Filename, map[string]any{
		"status":        string(types.SyncStatusSyncFailed),
		"sync_error":    reason,
		"sync_attempts": rec.SyncAttempts + 1,
	})
	if err != nil {
		w.logger.Error("Failed to persist sync failure",
			"owner", rec.OwnerID, "filename", rec.Filename, "error", err.Error())
	}
}

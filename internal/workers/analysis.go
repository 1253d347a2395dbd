package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/devanshpatel/filevault/internal/analyzer"
	"github.com/devanshpatel/filevault/internal/extract"
	"github.com/devanshpatel/filevault/internal/objectstore"
	"github.com/devanshpatel/filevault/internal/storage"
	"github.com/devanshpatel/filevault/internal/types"
)

// AnalysisWorker produces AI summaries for files pending analysis. Each
// candidate is claimed with an atomic pending->processing flip before any
// work starts, so concurrent worker instances never analyze the same file
// twice. failed is terminal here: only an explicit re-analysis request (which
// resets the status to pending) re-queues a file.
type AnalysisWorker struct {
	store       storage.MetadataStore
	hot         objectstore.Store
	extractor   extract.Extractor
	analyzer    analyzer.Analyzer
	interval    time.Duration
	callTimeout time.Duration
	logger      *slog.Logger
}

func NewAnalysisWorker(
	store storage.MetadataStore,
	hot objectstore.Store,
	extractor extract.Extractor,
	ai analyzer.Analyzer,
	interval time.Duration,
	callTimeout time.Duration,
	logger *slog.Logger,
) *AnalysisWorker {
	return &AnalysisWorker{
		store:       store,
		hot:         hot,
		extractor:   extractor,
		analyzer:    ai,
		interval:    interval,
		callTimeout: callTimeout,
		logger:      logger.With(slog.String("component", "analysis_worker")),
	}
}

// Enabled reports whether an analyzer is configured.
func (w *AnalysisWorker) Enabled() bool {
	return w.analyzer != nil && w.analyzer.Available()
}

// Run executes passes until the context is cancelled. The first pass runs
// immediately, then one per interval.
func (w *AnalysisWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Analysis worker started", "interval", w.interval.String())

	w.Pass(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Analysis worker shutting down")
			return
		case <-ticker.C:
			w.Pass(ctx)
		}
	}
}

// Pass sweeps all pending records once. Per-file failures become failed
// status updates and never abort the batch.
func (w *AnalysisWorker) Pass(ctx context.Context) {
	startTime := time.Now()

	listCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	pending, err := w.store.ListPendingAnalysis(listCtx)
	cancel()
	if err != nil {
		w.logger.Error("Failed to list pending analyses", "error", err.Error())
		return
	}

	if len(pending) == 0 {
		return
	}

	w.logger.Info("Starting analysis pass", "pending", len(pending))

	for i := range pending {
		if ctx.Err() != nil {
			return
		}
		w.analyzeFile(ctx, &pending[i])
	}

	w.logger.Info("Completed analysis pass",
		"pending", len(pending),
		"duration_ms", time.Since(startTime).Milliseconds())
}

// analyzeFile drives one record through claim -> fetch -> extract -> analyze
// -> persist. Panics are converted to a failed status like any other error.
func (w *AnalysisWorker) analyzeFile(ctx context.Context, rec *types.FileRecord) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Panic while analyzing file",
				"owner", rec.OwnerID, "filename", rec.Filename, "panic", fmt.Sprint(r))
			w.markFailed(ctx, rec, fmt.Sprintf("internal error: %v", r))
		}
	}()

	logger := w.logger.With("owner", rec.OwnerID, "filename", rec.Filename)

	claimCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	claimed, err := w.store.ClaimForAnalysis(claimCtx, rec.OwnerID, rec.Filename)
	cancel()
	if err != nil {
		logger.Error("Failed to claim record", "error", err.Error())
		return
	}
	if !claimed {
		// Someone else got there first, or the status changed under us.
		return
	}

	getCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	data, err := w.hot.Get(getCtx, rec.OwnerID, rec.Filename)
	cancel()
	if errors.Is(err, objectstore.ErrNotFound) {
		logger.Warn("File missing in hot tier")
		w.markFailed(ctx, rec, "file missing")
		return
	}
	if err != nil {
		logger.Error("Failed to fetch file from hot tier", "error", err.Error())
		w.markFailed(ctx, rec, fmt.Sprintf("hot tier fetch failed: %v", err))
		return
	}

	text, err := w.extractor.Extract(rec.Filename, data)
	if err != nil {
		logger.Warn("Text extraction failed", "error", err.Error())
		w.markFailed(ctx, rec, fmt.Sprintf("text extraction failed: %v", err))
		return
	}
	if len(strings.TrimSpace(text)) < extract.MinTextLength {
		logger.Info("Not enough text to analyze")
		w.markFailed(ctx, rec, "insufficient content")
		return
	}

	analyzeCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	analysis, err := w.analyzer.Analyze(analyzeCtx, text, rec.Filename)
	cancel()
	if err != nil {
		logger.Warn("Analysis failed", "error", err.Error())
		w.markFailed(ctx, rec, err.Error())
		return
	}
	if analysis == nil {
		w.markFailed(ctx, rec, "empty result")
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	defer cancel()
	_, err = w.store.Update(updateCtx, rec.OwnerID, rec.Filename, map[string]any{
		"ai_analysis":              analysis,
		"ai_analysis_status":       string(types.AnalysisStatusCompleted),
		"ai_analysis_completed_at": time.Now().UTC().Format(time.RFC3339),
		"ai_error":                 "",
	})
	if err != nil {
		logger.Error("Failed to persist analysis result", "error", err.Error())
		return
	}

	logger.Info("Analysis completed",
		"model", analysis.ModelUsed,
		"keywords_source", analysis.KeywordsSource)
}

// markFailed records a terminal analysis failure with its reason.
func (w *AnalysisWorker) markFailed(ctx context.Context, rec *types.FileRecord, reason string) {
	updateCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	defer cancel()

	_, err := w.store.Update(updateCtx, rec.OwnerID, rec.Filename, map[string]any{
		"ai_analysis_status": string(types.AnalysisStatusFailed),
		"ai_error":           reason,
	})
	if err != nil {
		w.logger.Error("Failed to persist analysis failure",
			"owner", rec.OwnerID, "filename", rec.Filename, "error", err.Error())
	}
}

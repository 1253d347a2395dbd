// Package workers contains the background pipeline: the sync worker that
// mirrors hot-tier files to the cold tier and the analysis worker that
// produces AI summaries. Both are long-running polling loops over the
// metadata store; the request path only writes pending statuses and reads
// the results.
package workers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrAlreadyStarted is returned when Start is called twice; starting the
// loops a second time would double-schedule every pass.
var ErrAlreadyStarted = errors.New("background workers already started")

// Manager starts and stops the background workers as a unit. A worker whose
// dependency is unavailable (no cold tier, no AI key) is skipped, not an
// error: the rest of the service works without it.
type Manager struct {
	sync     *SyncWorker
	analysis *AnalysisWorker
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewManager(syncWorker *SyncWorker, analysisWorker *AnalysisWorker, logger *slog.Logger) *Manager {
	return &Manager{
		sync:     syncWorker,
		analysis: analysisWorker,
		logger:   logger.With(slog.String("component", "workers")),
	}
}

// Start launches the worker goroutines. It is fire-and-forget: the loops run
// until Stop is called or the parent context is cancelled. A second call
// returns ErrAlreadyStarted.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true

	ctx, m.cancel = context.WithCancel(ctx)

	if m.sync != nil && m.sync.Enabled() {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.sync.Run(ctx)
		}()
	} else {
		m.logger.Info("Sync worker disabled (cold tier unavailable)")
	}

	if m.analysis != nil && m.analysis.Enabled() {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.analysis.Run(ctx)
		}()
	} else {
		m.logger.Info("Analysis worker disabled (analyzer unavailable)")
	}

	return nil
}

// Stop cancels the worker loops and waits for them to finish their current
// file.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

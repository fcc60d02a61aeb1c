// internal/app/system/workers/termsweep.go
package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanghsetu/sanghsetu/internal/app/system/timeouts"
	"github.com/sanghsetu/sanghsetu/internal/app/terms"
)

// TermSweep is a background worker that marks lapsed office-bearer
// terms as completed.
type TermSweep struct {
	terms    *terms.Service
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewTermSweep creates a new term sweep worker. The interval controls
// how often the sweep runs (e.g., 1 hour).
func NewTermSweep(termSvc *terms.Service, logger *zap.Logger, interval time.Duration) *TermSweep {
	return &TermSweep{
		terms:    termSvc,
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (w *TermSweep) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("term sweep worker started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *TermSweep) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("term sweep worker stopped")
}

func (w *TermSweep) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *TermSweep) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Long())
	defer cancel()

	if _, err := w.terms.ExpireLapsedTerms(ctx); err != nil {
		w.log.Error("term sweep failed", zap.Error(err))
	}
}

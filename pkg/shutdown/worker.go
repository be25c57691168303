package shutdown

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BackgroundWorker ties one long-lived goroutine to the shutdown sequence.
// The work function must return once its context is cancelled.
type BackgroundWorker struct {
	name   string
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewBackgroundWorker creates a named background worker
func NewBackgroundWorker(name string, logger *zap.Logger) *BackgroundWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &BackgroundWorker{
		name:   name,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the work function in its own goroutine
func (w *BackgroundWorker) Start(work func(ctx context.Context)) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.logger.Info("Worker started", zap.String("worker", w.name))
		work(w.ctx)
		w.logger.Info("Worker stopped", zap.String("worker", w.name))
	}()
}

// Shutdown cancels the worker and waits for it to finish or for ctx to
// expire. Safe to call more than once.
func (w *BackgroundWorker) Shutdown(ctx context.Context) error {
	w.once.Do(w.cancel)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.logger.Warn("Worker did not stop before deadline",
			zap.String("worker", w.name),
		)
		return ctx.Err()
	}
}

// PeriodicWorker runs a sweep function on a fixed interval. The first run
// happens immediately on Start.
type PeriodicWorker struct {
	*BackgroundWorker
	interval time.Duration
}

// NewPeriodicWorker creates a worker that runs work every interval
func NewPeriodicWorker(name string, interval time.Duration, logger *zap.Logger) *PeriodicWorker {
	return &PeriodicWorker{
		BackgroundWorker: NewBackgroundWorker(name, logger),
		interval:         interval,
	}
}

// Start begins the periodic sweep
func (pw *PeriodicWorker) Start(work func(ctx context.Context)) {
	pw.BackgroundWorker.Start(func(ctx context.Context) {
		ticker := time.NewTicker(pw.interval)
		defer ticker.Stop()

		work(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				work(ctx)
			}
		}
	})
}

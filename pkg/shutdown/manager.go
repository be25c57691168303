// Package shutdown coordinates graceful teardown of worker components on
// SIGINT/SIGTERM.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	shutdownDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shutdown_duration_seconds",
		Help:    "Total time taken to shut down gracefully",
		Buckets: []float64{1, 5, 10, 15, 20, 25, 30},
	})

	componentShutdownDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "component_shutdown_duration_seconds",
		Help:    "Time taken to shut down individual components",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 20, 25, 30},
	}, []string{"component"})

	shutdownErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shutdown_errors_total",
		Help: "Total number of shutdown errors by component",
	}, []string{"component"})
)

// ShutdownFunc tears down one component within the shutdown deadline
type ShutdownFunc func(context.Context) error

type component struct {
	name string
	fn   ShutdownFunc
}

// Manager runs registered shutdown functions when a termination signal
// arrives. All components share one deadline; each teardown runs in its own
// goroutine so a slow component cannot starve the rest of the budget.
type Manager struct {
	logger     *zap.Logger
	components []component
	mu         sync.Mutex
	timeout    time.Duration
}

// NewManager creates a shutdown manager with the given overall deadline
func NewManager(logger *zap.Logger, timeout time.Duration) *Manager {
	return &Manager{
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds a shutdown function. Register sources of new work (workers,
// subscribers) before the resources they depend on.
func (sm *Manager) Register(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.components = append(sm.components, component{name: name, fn: fn})
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then runs the shutdown
// sequence
func (sm *Manager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	sm.logger.Info("Received shutdown signal",
		zap.String("signal", sig.String()),
		zap.Duration("timeout", sm.timeout),
	)

	sm.Shutdown()
}

// Shutdown tears down every registered component, bounded by the manager's
// deadline
func (sm *Manager) Shutdown() {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	sm.mu.Lock()
	components := make([]component, len(sm.components))
	copy(components, sm.components)
	sm.mu.Unlock()

	sm.logger.Info("Starting graceful shutdown",
		zap.Int("components", len(components)),
	)

	var wg sync.WaitGroup
	var failed sync.Map
	for _, comp := range components {
		wg.Add(1)
		go func(comp component) {
			defer wg.Done()

			compStart := time.Now()
			if err := comp.fn(ctx); err != nil {
				failed.Store(comp.name, err)
				shutdownErrors.WithLabelValues(comp.name).Inc()
				sm.logger.Error("Component shutdown failed",
					zap.String("component", comp.name),
					zap.Error(err),
				)
			}
			componentShutdownDuration.WithLabelValues(comp.name).Observe(time.Since(compStart).Seconds())
		}(comp)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sm.logger.Warn("Shutdown deadline exceeded",
			zap.Duration("timeout", sm.timeout),
		)
	}

	shutdownDuration.Observe(time.Since(start).Seconds())

	errCount := 0
	failed.Range(func(name, err any) bool {
		errCount++
		return true
	})
	if errCount > 0 {
		sm.logger.Error("Graceful shutdown finished with errors",
			zap.Int("errors", errCount),
			zap.Duration("elapsed", time.Since(start)),
		)
		return
	}
	sm.logger.Info("Graceful shutdown complete",
		zap.Duration("elapsed", time.Since(start)),
	)
}

// RegisterHTTPServer registers an HTTP server's Shutdown method
func (sm *Manager) RegisterHTTPServer(name string, server interface{ Shutdown(context.Context) error }) {
	sm.Register(name, server.Shutdown)
}

// RegisterCloser registers a component exposing Close() error
func (sm *Manager) RegisterCloser(name string, closer interface{ Close() error }) {
	sm.Register(name, func(context.Context) error {
		return closer.Close()
	})
}

// RegisterFunc registers a plain teardown function
func (sm *Manager) RegisterFunc(name string, fn func() error) {
	sm.Register(name, func(context.Context) error {
		return fn()
	})
}

// RegisterNoErr registers a teardown function with no error to report
func (sm *Manager) RegisterNoErr(name string, fn func()) {
	sm.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Constants for worker configuration
const (
	DefaultPollInterval = 30 * time.Second
	FetchTimeout        = 30 * time.Second
)

// Fetcher refreshes the contributions table. *page.Page implements it.
type Fetcher interface {
	FetchContributions(ctx context.Context) (int, error)
}

// WorkerManager orchestrates the background workers
type WorkerManager struct {
	logger *zap.Logger

	refresher *Refresher

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorkerManager creates a manager that refreshes contributions through
// fetcher every pollInterval. A non-positive interval uses DefaultPollInterval.
func NewWorkerManager(fetcher Fetcher, pollInterval time.Duration, logger *zap.Logger) *WorkerManager {
	logger = logger.Named("worker")

	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	wm := &WorkerManager{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	wm.refresher = NewRefresher(fetcher, pollInterval, logger)

	return wm
}

// Start starts all worker goroutines
func (wm *WorkerManager) Start() {
	wm.logger.Info("Starting worker manager",
		zap.Duration("poll_interval", wm.refresher.interval))

	wm.wg.Add(1)
	go func() {
		defer wm.wg.Done()
		wm.refresher.Run(wm.ctx)
	}()

	wm.logger.Info("Worker manager started")
}

// Shutdown gracefully stops all workers. It reports false when the
// workers did not stop within timeout.
func (wm *WorkerManager) Shutdown(timeout time.Duration) bool {
	wm.logger.Info("Shutting down worker manager")

	// Signal workers to stop
	wm.cancel()

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		wm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wm.logger.Info("Workers stopped gracefully")
		return true
	case <-time.After(timeout):
		wm.logger.Warn("Worker shutdown timed out")
		return false
	}
}

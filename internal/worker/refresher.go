package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Refresher periodically re-queries ContributionMade events so the table
// follows the chain without a manual fetch
type Refresher struct {
	fetcher  Fetcher
	interval time.Duration
	logger   *zap.Logger
}

// NewRefresher creates a new contributions refresher
func NewRefresher(fetcher Fetcher, interval time.Duration, logger *zap.Logger) *Refresher {
	return &Refresher{
		fetcher:  fetcher,
		interval: interval,
		logger:   logger.Named("refresher"),
	}
}

// Run starts the polling loop and returns when ctx is cancelled
func (r *Refresher) Run(ctx context.Context) {
	r.logger.Info("Refresher started",
		zap.Duration("poll_interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Initial poll
	r.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Refresher stopping")
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

// poll executes one refresh cycle
func (r *Refresher) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	added, err := r.fetcher.FetchContributions(pollCtx)
	if err != nil {
		// the page already holds the reason
		r.logger.Warn("Refresh failed", zap.Error(err))
		return
	}
	if added > 0 {
		r.logger.Debug("Refresh added contributions", zap.Int("added", added))
	}
}

package quote

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cngnbridge/core/logging"
)

// Sweeper periodically moves past-due pending quotes to expired. It is one
// of the fixed long-lived background tasks alongside the bill worker and
// webhook retry worker (spec §5).
type Sweeper struct {
	store    Store
	interval time.Duration
	stopped  atomic.Bool
	log      *logging.Entry
}

// NewSweeper builds a Sweeper. interval defaults to 30s if zero.
func NewSweeper(store Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		log:      logging.For("quote.sweeper"),
	}
}

// Run blocks, sweeping on each tick until ctx is cancelled or Stop is
// called. Shutdown is observed between ticks, never mid-sweep.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.stopped.Load() {
				return
			}
			count, err := s.store.SweepExpired(ctx, time.Now())
			if err != nil {
				s.log.WithError(err).Warn("quote sweep failed")
				continue
			}
			if count > 0 {
				s.log.WithField("count", count).Info("swept expired quotes")
			}
		}
	}
}

// Stop signals Run to exit at the next tick boundary.
func (s *Sweeper) Stop() {
	s.stopped.Store(true)
}

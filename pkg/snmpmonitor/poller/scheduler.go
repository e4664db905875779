package poller

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is the poll period used when the configuration does not
// override it.
const DefaultInterval = 60 * time.Second

// ─────────────────────────────────────────────────────────────────────────────
// Cycler — interface for dependency injection
// ─────────────────────────────────────────────────────────────────────────────

// Cycler is the subset of Poller consumed by the scheduler. Using an
// interface lets tests count cycles without a real store or walker.
type Cycler interface {
	PollAll(ctx context.Context)
}

// ─────────────────────────────────────────────────────────────────────────────
// Scheduler
// ─────────────────────────────────────────────────────────────────────────────

// Scheduler fires one poll cycle immediately and then one per interval.
// The timer never waits for a cycle to finish: a cycle that overruns the
// interval overlaps the next tick, and the per-agent in-flight guard inside
// the poller keeps individual agents from being polled concurrently.
type Scheduler struct {
	poller   Cycler
	interval time.Duration
	logger   *slog.Logger

	done chan struct{}
}

// NewScheduler creates a Scheduler. An interval of zero or below selects
// DefaultInterval. The scheduler does NOT start automatically — call Start
// to begin dispatching.
func NewScheduler(p Cycler, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Scheduler{
		poller:   p,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs the scheduling loop. It blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	s.logger.Info("scheduler: started", "interval", s.interval)
	go s.poller.PollAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler: stopped")
			return
		case <-ticker.C:
			go s.poller.PollAll(ctx)
		}
	}
}

// Stop waits for the scheduling loop to exit. The caller must cancel the
// context passed to Start before calling Stop.
func (s *Scheduler) Stop() {
	<-s.done
}

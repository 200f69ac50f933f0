// Package sweeper periodically removes expired pending changes and abandoned signups.
package sweeper

import (
	"context"
	"time"

	"github.com/and161185/accounts/internal/metrics"
	"go.uber.org/zap"
)

// Store is the subset of the confirmation engine the sweeper drives.
type Store interface {
	SweepExpiredChanges(ctx context.Context, ttl time.Duration) ([]string, error)
	SweepUnverifiedAccounts(ctx context.Context, ttl time.Duration) ([]string, error)
	SweepIdleUnverified(ctx context.Context, grace time.Duration) ([]string, error)
}

// Config sets how often the sweeper runs and how long confirmations live.
type Config struct {
	Interval        time.Duration
	ConfirmationTTL time.Duration
	// IdleGrace protects accounts created moments ago whose first change is not stored yet.
	IdleGrace time.Duration
}

// Sweeper is a long-lived task owned by main.
type Sweeper struct {
	store Store
	cfg   Config
	log   *zap.Logger
}

// New constructs a Sweeper. A zero IdleGrace defaults to Interval.
func New(store Store, cfg Config, log *zap.Logger) *Sweeper {
	if cfg.IdleGrace <= 0 {
		cfg.IdleGrace = cfg.Interval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{store: store, cfg: cfg, log: log}
}

// Run sweeps every Interval until ctx is cancelled. Failures are logged and
// the next tick tries again.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()

	s.log.Info("sweeper started", zap.Duration("interval", s.cfg.Interval), zap.Duration("ttl", s.cfg.ConfirmationTTL))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-t.C:
			s.RunOnce(ctx)
		}
	}
}

// Start runs the sweeper in its own goroutine. The returned stop cancels it
// and waits for the sweep in progress to return.
func (s *Sweeper) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// RunOnce performs one pass over all sweeps.
func (s *Sweeper) RunOnce(ctx context.Context) {
	s.step(ctx, "changes", func(ctx context.Context) ([]string, error) {
		return s.store.SweepExpiredChanges(ctx, s.cfg.ConfirmationTTL)
	})
	s.step(ctx, "unverified", func(ctx context.Context) ([]string, error) {
		return s.store.SweepUnverifiedAccounts(ctx, s.cfg.ConfirmationTTL)
	})
	s.step(ctx, "idle", func(ctx context.Context) ([]string, error) {
		return s.store.SweepIdleUnverified(ctx, s.cfg.IdleGrace)
	})
}

func (s *Sweeper) step(ctx context.Context, kind string, fn func(context.Context) ([]string, error)) {
	if ctx.Err() != nil {
		return
	}
	removed, err := fn(ctx)
	if err != nil {
		metrics.SweepErrors.WithLabelValues(kind).Inc()
		s.log.Error("sweep failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	if len(removed) == 0 {
		return
	}
	metrics.SweptRows.WithLabelValues(kind).Add(float64(len(removed)))
	s.log.Info("swept", zap.String("kind", kind), zap.Int("rows", len(removed)))
}

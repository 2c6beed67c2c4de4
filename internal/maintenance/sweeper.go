// Package maintenance runs the periodic housekeeping the engine requires but
// deliberately does not schedule itself: session expiry sweeps, rate-limit
// entry reclamation, and enclave health re-scoring. Every pass is idempotent
// and safe at arbitrary cadence.
package maintenance

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sentra-sec/sentra/internal/application"
	"github.com/sentra-sec/sentra/pkg/logger"
)

// Sweeper drives the periodic maintenance passes.
type Sweeper struct {
	manager  *application.SecurityManager
	log      logger.Logger
	interval time.Duration
}

// NewSweeper creates a sweeper running every interval.
func NewSweeper(manager *application.SecurityManager, log logger.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		manager:  manager,
		log:      log.WithComponent("maintenance"),
		interval: interval,
	}
}

// Run blocks until the context is cancelled, executing one sweep per tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs the three maintenance passes concurrently. Failures are logged
// and never abort the other passes.
func (s *Sweeper) Sweep(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if n := s.manager.CleanupExpiredSessions(); n > 0 {
			s.log.Info(gctx, "expired sessions flagged", logger.Int("count", n))
		}
		return nil
	})

	g.Go(func() error {
		n, err := s.manager.SweepRateLimits(gctx)
		if err != nil {
			s.log.Error(gctx, "rate limit sweep failed", err)
			return nil
		}
		if n > 0 {
			s.log.Debug(gctx, "rate limit entries reclaimed", logger.Int("count", n))
		}
		return nil
	})

	g.Go(func() error {
		for _, e := range s.manager.CheckEnclaveHealth(gctx) {
			if e.HealthScore < 1.0 {
				s.log.Debug(gctx, "enclave health re-scored",
					logger.String("enclave_id", e.ID),
					logger.Float64("health_score", e.HealthScore),
					logger.String("status", string(e.Status)))
			}
		}
		return nil
	})

	// The passes swallow their own errors; Wait only synchronizes them.
	_ = g.Wait()
}

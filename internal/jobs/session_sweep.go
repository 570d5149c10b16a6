package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Hamish-Leahy/NEIS/internal/config"
	"github.com/Hamish-Leahy/NEIS/internal/live"
)

// StartSessionSweepJob periodically ends and removes live sessions whose
// owner has gone idle, so abandoned views never leak controllers.
func StartSessionSweepJob(ctx context.Context, cfg config.Config, manager *live.Manager, log *zap.Logger) {
	if !cfg.SweepJobEnabled {
		return
	}
	interval := cfg.SweepJobInterval
	if interval <= 0 {
		interval = time.Minute
	}
	maxIdle := cfg.SessionIdleAfter
	if maxIdle <= 0 {
		maxIdle = 2 * time.Hour
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := manager.SweepIdle(maxIdle); removed > 0 {
					log.Info("session sweep removed idle sessions", zap.Int("count", removed))
				}
			}
		}
	}()
}

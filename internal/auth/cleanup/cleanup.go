package cleanup

import (
	"context"
	"time"

	"github.com/AlibekovAA/videotube/backend/internal/common/clock"
	"github.com/AlibekovAA/videotube/backend/internal/common/constants"
	"github.com/AlibekovAA/videotube/backend/internal/common/logger"
	"github.com/AlibekovAA/videotube/backend/internal/observability/metrics"
)

type StaleSessionClearer interface {
	ClearStaleSessions(ctx context.Context, issuedBefore time.Time) (int64, error)
}

// StartSessionCleanup clears refresh tokens older than maxAge every interval
// until ctx is done.
func StartSessionCleanup(
	ctx context.Context,
	store StaleSessionClearer,
	clk clock.Clock,
	maxAge time.Duration,
	interval time.Duration,
	log *logger.Logger,
) {
	if interval <= 0 {
		interval = constants.SessionCleanupInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx, store, clk, maxAge, log)
		}
	}
}

func sweep(ctx context.Context, store StaleSessionClearer, clk clock.Clock, maxAge time.Duration, log *logger.Logger) int64 {
	cleared, err := store.ClearStaleSessions(ctx, clk.Now().Add(-maxAge))
	if err != nil {
		log.Errorf("session cleanup failed: %v", err)
		return 0
	}
	if cleared > 0 {
		metrics.StaleSessionsCleared.Add(float64(cleared))
		log.Infof("session cleanup: cleared %d stale refresh tokens", cleared)
	}
	return cleared
}

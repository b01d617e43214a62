package audit

import (
	"context"
	"log/slog"
	"time"
)

// RunRetention prunes entries older than maxAge every interval until ctx
// is cancelled. A non-positive maxAge disables pruning.
func RunRetention(ctx context.Context, db *DB, maxAge, interval time.Duration, logger *slog.Logger) {
	if maxAge <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}

	prune := func() {
		n, err := db.Prune(ctx, time.Now().Add(-maxAge))
		if err != nil {
			logger.Warn("audit: prune failed", slog.String("error", err.Error()))
			return
		}
		if n > 0 {
			logger.Info("audit: pruned entries", slog.Int64("count", n))
		}
	}

	prune()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

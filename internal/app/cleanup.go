package app

import (
	"context"
	"time"

	"session-service/internal/logger"
	"session-service/internal/session"
)

// startCleanupWorker sweeps expired sessions on a fixed interval until
// ctx is cancelled. An interval of zero disables the worker; lazy
// expiry on lookup still applies either way.
func startCleanupWorker(ctx context.Context, store session.Store, interval time.Duration) {
	if interval <= 0 {
		logger.Info("session cleanup worker disabled", nil)
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := store.CleanUpExpiredSessions(ctx)
				if err != nil {
					logger.Error("session cleanup failed", map[string]any{
						"error": err.Error(),
					})
					continue
				}
				if deleted > 0 {
					logger.Info("cleaned up expired sessions", map[string]any{
						"count": deleted,
					})
				}
			}
		}
	}()
}

package ledger

import (
	"context"
	"log/slog"
	"time"
)

// RunPruner deletes records older than retention every interval until ctx is
// cancelled. It blocks; run it in its own goroutine.
func RunPruner(ctx context.Context, l Ledger, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := l.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				slog.Warn("ledger prune failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Info("ledger pruned", "removed", n)
			}
		}
	}
}

package runtime

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"globalblock/internal/autoblock"
	"globalblock/internal/config"
)

// StartExemptListRefresh keeps the never-autoblock list warm so the first
// autoblock trigger after startup does not pay the fetch latency. Refresh
// failures are logged and retried on the next tick; the list itself keeps
// serving its last good snapshot.
func StartExemptListRefresh(ctx context.Context, list *autoblock.ExemptList, policy config.Policy) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(policy.ExemptListURLs) == 0 {
		return
	}

	interval := policy.ExemptListTTL
	if interval <= 0 {
		interval = time.Hour
	}

	if err := list.Refresh(ctx); err != nil {
		log.Warn("Initial exempt list refresh failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := list.Refresh(ctx); err != nil {
				log.Warn("Exempt list refresh failed", "error", err)
			}
		}
	}
}

package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"globalblock/internal/database"
	"globalblock/internal/support"
)

const (
	envPurgeInterval     = "GB_PURGE_INTERVAL"
	defaultPurgeInterval = 15 * time.Minute

	purgeSweeperLockKey = "globalblock:leader:purge_sweeper"
)

// StartPurgeSweeper garbage-collects expired block rows in the background.
// Expiry is already enforced at query time, so the sweeper only reclaims
// storage; one instance at a time is plenty.
func StartPurgeSweeper(ctx context.Context, store *database.Store, clock support.Clock) {
	if ctx == nil {
		ctx = context.Background()
	}
	if clock == nil {
		clock = support.SystemClock()
	}

	err := support.RunWithLeader(ctx, purgeSweeperLockKey, support.DefaultLeadershipTTL, func(leaderCtx context.Context) {
		runPurgeLoop(leaderCtx, store, clock)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Purge sweeper stopped", "error", err)
	}
}

func runPurgeLoop(ctx context.Context, store *database.Store, clock support.Clock) {
	interval := support.GetEnvDuration(envPurgeInterval, defaultPurgeInterval)
	if interval <= 0 {
		interval = defaultPurgeInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	RunPurge(ctx, store, clock)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			RunPurge(ctx, store, clock)
		}
	}
}

// RunPurge performs one sweep.
func RunPurge(ctx context.Context, store *database.Store, clock support.Clock) {
	start := time.Now()

	outcome, err := store.PurgeExpired(ctx, clock.Now())
	if err != nil {
		log.Error("Failed to purge expired blocks", "error", err)
		return
	}

	if outcome.Blocks == 0 && outcome.Overrides == 0 {
		return
	}

	log.Info(
		"Purge sweep completed",
		"blocks_removed", outcome.Blocks,
		"overrides_removed", outcome.Overrides,
		"duration", time.Since(start),
	)
}

package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	recentIPKeyPrefix = "globalblock:recentips:"
	recentIPKeep      = 50
	recentIPTTL       = 90 * 24 * time.Hour
)

// RedisRecentIPs remembers the addresses an account was last seen acting
// from. The autoblock trigger feeds it; the retroactive pass reads it back
// when an account gets blocked later.
type RedisRecentIPs struct {
	client *redis.Client
}

func NewRedisRecentIPs(client *redis.Client) *RedisRecentIPs {
	return &RedisRecentIPs{client: client}
}

// Record notes that the account acted from ip just now.
func (r *RedisRecentIPs) Record(ctx context.Context, accountID uint64, ip string) error {
	key := recentIPKey(accountID)

	pipe := r.client.TxPipeline()
	pipe.LRem(ctx, key, 0, ip)
	pipe.LPush(ctx, key, ip)
	pipe.LTrim(ctx, key, 0, recentIPKeep-1)
	pipe.Expire(ctx, key, recentIPTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// RecentIPs returns the newest addresses first, at most limit of them.
func (r *RedisRecentIPs) RecentIPs(ctx context.Context, accountID uint64, limit int) ([]string, error) {
	if limit <= 0 || limit > recentIPKeep {
		limit = recentIPKeep
	}
	ips, err := r.client.LRange(ctx, recentIPKey(accountID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("recent ips for account %d: %w", accountID, err)
	}
	return ips, nil
}

func recentIPKey(accountID uint64) string {
	return fmt.Sprintf("%s%d", recentIPKeyPrefix, accountID)
}

var _ RecentIPSource = (*RedisRecentIPs)(nil)

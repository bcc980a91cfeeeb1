package runtime

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	InstanceHeartbeatKeyPrefix = "globalblock:instance:"
	DefaultHeartbeatInterval   = 15 * time.Second
	DefaultHeartbeatTTL        = 30 * time.Second
)

var instanceID = generateInstanceID()

func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d-%d", hostname, os.Getpid(), time.Now().UnixNano())
}

// StartInstanceHeartbeat advertises this service instance in redis so
// operators can see how many replicas are serving the federation.
func StartInstanceHeartbeat(ctx context.Context, client *redis.Client, keyPrefix string, interval, ttl time.Duration) {
	if ctx == nil {
		ctx = context.Background()
	}
	heartbeatKey := keyPrefix + instanceID

	sendHeartbeat := func() {
		if err := client.SetEx(ctx, heartbeatKey, "alive", ttl).Err(); err != nil {
			log.Error("Failed to update instance heartbeat", "key", heartbeatKey, "error", err)
		}
	}

	sendHeartbeat()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sendHeartbeat()
		}
	}
}

// LaunchInstanceHeartbeat starts the heartbeat in the background and returns
// a cancel that stops it.
func LaunchInstanceHeartbeat(parent context.Context, client *redis.Client) context.CancelFunc {
	ctx, cancel := context.WithCancel(parent)
	go StartInstanceHeartbeat(ctx, client, InstanceHeartbeatKeyPrefix, DefaultHeartbeatInterval, DefaultHeartbeatTTL)
	return cancel
}

// CountActiveInstances reports how many replicas heartbeated recently.
func CountActiveInstances(ctx context.Context, client *redis.Client) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := client.Scan(ctx, cursor, InstanceHeartbeatKeyPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("scan instance heartbeats: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

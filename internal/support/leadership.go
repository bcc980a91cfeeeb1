package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLeadershipTTL = 45 * time.Second

	acquireRetryDelay  = time.Second
	renewalTimeout     = 5 * time.Second
	minRenewalInterval = time.Second
)

var (
	leaderCounter atomic.Uint64

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)
)

// RunWithLeader runs fn while holding a redis leadership lock so that only
// one service instance executes the guarded work at a time. The context
// handed to fn is cancelled when leadership is lost. Without redis there is
// no peer to coordinate with, so fn simply runs unguarded.
func RunWithLeader(ctx context.Context, key string, ttl time.Duration, fn func(context.Context)) error {
	if fn == nil {
		return errors.New("support: leader run function cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ttl <= 0 {
		ttl = DefaultLeadershipTTL
	}

	client, err := GetRedisClient()
	if err != nil {
		log.Warn("leader lock unavailable, running without coordination", "key", key, "error", err)
		fn(ctx)
		return ctx.Err()
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		session, err := acquireLeadership(ctx, client, key, ttl)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("leader lock acquisition failed", "key", key, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(acquireRetryDelay):
				continue
			}
		}

		log.Debug("leader lock acquired", "key", key)
		fn(session.ctx)
		session.release()
		log.Debug("leader lock released", "key", key)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(acquireRetryDelay):
		}
	}
}

type leadership struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
	ctx    context.Context
	cancel context.CancelFunc
	stop   chan struct{}
	once   sync.Once
}

func acquireLeadership(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (*leadership, error) {
	value := leaderID()

	for {
		ok, err := client.SetNX(ctx, key, value, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}

		if ok {
			sessionCtx, cancel := context.WithCancel(ctx)
			l := &leadership{
				client: client,
				key:    key,
				value:  value,
				ttl:    ttl,
				ctx:    sessionCtx,
				cancel: cancel,
				stop:   make(chan struct{}),
			}
			go l.renewLoop()
			return l, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(acquireRetryDelay):
		}
	}
}

func (l *leadership) release() {
	l.once.Do(func() {
		close(l.stop)

		ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
		defer cancel()
		if _, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Result(); err != nil && !errors.Is(err, redis.Nil) {
			log.Warn("leader lock release failed", "key", l.key, "error", err)
		}
	})
}

func (l *leadership) renewLoop() {
	interval := l.ttl / 3
	if interval < minRenewalInterval {
		interval = minRenewalInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			if err := l.renew(); err != nil {
				log.Warn("leader lock renewal failed", "key", l.key, "error", err)
				l.cancel()
				return
			}
		}
	}
}

func (l *leadership) renew() error {
	ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
	defer cancel()

	res, err := renewScript.Run(ctx, l.client, []string{l.key}, l.value, l.ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}
	if updated, ok := res.(int64); ok && updated == 0 {
		return errors.New("lock lost")
	}
	return nil
}

func leaderID() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s-%d-%d-%d", host, os.Getpid(), time.Now().UnixNano(), leaderCounter.Add(1))
}

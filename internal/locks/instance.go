package locks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"trust-platform/backend/internal/redis"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

var (
	// ErrLockAlreadyHeld occurs when another server instance owns the lock
	ErrLockAlreadyHeld = errors.New("lock already held by another instance")
	// ErrLockNotHeld occurs when releasing a lock this instance does not own
	ErrLockNotHeld = errors.New("lock not held by this instance")
)

const (
	// lockTTL is how long the lock survives without a refresh
	lockTTL = 30 * time.Second
	// refreshInterval keeps the TTL comfortably ahead of expiry
	refreshInterval = 10 * time.Second
	// acquireAttempts bounds startup retries
	acquireAttempts = 3
)

// releaseScript deletes the lock only if this instance still owns it.
var releaseScript = goredis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// refreshScript extends the TTL only if this instance still owns the lock.
var refreshScript = goredis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("expire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// InstanceLock guards a deployment against two coordination engines running
// on the same database. Game state is single-owner in-process maps, so a
// second instance would silently split matchmaking and tournaments.
type InstanceLock struct {
	redis *goredis.Client
	key   string
	value string
	stop  chan struct{}
}

// AcquireInstanceLock claims the named deployment slot, retrying with
// exponential backoff. A nil redis client yields a no-op lock for
// single-node development setups.
func AcquireInstanceLock(ctx context.Context, client *redis.Client, name string) (*InstanceLock, error) {
	l := &InstanceLock{
		key:   fmt.Sprintf("lock:instance:%s", name),
		value: uuid.New().String(),
		stop:  make(chan struct{}),
	}
	if client == nil {
		return l, nil
	}
	l.redis = client.Client

	backoff := 500 * time.Millisecond
	var lastErr error
	for attempt := 1; attempt <= acquireAttempts; attempt++ {
		acquired, err := l.redis.SetNX(ctx, l.key, l.value, lockTTL).Result()
		if err != nil {
			lastErr = fmt.Errorf("redis error: %w", err)
		} else if acquired {
			log.Printf("[LOCK] Acquired instance lock %s", l.key)
			go l.refreshLoop()
			return l, nil
		} else {
			lastErr = ErrLockAlreadyHeld
		}

		if attempt == acquireAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

// refreshLoop keeps the TTL alive until Release.
func (l *InstanceLock) refreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			result, err := refreshScript.Run(ctx, l.redis, []string{l.key}, l.value, int(lockTTL.Seconds())).Result()
			cancel()
			if err != nil {
				log.Printf("[LOCK] Failed to refresh instance lock %s: %v", l.key, err)
				continue
			}
			if result == int64(0) {
				log.Printf("[LOCK] Instance lock %s lost, stopping refresh", l.key)
				return
			}
		case <-l.stop:
			return
		}
	}
}

// Release gives the deployment slot back.
func (l *InstanceLock) Release(ctx context.Context) error {
	if l == nil {
		return ErrLockNotHeld
	}
	close(l.stop)
	if l.redis == nil {
		return nil
	}

	result, err := releaseScript.Run(ctx, l.redis, []string{l.key}, l.value).Result()
	if err != nil {
		return fmt.Errorf("failed to release instance lock: %w", err)
	}
	if result == int64(0) {
		return ErrLockNotHeld
	}
	log.Printf("[LOCK] Released instance lock %s", l.key)
	return nil
}

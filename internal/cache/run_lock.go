package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/restock-forecast/internal/config"
	"github.com/andresuchdata/restock-forecast/internal/pipeline"
)

const runLockKey = "restock:run-lock"

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only while it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RunLock is a pipeline.Locker shared by every instance pointed at the same redis.
// The TTL bounds how long a crashed holder can block other instances; a live
// holder keeps extending it until unlock.
type RunLock struct {
	client     *redis.Client
	key        string
	ttl        time.Duration
	renewEvery time.Duration
}

func NewRunLock(client *redis.Client, cfg config.CacheConfig) *RunLock {
	ttl := ttlFromSeconds(cfg.RunLockTTLSeconds, defaultLockTTL)
	return &RunLock{
		client:     client,
		key:        runLockKey,
		ttl:        ttl,
		renewEvery: ttl / 3,
	}
}

func (l *RunLock) TryLock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, pipeline.ErrRunInProgress
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
		})
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", l.key).Msg("failed to release run lock")
		}
	}, nil
}

// keepAlive extends the lease every renewEvery until stop is closed or the lease is lost.
func (l *RunLock) keepAlive(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.renewEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			n, err := renewScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int64()
			cancel()
			switch {
			case err != nil:
				log.Warn().Err(err).Str("key", l.key).Msg("failed to renew run lock")
			case n == 0:
				log.Error().Str("key", l.key).Msg("run lock lost before the run finished")
				return
			}
		}
	}
}

var _ pipeline.Locker = (*RunLock)(nil)

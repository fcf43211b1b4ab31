// internal/notification/quota/lock.go
package quota

import (
	"context"
	"time"

	"loyalty-notify/internal/common/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "notify:dispatch-lock:"

// releaseScript deletes the key only if it still holds this holder's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// renewScript extends the key only if it still holds this holder's token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// Locker serializes quota check, dispatch and quota record per organization.
type Locker struct {
	rdb        *redis.Client
	ttl        time.Duration
	renewEvery time.Duration
}

func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Locker{rdb: rdb, ttl: ttl, renewEvery: ttl / 3}
}

// WithRenewInterval overrides how often a held lock's lease is extended.
func (l *Locker) WithRenewInterval(d time.Duration) *Locker {
	if d > 0 {
		l.renewEvery = d
	}
	return l
}

// Lock is a held organization lock.
type Lock struct {
	rdb        *redis.Client
	key        string
	token      string
	ttl        time.Duration
	renewEvery time.Duration
}

// Acquire takes the organization's dispatch lock without waiting.
func (l *Locker) Acquire(ctx context.Context, organizationID string) (*Lock, error) {
	lock := &Lock{
		rdb:        l.rdb,
		key:        lockKeyPrefix + organizationID,
		token:      uuid.NewString(),
		ttl:        l.ttl,
		renewEvery: l.renewEvery,
	}

	ok, err := l.rdb.SetNX(ctx, lock.key, lock.token, l.ttl).Result()
	if err != nil {
		return nil, errors.NewLockUnavailableError(err)
	}
	if !ok {
		return nil, errors.NewDispatchInProgressError("another dispatch is running for organization " + organizationID)
	}
	return lock, nil
}

// Release frees the lock if it is still held by this holder.
func (lk *Lock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, lk.rdb, []string{lk.key}, lk.token).Err()
}

// KeepAlive extends the lease every renew interval until stop is called or
// the lock is found to belong to someone else. stop waits for the renewer to
// exit and must be called before Release.
func (lk *Lock) KeepAlive(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(lk.renewEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				held, err := lk.renew(ctx)
				if err == nil && !held {
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (lk *Lock) renew(ctx context.Context) (bool, error) {
	n, err := renewScript.Run(ctx, lk.rdb, []string{lk.key}, lk.token, lk.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

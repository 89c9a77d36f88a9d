package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds our token, so a
// holder whose lock expired cannot free someone else's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locks hands out short-lived per-subject mutexes backed by SET NX.
type Locks struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewLocks(rdb *redis.Client, prefix string, ttl time.Duration) *Locks {
	return &Locks{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (l *Locks) key(subject string) string { return l.prefix + ":" + subject }

// Acquire takes the lock for subject. ok is false while another holder has
// it. The returned release is a no-op when the lock was not taken.
func (l *Locks) Acquire(ctx context.Context, subject string) (release func(), ok bool, err error) {
	token := uuid.NewString()
	ok, err = l.rdb.SetNX(ctx, l.key(subject), token, l.ttl).Result()
	if err != nil {
		return func() {}, false, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return func() {}, false, nil
	}
	return func() {
		_ = releaseScript.Run(context.Background(), l.rdb, []string{l.key(subject)}, token).Err()
	}, true, nil
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// Blacklist remembers revoked token ids until they would have expired.
type Blacklist struct {
	rdb *redis.Client
}

func NewBlacklist(rdb *redis.Client) *Blacklist {
	return &Blacklist{rdb: rdb}
}

func blacklistKey(tokenID string) string { return "blacklist:" + tokenID }

// Revoke blacklists tokenID for ttl. Tokens that already expired are
// ignored.
func (b *Blacklist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.rdb.Set(ctx, blacklistKey(tokenID), "revoked", ttl).Err()
}

func (b *Blacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := b.rdb.Exists(ctx, blacklistKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return n > 0, nil
}

// Limiter is a fixed-window counter with an optional cooldown key that
// locks the subject out once the window is exhausted.
type Limiter struct {
	rdb      *redis.Client
	prefix   string
	max      int64
	window   time.Duration
	cooldown time.Duration
}

func NewLimiter(rdb *redis.Client, prefix string, max int64, window, cooldown time.Duration) *Limiter {
	return &Limiter{rdb: rdb, prefix: prefix, max: max, window: window, cooldown: cooldown}
}

func (l *Limiter) counterKey(subject string) string  { return l.prefix + "_attempts:" + subject }
func (l *Limiter) cooldownKey(subject string) string { return l.prefix + "_cooldown:" + subject }

// Decision is the outcome of a limiter check.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Check reports whether subject may proceed without counting the attempt.
func (l *Limiter) Check(ctx context.Context, subject string) (Decision, error) {
	if l.cooldown > 0 {
		ttl, err := l.rdb.TTL(ctx, l.cooldownKey(subject)).Result()
		if err != nil {
			return Decision{}, err
		}
		if ttl > 0 {
			return Decision{Allowed: false, RetryAfter: ttl}, nil
		}
	}

	count, err := l.rdb.Get(ctx, l.counterKey(subject)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Decision{}, err
	}

	if count >= l.max {
		retry := l.window
		if l.cooldown > 0 {
			pipe := l.rdb.Pipeline()
			pipe.Set(ctx, l.cooldownKey(subject), "1", l.cooldown)
			pipe.Del(ctx, l.counterKey(subject))
			if _, err := pipe.Exec(ctx); err != nil {
				return Decision{}, err
			}
			retry = l.cooldown
		} else if ttl, err := l.rdb.TTL(ctx, l.counterKey(subject)).Result(); err == nil && ttl > 0 {
			retry = ttl
		}
		return Decision{Allowed: false, RetryAfter: retry}, nil
	}

	return Decision{Allowed: true, Remaining: l.max - count}, nil
}

// Hit counts one attempt and returns the new count.
func (l *Limiter) Hit(ctx context.Context, subject string) (int64, error) {
	n, err := l.rdb.Incr(ctx, l.counterKey(subject)).Result()
	if err != nil {
		return 0, err
	}
	// The window starts with the first attempt.
	if n == 1 {
		if err := l.rdb.Expire(ctx, l.counterKey(subject), l.window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Reset clears both the counter and the cooldown.
func (l *Limiter) Reset(ctx context.Context, subject string) error {
	return l.rdb.Del(ctx, l.counterKey(subject), l.cooldownKey(subject)).Err()
}

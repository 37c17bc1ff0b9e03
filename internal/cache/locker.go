package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNotHeld is returned by a release whose token no longer owns the key.
var ErrNotHeld = errors.New("lock not held")

// Locker hands out short-lived exclusive keys. Acquire returns an empty token when the key
// is already held. A key that is never released acts as a cooldown until its TTL expires.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Release(ctx context.Context, key, token string) error
}

func newToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return time.Now().Format(time.RFC3339Nano)
	}
	return hex.EncodeToString(buf)
}

// WaitAcquire retries Acquire until it succeeds, ctx ends or wait elapses.
func WaitAcquire(ctx context.Context, l Locker, key string, ttl, wait time.Duration) (string, error) {
	deadline := time.Now().Add(wait)
	delay := 25 * time.Millisecond
	for {
		token, err := l.Acquire(ctx, key, ttl)
		if err != nil || token != "" {
			return token, err
		}
		if time.Now().After(deadline) {
			return "", nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		if delay < 200*time.Millisecond {
			delay *= 2
		}
	}
}

package cache

import (
	"context"
	"time"
)

// Backoff retries an operation while it fails with a transient error,
// doubling the wait after every failed attempt.
type Backoff struct {
	Attempts int
	Delay    time.Duration
	// Transient reports whether err is worth another attempt. Nil means
	// every error is.
	Transient func(err error) bool
}

// DefaultBackoff is used by RedisCache: three attempts, 200ms then 400ms.
var DefaultBackoff = Backoff{Attempts: 3, Delay: 200 * time.Millisecond}

// Do runs fn until it succeeds, fails permanently or attempts run out. It
// returns ctx.Err() if the context ends while waiting.
func (b Backoff) Do(ctx context.Context, fn func() error) error {
	delay := b.Delay
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= b.Attempts || (b.Transient != nil && !b.Transient(err)) {
			return err
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
}

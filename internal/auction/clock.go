package auction

import (
	"context"
	"time"
)

// Clock supplies the current unix time in seconds.
type Clock interface {
	Now(ctx context.Context) (int64, error)
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

// Now returns time.Now in unix seconds.
func (SystemClock) Now(_ context.Context) (int64, error) {
	return time.Now().Unix(), nil
}

// FixedClock always returns the same instant. Useful in tests and quotes.
type FixedClock int64

// Now returns the fixed instant.
func (c FixedClock) Now(_ context.Context) (int64, error) {
	return int64(c), nil
}

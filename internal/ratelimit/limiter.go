package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of counting one request against a key.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter counts requests per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewStore returns a Redis-backed store when client is set so limits are shared
// between replicas, and a process-local memory store otherwise.
func NewStore(client *redis.Client, prefix string) (limiter.Store, error) {
	opts := limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute}
	if client == nil {
		return memory.NewStoreWithOptions(opts), nil
	}
	store, err := limiterredis.NewStoreWithOptions(client, opts)
	if err != nil {
		return nil, fmt.Errorf("ratelimit redis store: %w", err)
	}
	return store, nil
}

// FixedWindow allows Max requests per key in each Window.
type FixedWindow struct {
	lim *limiter.Limiter
}

// NewFixedWindow builds a FixedWindow over store.
func NewFixedWindow(store limiter.Store, max int, window time.Duration) *FixedWindow {
	return &FixedWindow{lim: limiter.New(store, limiter.Rate{Period: window, Limit: int64(max)})}
}

// Allow implements Limiter.
func (f *FixedWindow) Allow(ctx context.Context, key string) (Decision, error) {
	lctx, err := f.lim.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !lctx.Reached,
		Limit:     int(lctx.Limit),
		Remaining: int(lctx.Remaining),
		Reset:     time.Unix(lctx.Reset, 0),
	}, nil
}

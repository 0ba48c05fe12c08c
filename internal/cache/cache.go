// Package cache provides the read-through cache used for the read-mostly
// schedule policy. Values are stored as JSON.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

type Cache interface {
	// GetOrLoad fills dest from the cache, or calls load, stores its result
	// for ttl and fills dest from that.
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, dest any, load func(ctx context.Context) (any, error)) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Nop never stores anything; every read goes to load.
type Nop struct{}

func (Nop) GetOrLoad(ctx context.Context, key string, ttl time.Duration, dest any, load func(ctx context.Context) (any, error)) error {
	v, err := load(ctx)
	if err != nil {
		return err
	}
	return assign(v, dest)
}

func (Nop) Invalidate(ctx context.Context, keys ...string) error {
	return nil
}

func assign(v any, dest any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

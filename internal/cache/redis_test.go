package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name  string
	Count int
}

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, "showroom:", nil), mr
}

func TestRedisCache_ReadThrough(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	loads := 0
	load := func(ctx context.Context) (any, error) {
		loads++
		return entry{Name: "weekly", Count: loads}, nil
	}

	var got entry
	require.NoError(t, c.GetOrLoad(ctx, "weekly_hours", time.Minute, &got, load))
	assert.Equal(t, entry{Name: "weekly", Count: 1}, got)
	assert.True(t, mr.Exists("showroom:weekly_hours"))

	got = entry{}
	require.NoError(t, c.GetOrLoad(ctx, "weekly_hours", time.Minute, &got, load))
	assert.Equal(t, 1, loads, "second read should be served from redis")
	assert.Equal(t, entry{Name: "weekly", Count: 1}, got)

	mr.FastForward(2 * time.Minute)
	require.NoError(t, c.GetOrLoad(ctx, "weekly_hours", time.Minute, &got, load))
	assert.Equal(t, 2, loads, "expired entry should reload")
}

func TestRedisCache_Invalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var got entry
	require.NoError(t, c.GetOrLoad(ctx, "overrides", time.Minute, &got, func(ctx context.Context) (any, error) {
		return entry{Name: "old"}, nil
	}))

	require.NoError(t, c.Invalidate(ctx, "overrides"))
	assert.False(t, mr.Exists("showroom:overrides"))

	require.NoError(t, c.GetOrLoad(ctx, "overrides", time.Minute, &got, func(ctx context.Context) (any, error) {
		return entry{Name: "new"}, nil
	}))
	assert.Equal(t, "new", got.Name)
}

func TestRedisCache_LoadErrorNotCached(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	boom := errors.New("db down")
	var got entry
	err := c.GetOrLoad(ctx, "weekly_hours", time.Minute, &got, func(ctx context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("showroom:weekly_hours"))
}

func TestRedisCache_RedisDownFallsBackToLoad(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	var got entry
	err := c.GetOrLoad(context.Background(), "weekly_hours", time.Minute, &got, func(ctx context.Context) (any, error) {
		return entry{Name: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Name)
}

func TestNop_AlwaysLoads(t *testing.T) {
	loads := 0
	var got entry
	for i := 0; i < 2; i++ {
		require.NoError(t, Nop{}.GetOrLoad(context.Background(), "k", time.Minute, &got, func(ctx context.Context) (any, error) {
			loads++
			return entry{Count: loads}, nil
		}))
	}
	assert.Equal(t, 2, loads)
	assert.Equal(t, 2, got.Count)
}

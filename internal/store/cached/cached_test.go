package cached

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showroom/backend/internal/cache"
	"showroom/backend/internal/domain"
	"showroom/backend/internal/store/memory"
)

type countingPolicy struct {
	*memory.Store
	reads int
}

func (c *countingPolicy) WeeklyHours(ctx context.Context) ([]domain.WeeklyHoursEntry, error) {
	c.reads++
	return c.Store.WeeklyHours(ctx)
}

func newRedis(t *testing.T) cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisCache(client, "test:", nil)
}

func TestPolicyStore_CachesAndInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	backing := &countingPolicy{Store: memory.New()}
	s := NewPolicyStore(backing, newRedis(t), time.Minute, nil)

	week, err := s.WeeklyHours(ctx)
	require.NoError(t, err)
	require.Len(t, week, 7)
	_, err = s.WeeklyHours(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, backing.reads)

	require.NotNil(t, week[1].OpenTime)
	assert.Equal(t, "09:00", domain.FormatClock(*week[1].OpenTime))

	week[1].IsOpen = false
	week[1].OpenTime, week[1].CloseTime = nil, nil
	require.NoError(t, s.ReplaceWeeklyHours(ctx, week))

	week, err = s.WeeklyHours(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, backing.reads, "write must invalidate the cached policy")
	assert.False(t, week[1].IsOpen)
}

func TestOverrideStore_WritesAreVisibleImmediately(t *testing.T) {
	ctx := context.Background()
	s := NewOverrideStore(memory.New(), newRedis(t), time.Minute, nil)

	list, err := s.ListOverrides(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	d, _ := domain.ParseDate("2025-12-24")
	created, err := s.CreateOverride(ctx, domain.DateOverride{Date: d, IsClosed: true, Reason: "Christmas Eve"})
	require.NoError(t, err)

	list, err = s.ListOverrides(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, d, list[0].Date)

	created.Reason = "Closed for the holidays"
	_, err = s.UpdateOverride(ctx, created)
	require.NoError(t, err)
	list, err = s.ListOverrides(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Closed for the holidays", list[0].Reason)

	require.NoError(t, s.DeleteOverride(ctx, created.ID))
	list, err = s.ListOverrides(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

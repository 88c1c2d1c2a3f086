package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(rdb, "bluegold:"), mr
}

func TestRedisCache_JSONRoundTripAndExpiry(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, c, "dashboard:u1", map[string]int{"investors": 2}, time.Minute))
	assert.True(t, mr.Exists("bluegold:dashboard:u1"))

	var got map[string]int
	require.NoError(t, GetJSON(ctx, c, "dashboard:u1", &got))
	assert.Equal(t, 2, got["investors"])

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, GetJSON(ctx, c, "dashboard:u1", &got), ErrNotFound)
}

func TestRedisCache_Delete(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, c.Delete(ctx, "a", "b"))
	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, c.Delete(ctx))
}

func TestRedisCache_AllowOncePerWindow(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	ok, err := c.Allow(ctx, "catchup:x:2026-06-15", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Allow(ctx, "catchup:x:2026-06-15", 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(25 * time.Hour)
	ok, err = c.Allow(ctx, "catchup:x:2026-06-15", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisCache_ReleaseFreesWindow(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	ok, err := c.Allow(ctx, "catchup:y:2026-06-15", 24*time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.Release(ctx, "catchup:y:2026-06-15"))
	assert.False(t, mr.Exists(c.key("limit:catchup:y:2026-06-15")))

	ok, err = c.Allow(ctx, "catchup:y:2026-06-15", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	// releasing an unclaimed key is a no-op
	require.NoError(t, c.Release(ctx, "catchup:z:2026-06-15"))
}

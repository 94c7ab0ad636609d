package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/launchpad/common/logger"
)

func TestMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, logger.Discard())
	defer c.Close()

	_, ok, err := c.Get(ctx, "app:demo")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "app:demo", []byte(`{"slug":"demo"}`), time.Hour))

	val, ok, err := c.Get(ctx, "app:demo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"slug":"demo"}`, string(val))

	require.NoError(t, c.Delete(ctx, "app:demo"))
	_, ok, err = c.Get(ctx, "app:demo")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_DeleteMissingKey(t *testing.T) {
	c := NewMemoryCache(time.Minute, logger.Discard())
	defer c.Close()

	assert.NoError(t, c.Delete(context.Background(), "app:nope"))
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, logger.Discard())
	defer c.Close()

	require.NoError(t, c.Set(ctx, "short", []byte("v"), 20*time.Millisecond))
	time.Sleep(60 * time.Millisecond)

	_, ok, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_OverwriteReplacesValue(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, logger.Discard())
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", []byte("one"), 0))
	require.NoError(t, c.Set(ctx, "k", []byte("two"), 0))

	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "two", string(val))
	assert.Equal(t, 1, c.Stats()["entries"])
}

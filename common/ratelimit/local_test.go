package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLimiter_LimitsPerKey(t *testing.T) {
	l := NewLocalLimiter(Policy{Limit: 2, Window: time.Minute})
	defer l.Stop()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "app-a")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := l.Allow(ctx, "app-a")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(2), res.Limit)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	// Other keys have their own bucket
	res, err = l.Allow(ctx, "app-b")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLocalLimiter_RejectedRequestsDoNotConsumeTokens(t *testing.T) {
	l := NewLocalLimiter(Policy{Limit: 1, Window: 100 * time.Millisecond})
	defer l.Stop()
	ctx := context.Background()

	res, err := l.Allow(ctx, "app")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	for i := 0; i < 5; i++ {
		res, err = l.Allow(ctx, "app")
		require.NoError(t, err)
		assert.False(t, res.Allowed)
	}

	time.Sleep(150 * time.Millisecond)
	res, err = l.Allow(ctx, "app")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestNew_DisabledPolicy(t *testing.T) {
	assert.Nil(t, New(nil, "builds", Policy{}, nil))
	assert.Nil(t, New(nil, "builds", Policy{Limit: 5}, nil))

	l := New(nil, "builds", Policy{Limit: 5, Window: time.Second}, nil)
	require.NotNil(t, l)
	local, ok := l.(*LocalLimiter)
	require.True(t, ok)
	local.Stop()
}

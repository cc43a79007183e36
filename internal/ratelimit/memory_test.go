package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTokenBucket(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	limiter, err := NewMemoryTokenBucket(2, time.Minute)
	require.NoError(t, err)
	limiter.now = func() time.Time { return now }

	for want := int64(1); want >= 0; want-- {
		d, err := limiter.Allow(ctx, "203.0.113.9:/api/apply")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, want, d.Remaining)
	}

	d, err := limiter.Allow(ctx, "203.0.113.9:/api/apply")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.InDelta(t, float64(30*time.Second), float64(d.RetryAfter), float64(time.Millisecond))

	other, err := limiter.Allow(ctx, "198.51.100.4:/api/apply")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "subjects have independent buckets")

	d, err = limiter.Allow(ctx, "203.0.113.9:/api/apply")
	require.NoError(t, err)
	assert.False(t, d.Allowed, "a rejected request does not consume a token")
	assert.InDelta(t, float64(30*time.Second), float64(d.RetryAfter), float64(time.Millisecond))

	now = now.Add(31 * time.Second)
	d, err = limiter.Allow(ctx, "203.0.113.9:/api/apply")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestMemoryTokenBucketEvictsIdleSubjects(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter, err := NewMemoryTokenBucket(1, time.Second)
	require.NoError(t, err)
	limiter.now = func() time.Time { return now }

	_, err = limiter.Allow(context.Background(), "a")
	require.NoError(t, err)
	now = now.Add(5 * time.Second)
	_, err = limiter.Allow(context.Background(), "b")
	require.NoError(t, err)

	assert.NotContains(t, limiter.buckets, "a")
	assert.Contains(t, limiter.buckets, "b")
}

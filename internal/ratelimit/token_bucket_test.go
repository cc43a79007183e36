package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisTokenBucketValidates(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewRedisTokenBucket(nil, 10, time.Minute, "")
	assert.Error(t, err)
	_, err = NewRedisTokenBucket(client, 0, time.Minute, "")
	assert.Error(t, err)
	_, err = NewRedisTokenBucket(client, 10, 0, "")
	assert.Error(t, err)

	limiter, err := NewRedisTokenBucket(client, 30, time.Minute, "")
	require.NoError(t, err)
	assert.Equal(t, "jobboard:ratelimit", limiter.keyPrefix)
	assert.InDelta(t, 30.0/60000.0, limiter.refillPerMS, 1e-12)
	assert.Equal(t, 2*time.Minute, limiter.ttl)
}

func TestToInt64(t *testing.T) {
	for _, in := range []any{int64(7), 7, 7.0, "7"} {
		got, err := toInt64(in)
		require.NoError(t, err)
		assert.Equal(t, int64(7), got)
	}

	_, err := toInt64([]byte("7"))
	assert.Error(t, err)
	_, err = toInt64("seven")
	assert.Error(t, err)
}

func TestRedisTokenBucketAllow(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter, err := NewRedisTokenBucket(client, 2, time.Minute, "")
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
	assert.InDelta(t, float64(30*time.Second), float64(d.RetryAfter), float64(2*time.Millisecond))
	assert.Equal(t, 2*time.Minute, mr.TTL("jobboard:ratelimit:203.0.113.9:/api/apply"))

	other, err := limiter.Allow(ctx, "198.51.100.4:/api/apply")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	now = now.Add(31 * time.Second)
	d, err = limiter.Allow(ctx, "203.0.113.9:/api/apply")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

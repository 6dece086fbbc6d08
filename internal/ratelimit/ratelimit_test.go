package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/storefront/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderLimiterWithoutRedisAllows(t *testing.T) {
	limiter := NewOrderLimiter(NewTokenBucket(nil), config.StaticCheckoutConfig(config.DefaultCheckoutConfig()))
	assert.False(t, limiter.Enabled())

	res, err := limiter.Allow(context.Background(), "203.0.113.7")
	require.NoError(t, err)
	assert.Nil(t, res)

	var nilLimiter *OrderLimiter
	assert.False(t, nilLimiter.Enabled())
}

func TestTokenBucketNotConfigured(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "key", 1, 1)
	require.ErrorIs(t, err, ErrLimiterNotConfigured)
}

func TestSyncLockerNilWithoutRedis(t *testing.T) {
	assert.Nil(t, NewSyncLocker(nil))
	assert.Nil(t, NewSyncLease(nil))

	var lease *SyncLease
	require.NoError(t, lease.Release(context.Background(), "catalog:sync:product:1", "t"))
	_, ok, err := lease.TryLock(context.Background(), "catalog:sync:product:1", time.Second)
	require.ErrorIs(t, err, ErrLeaseNotConfigured)
	assert.False(t, ok)
}

func TestLeaseKey(t *testing.T) {
	key, err := leaseKey(" catalog:sync:variant:9 ")
	require.NoError(t, err)
	assert.Equal(t, "storefront:sync-lease:catalog:sync:variant:9", key)

	_, err = leaseKey("  ")
	require.Error(t, err)
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, retryAfter(0, 0.2))
	assert.Equal(t, 2500*time.Millisecond, retryAfter(0.5, 0.2))
	assert.Equal(t, time.Duration(0), retryAfter(1, 0.2))
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 50*time.Second, bucketTTL(0.2, 5))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, time.Second, bucketTTL(0, 0))
}

func TestScriptValueParsing(t *testing.T) {
	assert.Equal(t, int64(1), toInt(int64(1)))
	assert.Equal(t, int64(0), toInt(nil))
	assert.InDelta(t, 3.75, toFloat("3.75"), 1e-9)
	assert.InDelta(t, 2.0, toFloat(int64(2)), 1e-9)
}

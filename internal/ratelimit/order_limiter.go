package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/storefront/internal/config"
)

const keyOrderCreate = "storefront:orders:create:%s"

// OrderLimiter throttles public order creation per client. Limits are read from the
// hot-reloaded checkout config on every call.
type OrderLimiter struct {
	bucket *TokenBucket
	holder *config.CheckoutConfigHolder
}

func NewOrderLimiter(bucket *TokenBucket, holder *config.CheckoutConfigHolder) *OrderLimiter {
	return &OrderLimiter{bucket: bucket, holder: holder}
}

func (l *OrderLimiter) Enabled() bool {
	if l == nil || l.bucket == nil {
		return false
	}
	return l.holder.Get().OrderRateLimit.Enabled
}

// Allow reports a nil result with no error when limiting is off.
func (l *OrderLimiter) Allow(ctx context.Context, clientKey string) (*Result, error) {
	if !l.Enabled() {
		return nil, nil
	}
	limit := l.holder.Get().OrderRateLimit
	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" {
		clientKey = "anonymous"
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyOrderCreate, clientKey), limit.Rate, limit.Burst)
}

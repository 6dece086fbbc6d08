package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	catalogsyncdomain "github.com/smallbiznis/storefront/internal/catalogsync/domain"
)

const syncLeasePrefix = "storefront:sync-lease:"

// releaseLease deletes the lease only while it still holds the caller's token.
var releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var (
	ErrLeaseNotConfigured = errors.New("sync lease store not configured")
	ErrLeaseLost          = errors.New("sync lease expired before release")
)

// SyncLease serializes processor pushes per catalog row across storefront instances.
// A lease outliving its TTL is dropped by redis; the next holder gets a fresh token.
type SyncLease struct {
	client *redis.Client
}

func NewSyncLease(client *redis.Client) *SyncLease {
	if client == nil {
		return nil
	}
	return &SyncLease{client: client}
}

// NewSyncLocker is nil without redis, so syncs run unlocked on a single instance.
func NewSyncLocker(client *redis.Client) catalogsyncdomain.Locker {
	lease := NewSyncLease(client)
	if lease == nil {
		return nil
	}
	return lease
}

func leaseKey(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", errors.New("sync lease target is empty")
	}
	return syncLeasePrefix + target, nil
}

func (l *SyncLease) TryLock(ctx context.Context, target string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, ErrLeaseNotConfigured
	}
	key, err := leaseKey(target)
	if err != nil {
		return "", false, err
	}
	if ttl <= 0 {
		return "", false, fmt.Errorf("sync lease ttl must be positive, got %s", ttl)
	}

	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !acquired {
		return "", false, nil
	}
	return token, true, nil
}

// Release gives the lease back. ErrLeaseLost means the TTL ran out mid-sync and another
// instance may have pushed the same row.
func (l *SyncLease) Release(ctx context.Context, target, token string) error {
	if l == nil || l.client == nil || token == "" {
		return nil
	}
	key, err := leaseKey(target)
	if err != nil {
		return nil
	}
	deleted, err := releaseLease.Run(ctx, l.client, []string{key}, token).Int64()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrLeaseLost
	}
	return nil
}

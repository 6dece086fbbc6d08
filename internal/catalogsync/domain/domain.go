package domain

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	StatusPending = "pending"
	StatusSynced  = "synced"
	StatusFailed  = "failed"
)

// MaxErrorLength bounds sync_error.
const MaxErrorLength = 500

type TargetKind string

const (
	TargetProduct TargetKind = "product"
	TargetVariant TargetKind = "variant"
)

type Target struct {
	Kind TargetKind
	ID   snowflake.ID
}

func (t Target) LockKey() string {
	return "catalog:sync:" + string(t.Kind) + ":" + t.ID.String()
}

// Syncer pushes pending catalog rows to the processor. Processor failures are recorded on the
// row, only local store errors are returned.
type Syncer interface {
	SyncProduct(ctx context.Context, id snowflake.ID) error
	SyncVariantPrice(ctx context.Context, id snowflake.ID) error
	Retry(ctx context.Context, target Target) error
}

// Repository moves sync state. MarkSynced and MarkFailed only touch a row that is still pending
// and still carries the updated_at the sync read; false means the row moved on.
type Repository interface {
	MarkPending(ctx context.Context, db *gorm.DB, target Target, at time.Time) error
	MarkSynced(ctx context.Context, db *gorm.DB, target Target, externalID string, readAt, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, db *gorm.DB, target Target, message string, readAt, at time.Time) (bool, error)
}

// Locker serializes syncs of the same target across instances.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

var (
	ErrUnknownTarget    = errors.New("unknown_sync_target")
	ErrTargetNotFound   = errors.New("sync_target_not_found")
	ErrProductNotSynced = errors.New("product not synced")
)

// TruncateError shortens msg to MaxErrorLength runes.
func TruncateError(msg string) string {
	if utf8.RuneCountInString(msg) <= MaxErrorLength {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:MaxErrorLength])
}

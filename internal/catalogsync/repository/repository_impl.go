package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/storefront/internal/catalogsync/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func tableFor(target domain.Target) (string, string, error) {
	switch target.Kind {
	case domain.TargetProduct:
		return "products", "external_id", nil
	case domain.TargetVariant:
		return "product_variants", "external_price_id", nil
	default:
		return "", "", domain.ErrUnknownTarget
	}
}

func (r *repo) MarkPending(ctx context.Context, db *gorm.DB, target domain.Target, at time.Time) error {
	table, _, err := tableFor(target)
	if err != nil {
		return err
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE `+table+`
		 SET sync_status = ?, sync_error = NULL, updated_at = ?
		 WHERE id = ?`,
		domain.StatusPending,
		at,
		target.ID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTargetNotFound
	}
	return nil
}

// MarkSynced only moves the row version the processor call was built from. A row edited while
// the call was in flight keeps sync_status = pending.
func (r *repo) MarkSynced(ctx context.Context, db *gorm.DB, target domain.Target, externalID string, readAt, at time.Time) (bool, error) {
	table, column, err := tableFor(target)
	if err != nil {
		return false, err
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE `+table+`
		 SET sync_status = ?, sync_error = NULL, `+column+` = ?, synced_at = ?
		 WHERE id = ? AND sync_status = ? AND updated_at = ?`,
		domain.StatusSynced,
		externalID,
		at,
		target.ID,
		domain.StatusPending,
		readAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, target domain.Target, message string, readAt, at time.Time) (bool, error) {
	table, _, err := tableFor(target)
	if err != nil {
		return false, err
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE `+table+`
		 SET sync_status = ?, sync_error = ?, updated_at = ?
		 WHERE id = ? AND sync_status = ? AND updated_at = ?`,
		domain.StatusFailed,
		domain.TruncateError(message),
		at,
		target.ID,
		domain.StatusPending,
		readAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	pricetierdomain "github.com/smallbiznis/storefront/internal/pricetier/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() pricetierdomain.Repository {
	return &repo{}
}

func (r *repo) DeactivateActive(ctx context.Context, db *gorm.DB, owner pricetierdomain.Owner, at time.Time) error {
	switch o := owner.(type) {
	case pricetierdomain.VariantOwner:
		return db.WithContext(ctx).Exec(
			`UPDATE variant_price_tiers
			 SET active = FALSE, updated_at = ?
			 WHERE variant_id = ? AND active = TRUE`,
			at,
			o.VariantID,
		).Error
	case pricetierdomain.KeycardOwner:
		return db.WithContext(ctx).Exec(
			`UPDATE keycard_price_tiers
			 SET active = FALSE, updated_at = ?
			 WHERE design_id = ? AND lock_technology_id = ? AND active = TRUE`,
			at,
			o.DesignID,
			o.LockTechnologyID,
		).Error
	default:
		return pricetierdomain.ErrInvalidOwner
	}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, owner pricetierdomain.Owner, id snowflake.ID, tier pricetierdomain.Tier, at time.Time) error {
	switch o := owner.(type) {
	case pricetierdomain.VariantOwner:
		return db.WithContext(ctx).Exec(
			`INSERT INTO variant_price_tiers (
				id, variant_id, min_qty, max_qty, unit_amount, currency, active, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, TRUE, ?, ?)`,
			id,
			o.VariantID,
			tier.MinQuantity,
			tier.MaxQuantity,
			tier.UnitAmount,
			tier.Currency,
			at,
			at,
		).Error
	case pricetierdomain.KeycardOwner:
		return db.WithContext(ctx).Exec(
			`INSERT INTO keycard_price_tiers (
				id, design_id, lock_technology_id, min_boxes, max_boxes, price_per_box, currency, active,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, TRUE, ?, ?)`,
			id,
			o.DesignID,
			o.LockTechnologyID,
			tier.MinQuantity,
			tier.MaxQuantity,
			tier.UnitAmount,
			tier.Currency,
			at,
			at,
		).Error
	default:
		return pricetierdomain.ErrInvalidOwner
	}
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, owner pricetierdomain.Owner) ([]pricetierdomain.Tier, error) {
	switch o := owner.(type) {
	case pricetierdomain.VariantOwner:
		var rows []pricetierdomain.VariantPriceTier
		err := db.WithContext(ctx).Raw(
			`SELECT id, variant_id, min_qty, max_qty, unit_amount, currency, active, created_at, updated_at
			 FROM variant_price_tiers
			 WHERE variant_id = ? AND active = TRUE
			 ORDER BY min_qty ASC`,
			o.VariantID,
		).Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		tiers := make([]pricetierdomain.Tier, 0, len(rows))
		for _, row := range rows {
			tiers = append(tiers, pricetierdomain.Tier{
				ID:          row.ID,
				MinQuantity: row.MinQty,
				MaxQuantity: row.MaxQty,
				UnitAmount:  row.UnitAmount,
				Currency:    row.Currency,
			})
		}
		return tiers, nil
	case pricetierdomain.KeycardOwner:
		var rows []pricetierdomain.KeycardPriceTier
		err := db.WithContext(ctx).Raw(
			`SELECT id, design_id, lock_technology_id, min_boxes, max_boxes, price_per_box, currency, active,
				created_at, updated_at
			 FROM keycard_price_tiers
			 WHERE design_id = ? AND lock_technology_id = ? AND active = TRUE
			 ORDER BY min_boxes ASC`,
			o.DesignID,
			o.LockTechnologyID,
		).Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		tiers := make([]pricetierdomain.Tier, 0, len(rows))
		for _, row := range rows {
			tiers = append(tiers, pricetierdomain.Tier{
				ID:          row.ID,
				MinQuantity: row.MinBoxes,
				MaxQuantity: row.MaxBoxes,
				UnitAmount:  row.PricePerBox,
				Currency:    row.Currency,
			})
		}
		return tiers, nil
	default:
		return nil, pricetierdomain.ErrInvalidOwner
	}
}

package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() catalogdomain.Repository {
	return &repo{}
}

const productColumns = `id, code, name, description, active, external_id, sync_status, sync_error,
	synced_at, metadata, created_at, updated_at`

const variantColumns = `id, product_id, sku, name, unit_amount, currency, active, external_price_id,
	sync_status, sync_error, synced_at, created_at, updated_at`

func (r *repo) InsertProduct(ctx context.Context, db *gorm.DB, product *catalogdomain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.Code,
		product.Name,
		product.Description,
		product.Active,
		product.ExternalID,
		product.SyncStatus,
		product.SyncError,
		product.SyncedAt,
		product.Metadata,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
}

// UpdateProduct writes the editable columns together with the sync state so a mirrored change
// and its pending marker land in one statement.
func (r *repo) UpdateProduct(ctx context.Context, db *gorm.DB, product *catalogdomain.Product) error {
	return db.WithContext(ctx).Exec(
		`UPDATE products
		 SET name = ?, description = ?, active = ?, metadata = ?, sync_status = ?, sync_error = ?, updated_at = ?
		 WHERE id = ?`,
		product.Name,
		product.Description,
		product.Active,
		product.Metadata,
		product.SyncStatus,
		product.SyncError,
		product.UpdatedAt,
		product.ID,
	).Error
}

func (r *repo) FindProduct(ctx context.Context, db *gorm.DB, id snowflake.ID) (*catalogdomain.Product, error) {
	var product catalogdomain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT `+productColumns+` FROM products WHERE id = ?`,
		id,
	).Scan(&product).Error
	if err != nil {
		return nil, err
	}
	if product.ID == 0 {
		return nil, nil
	}
	return &product, nil
}

func (r *repo) InsertVariant(ctx context.Context, db *gorm.DB, variant *catalogdomain.Variant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO product_variants (`+variantColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		variant.ID,
		variant.ProductID,
		variant.SKU,
		variant.Name,
		variant.UnitAmount,
		variant.Currency,
		variant.Active,
		variant.ExternalPriceID,
		variant.SyncStatus,
		variant.SyncError,
		variant.SyncedAt,
		variant.CreatedAt,
		variant.UpdatedAt,
	).Error
}

func (r *repo) UpdateVariant(ctx context.Context, db *gorm.DB, variant *catalogdomain.Variant) error {
	return db.WithContext(ctx).Exec(
		`UPDATE product_variants
		 SET name = ?, unit_amount = ?, currency = ?, active = ?, sync_status = ?, sync_error = ?, updated_at = ?
		 WHERE id = ?`,
		variant.Name,
		variant.UnitAmount,
		variant.Currency,
		variant.Active,
		variant.SyncStatus,
		variant.SyncError,
		variant.UpdatedAt,
		variant.ID,
	).Error
}

func (r *repo) FindVariant(ctx context.Context, db *gorm.DB, id snowflake.ID) (*catalogdomain.Variant, error) {
	var variant catalogdomain.Variant
	err := db.WithContext(ctx).Raw(
		`SELECT `+variantColumns+` FROM product_variants WHERE id = ?`,
		id,
	).Scan(&variant).Error
	if err != nil {
		return nil, err
	}
	if variant.ID == 0 {
		return nil, nil
	}
	return &variant, nil
}

func (r *repo) ListVariantsByProduct(ctx context.Context, db *gorm.DB, productID snowflake.ID) ([]catalogdomain.Variant, error) {
	var items []catalogdomain.Variant
	err := db.WithContext(ctx).Raw(
		`SELECT `+variantColumns+` FROM product_variants WHERE product_id = ? ORDER BY created_at ASC, id ASC`,
		productID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertKeycardDesign(ctx context.Context, db *gorm.DB, design *catalogdomain.KeycardDesign) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO keycard_designs (id, code, name, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		design.ID,
		design.Code,
		design.Name,
		design.Active,
		design.CreatedAt,
		design.UpdatedAt,
	).Error
}

func (r *repo) FindKeycardDesign(ctx context.Context, db *gorm.DB, id snowflake.ID) (*catalogdomain.KeycardDesign, error) {
	var design catalogdomain.KeycardDesign
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, name, active, created_at, updated_at FROM keycard_designs WHERE id = ?`,
		id,
	).Scan(&design).Error
	if err != nil {
		return nil, err
	}
	if design.ID == 0 {
		return nil, nil
	}
	return &design, nil
}

func (r *repo) InsertLockTechnology(ctx context.Context, db *gorm.DB, tech *catalogdomain.LockTechnology) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO lock_technologies (id, code, name, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tech.ID,
		tech.Code,
		tech.Name,
		tech.Active,
		tech.CreatedAt,
		tech.UpdatedAt,
	).Error
}

func (r *repo) FindLockTechnology(ctx context.Context, db *gorm.DB, id snowflake.ID) (*catalogdomain.LockTechnology, error) {
	var tech catalogdomain.LockTechnology
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, name, active, created_at, updated_at FROM lock_technologies WHERE id = ?`,
		id,
	).Scan(&tech).Error
	if err != nil {
		return nil, err
	}
	if tech.ID == 0 {
		return nil, nil
	}
	return &tech, nil
}

package repository

import (
	"context"
	"time"

	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	pkgdb "github.com/smallbiznis/storefront/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() orderdomain.Repository {
	return &repo{}
}

const orderColumns = `id, order_number, order_status, payment_status, fulfillment_status, shipping_status,
	currency, subtotal, tax_amount, shipping_amount, total, manually_priced,
	customer_email, customer_name, customer_phone, shipping_address, billing_address,
	external_session_id, external_payment_intent_id, external_customer_id,
	paid_at, last_event_at, notes, metadata, created_at, updated_at`

const lineItemColumns = `id, order_id, item_kind, product_id, variant_id, design_id, lock_technology_id,
	sku, description, currency, unit_amount, quantity, line_total, price_source, metadata, created_at`

// Insert lets the database assign the id and reads it back into order.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *orderdomain.Order) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) SetOrderNumber(ctx context.Context, db *gorm.DB, id int64, number string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET order_number = ? WHERE id = ?`,
		number,
		id,
	).Error
}

func (r *repo) InsertLineItem(ctx context.Context, db *gorm.DB, item *orderdomain.LineItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO order_line_items (`+lineItemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.OrderID,
		item.ItemKind,
		item.ProductID,
		item.VariantID,
		item.DesignID,
		item.LockTechnologyID,
		item.SKU,
		item.Description,
		item.Currency,
		item.UnitAmount,
		item.Quantity,
		item.LineTotal,
		item.PriceSource,
		item.Metadata,
		item.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*orderdomain.Order, error) {
	return r.findOne(ctx, db, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
}

// FindByIDForUpdate row-locks the order where the dialect supports it.
func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id int64) (*orderdomain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`
	if pkgdb.SupportsRowLocking(db) {
		query += ` FOR UPDATE`
	}
	return r.findOne(ctx, db, query, id)
}

func (r *repo) FindByNumber(ctx context.Context, db *gorm.DB, number string) (*orderdomain.Order, error) {
	return r.findOne(ctx, db, `SELECT `+orderColumns+` FROM orders WHERE order_number = ?`, number)
}

func (r *repo) FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*orderdomain.Order, error) {
	return r.findOne(ctx, db,
		`SELECT `+orderColumns+` FROM orders WHERE external_session_id = ? ORDER BY id DESC LIMIT 1`,
		sessionID,
	)
}

func (r *repo) FindByPaymentIntentID(ctx context.Context, db *gorm.DB, paymentIntentID string) (*orderdomain.Order, error) {
	return r.findOne(ctx, db,
		`SELECT `+orderColumns+` FROM orders WHERE external_payment_intent_id = ? ORDER BY id DESC LIMIT 1`,
		paymentIntentID,
	)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*orderdomain.Order, error) {
	var order orderdomain.Order
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&order).Error; err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) ListLineItems(ctx context.Context, db *gorm.DB, orderID int64) ([]orderdomain.LineItem, error) {
	var items []orderdomain.LineItem
	err := db.WithContext(ctx).Raw(
		`SELECT `+lineItemColumns+` FROM order_line_items WHERE order_id = ? ORDER BY created_at ASC, id ASC`,
		orderID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) AttachSession(ctx context.Context, db *gorm.DB, id int64, sessionID string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET external_session_id = ?, updated_at = ?
		 WHERE id = ? AND (external_session_id IS NULL OR external_session_id = '' OR external_session_id = ?)`,
		sessionID,
		at,
		id,
		sessionID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdateDetails(ctx context.Context, db *gorm.DB, order *orderdomain.Order) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET customer_email = ?, customer_name = ?, customer_phone = ?,
			shipping_address = ?, billing_address = ?,
			order_status = ?, fulfillment_status = ?, shipping_status = ?,
			notes = ?, metadata = ?, updated_at = ?
		 WHERE id = ?`,
		order.CustomerEmail,
		order.CustomerName,
		order.CustomerPhone,
		order.ShippingAddress,
		order.BillingAddress,
		order.OrderStatus,
		order.FulfillmentStatus,
		order.ShippingStatus,
		order.Notes,
		order.Metadata,
		order.UpdatedAt,
		order.ID,
	).Error
}

func (r *repo) Patch(ctx context.Context, db *gorm.DB, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return db.WithContext(ctx).Table("orders").Where("id = ?", id).Updates(fields).Error
}

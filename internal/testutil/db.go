package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

var schema = []string{
	`CREATE TABLE products (
		id BIGINT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		external_id TEXT,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		sync_error TEXT,
		synced_at DATETIME,
		metadata TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_products_code ON products(code)`,
	`CREATE TABLE product_variants (
		id BIGINT PRIMARY KEY,
		product_id BIGINT NOT NULL,
		sku TEXT NOT NULL,
		name TEXT NOT NULL,
		unit_amount BIGINT NOT NULL,
		currency TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		external_price_id TEXT,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		sync_error TEXT,
		synced_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_product_variants_sku ON product_variants(sku)`,
	`CREATE TABLE keycard_designs (
		id BIGINT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_keycard_designs_code ON keycard_designs(code)`,
	`CREATE TABLE lock_technologies (
		id BIGINT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_lock_technologies_code ON lock_technologies(code)`,
	`CREATE TABLE variant_price_tiers (
		id BIGINT PRIMARY KEY,
		variant_id BIGINT NOT NULL,
		min_qty BIGINT NOT NULL,
		max_qty BIGINT,
		unit_amount BIGINT NOT NULL,
		currency TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE keycard_price_tiers (
		id BIGINT PRIMARY KEY,
		design_id BIGINT NOT NULL,
		lock_technology_id BIGINT NOT NULL,
		min_boxes BIGINT NOT NULL,
		max_boxes BIGINT,
		price_per_box BIGINT NOT NULL,
		currency TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_number TEXT,
		order_status TEXT NOT NULL DEFAULT 'placed',
		payment_status TEXT NOT NULL DEFAULT 'pending',
		fulfillment_status TEXT NOT NULL DEFAULT 'unfulfilled',
		shipping_status TEXT NOT NULL DEFAULT 'pending',
		currency TEXT NOT NULL,
		subtotal BIGINT NOT NULL DEFAULT 0,
		tax_amount BIGINT NOT NULL DEFAULT 0,
		shipping_amount BIGINT NOT NULL DEFAULT 0,
		total BIGINT NOT NULL DEFAULT 0,
		manually_priced BOOLEAN NOT NULL DEFAULT FALSE,
		customer_email TEXT,
		customer_name TEXT,
		customer_phone TEXT,
		shipping_address TEXT,
		billing_address TEXT,
		external_session_id TEXT,
		external_payment_intent_id TEXT,
		external_customer_id TEXT,
		paid_at DATETIME,
		last_event_at DATETIME,
		notes TEXT,
		metadata TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_orders_order_number ON orders(order_number)`,
	`CREATE TABLE order_line_items (
		id BIGINT PRIMARY KEY,
		order_id BIGINT NOT NULL,
		item_kind TEXT NOT NULL,
		product_id BIGINT,
		variant_id BIGINT,
		design_id BIGINT,
		lock_technology_id BIGINT,
		sku TEXT,
		description TEXT NOT NULL,
		currency TEXT NOT NULL,
		unit_amount BIGINT NOT NULL,
		quantity BIGINT NOT NULL,
		line_total BIGINT NOT NULL,
		price_source TEXT NOT NULL,
		metadata TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE processor_events (
		id BIGINT PRIMARY KEY,
		provider TEXT NOT NULL,
		external_event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		order_id BIGINT,
		received_at DATETIME NOT NULL,
		processed_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_processor_events_provider_event ON processor_events(provider, external_event_id)`,
}

// OpenDB returns an isolated in-memory sqlite store carrying the storefront schema.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:storefront_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return db
}

// Node returns a snowflake node for tests.
func Node(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	OrderStatusPlaced     = "placed"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"

	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusExpired  = "expired"
	PaymentStatusRefunded = "refunded"

	FulfillmentStatusUnfulfilled = "unfulfilled"
	FulfillmentStatusPartial     = "partially_fulfilled"
	FulfillmentStatusFulfilled   = "fulfilled"

	ShippingStatusPending   = "pending"
	ShippingStatusShipped   = "shipped"
	ShippingStatusDelivered = "delivered"
	ShippingStatusReturned  = "returned"
)

// Order ids come from the database identity so the order number can be derived from them.
type Order struct {
	ID                      int64             `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderNumber             *string           `json:"order_number" gorm:"type:text;uniqueIndex"`
	OrderStatus             string            `json:"order_status" gorm:"type:text;not null"`
	PaymentStatus           string            `json:"payment_status" gorm:"type:text;not null"`
	FulfillmentStatus       string            `json:"fulfillment_status" gorm:"type:text;not null"`
	ShippingStatus          string            `json:"shipping_status" gorm:"type:text;not null"`
	Currency                string            `json:"currency" gorm:"type:text;not null"`
	Subtotal                int64             `json:"subtotal" gorm:"not null"`
	TaxAmount               int64             `json:"tax_amount" gorm:"not null"`
	ShippingAmount          int64             `json:"shipping_amount" gorm:"not null"`
	Total                   int64             `json:"total" gorm:"not null"`
	ManuallyPriced          bool              `json:"manually_priced" gorm:"not null"`
	CustomerEmail           *string           `json:"customer_email" gorm:"type:text"`
	CustomerName            *string           `json:"customer_name" gorm:"type:text"`
	CustomerPhone           *string           `json:"customer_phone" gorm:"type:text"`
	ShippingAddress         datatypes.JSON    `json:"shipping_address" gorm:"type:jsonb"`
	BillingAddress          datatypes.JSON    `json:"billing_address" gorm:"type:jsonb"`
	ExternalSessionID       *string           `json:"external_session_id" gorm:"type:text"`
	ExternalPaymentIntentID *string           `json:"external_payment_intent_id" gorm:"type:text"`
	ExternalCustomerID      *string           `json:"external_customer_id" gorm:"type:text"`
	PaidAt                  *time.Time        `json:"paid_at"`
	LastEventAt             *time.Time        `json:"last_event_at"`
	Notes                   *string           `json:"notes" gorm:"type:text"`
	Metadata                datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	CreatedAt               time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt               time.Time         `json:"updated_at" gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

// LineItem is a price snapshot. It is written once with its order and never updated.
type LineItem struct {
	ID               snowflake.ID      `json:"id" gorm:"primaryKey"`
	OrderID          int64             `json:"order_id" gorm:"not null;index"`
	ItemKind         string            `json:"item_kind" gorm:"type:text;not null"`
	ProductID        *snowflake.ID     `json:"product_id"`
	VariantID        *snowflake.ID     `json:"variant_id"`
	DesignID         *snowflake.ID     `json:"design_id"`
	LockTechnologyID *snowflake.ID     `json:"lock_technology_id"`
	SKU              *string           `json:"sku" gorm:"column:sku;type:text"`
	Description      string            `json:"description" gorm:"type:text;not null"`
	Currency         string            `json:"currency" gorm:"type:text;not null"`
	UnitAmount       int64             `json:"unit_amount" gorm:"not null"`
	Quantity         int64             `json:"quantity" gorm:"not null"`
	LineTotal        int64             `json:"line_total" gorm:"not null"`
	PriceSource      string            `json:"price_source" gorm:"type:text;not null"`
	Metadata         datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	CreatedAt        time.Time         `json:"created_at" gorm:"not null"`
}

func (LineItem) TableName() string { return "order_line_items" }

type Address struct {
	Name       string `json:"name,omitempty" validate:"omitempty,max=200"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state,omitempty" validate:"omitempty,max=100"`
	PostalCode string `json:"postal_code,omitempty" validate:"omitempty,max=20"`
	Country    string `json:"country" validate:"required,iso3166_1_alpha2"`
}

type Customer struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Name  string `json:"name" validate:"required,max=200"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=40"`
}

// Buyer is everything the checkout form collects about the purchaser.
type Buyer struct {
	Customer Customer `json:"customer" validate:"required"`
	Shipping *Address `json:"shipping" validate:"omitempty"`
	Billing  *Address `json:"billing" validate:"omitempty"`
}

package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProcessorEvent is the dedup log of verified webhook deliveries.
type ProcessorEvent struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null"`
	ExternalEventID string         `json:"external_event_id" gorm:"type:text;not null"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	OrderID         *int64         `json:"order_id"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (ProcessorEvent) TableName() string { return "processor_events" }

// PaymentEvent is a verified provider event reduced to what reconciliation needs.
type PaymentEvent struct {
	Provider        string
	ProviderEventID string
	Type            string
	OccurredAt      time.Time
	RawPayload      []byte

	// Handled is false for event types that are acknowledged without effect.
	Handled  bool
	Refunded bool
	Ref      OrderRef
	Patch    OrderPatch
}

// OrderRef holds every key the event offers for locating its order, tried in field order.
type OrderRef struct {
	OrderID         *int64
	SessionID       string
	PaymentIntentID string
	OrderNumber     string
}

// OrderPatch fields are written only when non-nil.
type OrderPatch struct {
	ExternalSessionID       *string
	ExternalPaymentIntentID *string
	ExternalCustomerID      *string
	CustomerEmail           *string
	CustomerName            *string
	CustomerPhone           *string
	ShippingAddress         *orderdomain.Address
	BillingAddress          *orderdomain.Address
	Currency                *string
	Subtotal                *int64
	TaxAmount               *int64
	ShippingAmount          *int64
	Total                   *int64
	PaymentStatus           *string
}

// Outcome reports what Ingest did with a verified event. All outcomes are acknowledged.
type Outcome struct {
	EventType      string `json:"event_type"`
	AlreadyHandled bool   `json:"already_handled,omitempty"`
	OrderNotFound  bool   `json:"order_not_found,omitempty"`
	Ignored        bool   `json:"ignored,omitempty"`
	Stale          bool   `json:"stale,omitempty"`
	OrderID        *int64 `json:"order_id,omitempty"`
}

// Label is the metrics outcome name.
func (o Outcome) Label() string {
	switch {
	case o.AlreadyHandled:
		return "duplicate"
	case o.Ignored:
		return "ignored"
	case o.OrderNotFound:
		return "order_not_found"
	case o.Stale:
		return "stale"
	default:
		return "applied"
	}
}

// Service ingests processor webhooks.
type Service interface {
	Ingest(ctx context.Context, payload []byte, signatureHeader string) (*Outcome, error)
}

type Adapter interface {
	Provider() string
	// Construct verifies the signature and parses the payload.
	Construct(payload []byte, signatureHeader string) (*PaymentEvent, error)
}

type Repository interface {
	InsertEvent(ctx context.Context, db *gorm.DB, event *ProcessorEvent) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider string, externalEventID string) (*ProcessorEvent, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, orderID *int64, processedAt time.Time) error
}

var (
	ErrInvalidSignature     = errors.New("invalid_signature")
	ErrInvalidPayload       = errors.New("invalid_payload")
	ErrInvalidEvent         = errors.New("invalid_event")
	ErrWebhookNotConfigured = errors.New("webhook_not_configured")
)

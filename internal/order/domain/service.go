package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/storefront/internal/cart"
)

type Service interface {
	CreateFromCart(ctx context.Context, req CreateRequest) (*CreateResult, error)
	AttachExternalSession(ctx context.Context, id string, sessionID string) error
	StartCheckout(ctx context.Context, id string, req CheckoutRequest) (*CheckoutResponse, error)
	Get(ctx context.Context, id string) (*OrderResponse, error)
	GetByNumber(ctx context.Context, number string) (*OrderResponse, error)
	UpdateDetails(ctx context.Context, id string, req UpdateDetailsRequest) (*OrderResponse, error)
}

const (
	SourceStorefront = "storefront"
	SourceAdmin      = "admin"
)

type CreateRequest struct {
	Items          []cart.LineInput `json:"items"`
	Customer       Customer         `json:"customer"`
	Shipping       *Address         `json:"shipping"`
	Billing        *Address         `json:"billing"`
	TaxAmount      int64            `json:"tax"`
	ShippingAmount int64            `json:"shipping_amount"`
	Notes          *string          `json:"notes"`
	Metadata       map[string]any   `json:"metadata"`

	AllowPriceOverride bool   `json:"-"`
	Source             string `json:"-"`
}

type CreateResult struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Currency    string `json:"currency"`
	Subtotal    int64  `json:"subtotal"`
	Tax         int64  `json:"tax"`
	Shipping    int64  `json:"shipping"`
	Total       int64  `json:"total"`
}

type CheckoutRequest struct {
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// UpdateDetailsRequest carries the admin-editable fields. Amounts, currency and payment state are not editable.
type UpdateDetailsRequest struct {
	Customer          *Customer      `json:"customer"`
	Shipping          *Address       `json:"shipping"`
	Billing           *Address       `json:"billing"`
	OrderStatus       *string        `json:"order_status"`
	FulfillmentStatus *string        `json:"fulfillment_status"`
	ShippingStatus    *string        `json:"shipping_status"`
	Notes             *string        `json:"notes"`
	Metadata          map[string]any `json:"metadata"`
}

type OrderResponse struct {
	ID                      int64            `json:"id"`
	OrderNumber             string           `json:"order_number"`
	OrderStatus             string           `json:"order_status"`
	PaymentStatus           string           `json:"payment_status"`
	FulfillmentStatus       string           `json:"fulfillment_status"`
	ShippingStatus          string           `json:"shipping_status"`
	Currency                string           `json:"currency"`
	Subtotal                int64            `json:"subtotal"`
	Tax                     int64            `json:"tax"`
	Shipping                int64            `json:"shipping"`
	Total                   int64            `json:"total"`
	ManuallyPriced          bool             `json:"manually_priced"`
	Customer                *Customer        `json:"customer,omitempty"`
	ShippingAddress         *Address         `json:"shipping_address,omitempty"`
	BillingAddress          *Address         `json:"billing_address,omitempty"`
	ExternalSessionID       *string          `json:"external_session_id,omitempty"`
	ExternalPaymentIntentID *string          `json:"external_payment_intent_id,omitempty"`
	PaidAt                  *time.Time       `json:"paid_at,omitempty"`
	Notes                   *string          `json:"notes,omitempty"`
	Metadata                map[string]any   `json:"metadata,omitempty"`
	Items                   []LineItemResult `json:"items"`
	CreatedAt               time.Time        `json:"created_at"`
	UpdatedAt               time.Time        `json:"updated_at"`
}

type LineItemResult struct {
	ID               string  `json:"id"`
	Kind             string  `json:"kind"`
	VariantID        *string `json:"variant_id,omitempty"`
	DesignID         *string `json:"design_id,omitempty"`
	LockTechnologyID *string `json:"lock_technology_id,omitempty"`
	SKU              *string `json:"sku,omitempty"`
	Description      string  `json:"description"`
	Currency         string  `json:"currency"`
	UnitAmount       int64   `json:"unit_amount"`
	Quantity         int64   `json:"quantity"`
	LineTotal        int64   `json:"line_total"`
	PriceSource      string  `json:"price_source"`
}

var (
	ErrInvalidID              = errors.New("invalid_id")
	ErrInvalidBuyer           = errors.New("invalid_buyer")
	ErrInvalidAmount          = errors.New("invalid_amount")
	ErrInvalidSessionID       = errors.New("invalid_session_id")
	ErrInvalidRedirectURL     = errors.New("invalid_redirect_url")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrNotFound               = errors.New("order_not_found")
	ErrSessionAlreadyAttached = errors.New("session_already_attached")
	ErrOrderNotPayable        = errors.New("order_not_payable")
	ErrCheckoutUnavailable    = errors.New("checkout_unavailable")
)

// FieldViolation is one failed buyer field, keyed by its JSON path.
type FieldViolation struct {
	Field string
	Rule  string
}

// BuyerError lists every invalid buyer field. It matches ErrInvalidBuyer.
type BuyerError struct {
	Violations []FieldViolation
}

func (e *BuyerError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		fields = append(fields, v.Field)
	}
	return "invalid_buyer: " + strings.Join(fields, ", ")
}

func (e *BuyerError) Unwrap() error { return ErrInvalidBuyer }

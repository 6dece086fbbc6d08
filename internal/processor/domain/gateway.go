package domain

import (
	"context"
	"errors"
)

// Gateway mirrors catalog objects at the payment processor and opens hosted checkout sessions.
type Gateway interface {
	Name() string
	UpsertProduct(ctx context.Context, input ProductInput) (string, error)
	UpsertPrice(ctx context.Context, input PriceInput) (string, error)
	CreateCheckoutSession(ctx context.Context, input CheckoutInput) (*CheckoutSession, error)
}

type ProductInput struct {
	ProductID   string
	ExternalID  *string
	Name        string
	Description *string
	Active      bool
	// Version changes whenever mirrored fields change so retries of the same write share a key.
	Version int64
}

// PriceInput describes a variant price. Processor prices are immutable, so a changed amount or
// currency creates a new price and deactivates the previous one.
type PriceInput struct {
	VariantID         string
	SKU               string
	Nickname          string
	ExternalProductID string
	PreviousPriceID   *string
	UnitAmount        int64
	Currency          string
	Active            bool
	Version           int64
}

type CheckoutInput struct {
	OrderID        string
	OrderNumber    string
	Currency       string
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
	Lines          []CheckoutLine
}

type CheckoutLine struct {
	Name       string
	SKU        string
	UnitAmount int64
	Quantity   int64
}

type CheckoutSession struct {
	ID  string
	URL string
}

var (
	ErrGatewayDisabled = errors.New("processor_disabled")
	ErrInvalidInput    = errors.New("invalid_processor_input")
)

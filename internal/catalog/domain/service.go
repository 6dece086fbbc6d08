package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	CreateProduct(ctx context.Context, req CreateProductRequest) (*ProductResponse, error)
	UpdateProduct(ctx context.Context, id string, req UpdateProductRequest) (*ProductResponse, error)
	ArchiveProduct(ctx context.Context, id string) (*ProductResponse, error)
	GetProduct(ctx context.Context, id string) (*ProductResponse, error)
	SyncProduct(ctx context.Context, id string) (*ProductResponse, error)

	CreateVariant(ctx context.Context, productID string, req CreateVariantRequest) (*VariantResponse, error)
	UpdateVariant(ctx context.Context, id string, req UpdateVariantRequest) (*VariantResponse, error)
	GetVariant(ctx context.Context, id string) (*VariantResponse, error)
	SyncVariant(ctx context.Context, id string) (*VariantResponse, error)

	CreateKeycardDesign(ctx context.Context, req CreateOptionRequest) (*OptionResponse, error)
	CreateLockTechnology(ctx context.Context, req CreateOptionRequest) (*OptionResponse, error)
}

type CreateProductRequest struct {
	Code        string         `json:"code"`
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	Active      *bool          `json:"active"`
	Metadata    map[string]any `json:"metadata"`
}

type UpdateProductRequest struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	Active      *bool          `json:"active"`
	Metadata    map[string]any `json:"metadata"`
}

type CreateVariantRequest struct {
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	UnitAmount *int64 `json:"unit_amount"`
	Currency   string `json:"currency"`
	Active     *bool  `json:"active"`
}

type UpdateVariantRequest struct {
	Name       *string `json:"name"`
	UnitAmount *int64  `json:"unit_amount"`
	Currency   *string `json:"currency"`
	Active     *bool   `json:"active"`
}

// CreateOptionRequest creates a keycard design or a lock technology.
type CreateOptionRequest struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Active *bool  `json:"active"`
}

type ProductResponse struct {
	ID          string            `json:"id"`
	Code        string            `json:"code"`
	Name        string            `json:"name"`
	Description *string           `json:"description,omitempty"`
	Active      bool              `json:"active"`
	ExternalID  *string           `json:"external_id,omitempty"`
	SyncStatus  string            `json:"sync_status"`
	SyncError   *string           `json:"sync_error,omitempty"`
	SyncedAt    *time.Time        `json:"synced_at,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	Variants    []VariantResponse `json:"variants,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type VariantResponse struct {
	ID              string     `json:"id"`
	ProductID       string     `json:"product_id"`
	SKU             string     `json:"sku"`
	Name            string     `json:"name"`
	UnitAmount      int64      `json:"unit_amount"`
	Currency        string     `json:"currency"`
	Active          bool       `json:"active"`
	ExternalPriceID *string    `json:"external_price_id,omitempty"`
	SyncStatus      string     `json:"sync_status"`
	SyncError       *string    `json:"sync_error,omitempty"`
	SyncedAt        *time.Time `json:"synced_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type OptionResponse struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidCode       = errors.New("invalid_code")
	ErrInvalidSKU        = errors.New("invalid_sku")
	ErrInvalidUnitAmount = errors.New("invalid_unit_amount")
	ErrInvalidCurrency   = errors.New("invalid_currency")
	ErrProductArchived   = errors.New("product_archived")
	ErrDuplicateCode     = errors.New("duplicate_code")
	ErrNotFound          = errors.New("not_found")
)

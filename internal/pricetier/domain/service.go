package domain

import (
	"context"
	"encoding/json"
	"errors"
)

type Service interface {
	ReplaceAll(ctx context.Context, owner Owner, raw []RawTier) ([]Tier, error)
	ListActive(ctx context.Context, owner Owner) ([]Tier, error)
	ResolveFor(ctx context.Context, owner Owner, quantity int64) (Tier, error)
}

type VariantTierInput struct {
	MinQty     json.Number `json:"min_qty"`
	UnitAmount json.Number `json:"unit_amount"`
	Currency   string      `json:"currency"`
}

type KeycardTierInput struct {
	MinBoxes    json.Number `json:"min_boxes"`
	PricePerBox json.Number `json:"price_per_box"`
	Currency    string      `json:"currency"`
}

type VariantTierResponse struct {
	MinQty     int64  `json:"min_qty"`
	MaxQty     *int64 `json:"max_qty"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
}

type KeycardTierResponse struct {
	MinBoxes    int64  `json:"min_boxes"`
	MaxBoxes    *int64 `json:"max_boxes"`
	PricePerBox int64  `json:"price_per_box"`
	Currency    string `json:"currency"`
}

func VariantRaw(items []VariantTierInput) []RawTier {
	raw := make([]RawTier, 0, len(items))
	for _, item := range items {
		raw = append(raw, RawTier{Min: item.MinQty, Amount: item.UnitAmount, Currency: item.Currency})
	}
	return raw
}

func KeycardRaw(items []KeycardTierInput) []RawTier {
	raw := make([]RawTier, 0, len(items))
	for _, item := range items {
		raw = append(raw, RawTier{Min: item.MinBoxes, Amount: item.PricePerBox, Currency: item.Currency})
	}
	return raw
}

func ToVariantResponses(tiers []Tier) []VariantTierResponse {
	out := make([]VariantTierResponse, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, VariantTierResponse{MinQty: t.MinQuantity, MaxQty: t.MaxQuantity, UnitAmount: t.UnitAmount, Currency: t.Currency})
	}
	return out
}

func ToKeycardResponses(tiers []Tier) []KeycardTierResponse {
	out := make([]KeycardTierResponse, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, KeycardTierResponse{MinBoxes: t.MinQuantity, MaxBoxes: t.MaxQuantity, PricePerBox: t.UnitAmount, Currency: t.Currency})
	}
	return out
}

var (
	ErrInvalidTiers       = errors.New("invalid_tiers")
	ErrInvalidMinQuantity = errors.New("invalid_min_quantity")
	ErrInvalidUnitAmount  = errors.New("invalid_unit_amount")
	ErrInvalidCurrency    = errors.New("invalid_currency")
	ErrInvalidOwner       = errors.New("invalid_owner")
	ErrOwnerNotFound      = errors.New("owner_not_found")
	ErrNoPricing          = errors.New("no_pricing")
)

package cart

import "errors"

var (
	ErrEmptyCart         = errors.New("empty_cart")
	ErrTooManyLines      = errors.New("too_many_line_items")
	ErrInvalidKind       = errors.New("invalid_item_kind")
	ErrInvalidItemID     = errors.New("invalid_item_id")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidUnitAmount = errors.New("invalid_unit_amount")
	ErrMixedCurrency     = errors.New("mixed_currency")
	ErrAmountOverflow    = errors.New("amount_overflow")

	ErrItemNotFound = errors.New("item_not_found")

	ErrInactiveItem = errors.New("inactive_item")
	ErrNoPricing    = errors.New("no_pricing")
)

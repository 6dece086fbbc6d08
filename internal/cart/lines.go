package cart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
)

const (
	KindVariant = "variant"
	KindKeycard = "keycard"

	PriceSourceTier           = "tier"
	PriceSourceManualOverride = "manual_override"
)

// LineInput is a cart line as submitted by the client. Only ids and quantities are trusted.
type LineInput struct {
	Kind             string `json:"kind"`
	VariantID        string `json:"variant_id"`
	DesignID         string `json:"design_id"`
	LockTechnologyID string `json:"lock_technology_id"`
	Quantity         int64  `json:"quantity"`
	UnitAmount       *int64 `json:"unit_amount,omitempty"`
}

// Line is either a CatalogLine or a ConfigurableLine.
type Line interface {
	isLine()
}

type CatalogLine struct {
	VariantID     snowflake.ID
	Quantity      int64
	PriceOverride *int64
}

func (CatalogLine) isLine() {}

type ConfigurableLine struct {
	DesignID         snowflake.ID
	LockTechnologyID snowflake.ID
	Boxes            int64
}

func (ConfigurableLine) isLine() {}

// LineError pins a failure to the cart position that caused it.
type LineError struct {
	Index int
	Err   error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Index, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// LineIndex reports the failing line of a cart error, if any.
func LineIndex(err error) (int, bool) {
	var lineErr *LineError
	if errors.As(err, &lineErr) {
		return lineErr.Index, true
	}
	return 0, false
}

// ParseLines validates raw input. Price overrides are dropped unless allowOverride is set, and
// never apply to keycard lines.
func ParseLines(inputs []LineInput, allowOverride bool) ([]Line, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyCart
	}

	lines := make([]Line, 0, len(inputs))
	for i, input := range inputs {
		line, err := parseLine(input, allowOverride)
		if err != nil {
			return nil, &LineError{Index: i, Err: err}
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func parseLine(input LineInput, allowOverride bool) (Line, error) {
	if input.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	kind := strings.ToLower(strings.TrimSpace(input.Kind))
	if kind == "" {
		switch {
		case strings.TrimSpace(input.VariantID) != "":
			kind = KindVariant
		case strings.TrimSpace(input.DesignID) != "":
			kind = KindKeycard
		}
	}

	switch kind {
	case KindVariant:
		variantID, err := parseID(input.VariantID)
		if err != nil {
			return nil, err
		}
		line := CatalogLine{VariantID: variantID, Quantity: input.Quantity}
		if allowOverride && input.UnitAmount != nil {
			if *input.UnitAmount < 0 {
				return nil, ErrInvalidUnitAmount
			}
			amount := *input.UnitAmount
			line.PriceOverride = &amount
		}
		return line, nil
	case KindKeycard:
		designID, err := parseID(input.DesignID)
		if err != nil {
			return nil, err
		}
		techID, err := parseID(input.LockTechnologyID)
		if err != nil {
			return nil, err
		}
		return ConfigurableLine{DesignID: designID, LockTechnologyID: techID, Boxes: input.Quantity}, nil
	default:
		return nil, ErrInvalidKind
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, ErrInvalidItemID
	}
	return id, nil
}

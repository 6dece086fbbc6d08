package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// RawTier is an unvalidated breakpoint as submitted by an admin.
type RawTier struct {
	Min      json.Number
	Amount   json.Number
	Currency string
}

// Normalize turns admin input into a tier set that partitions [1, inf). Nothing is written
// when it returns an error.
func Normalize(raw []RawTier, defaultCurrency string) ([]Tier, error) {
	if len(raw) == 0 {
		return nil, ErrInvalidTiers
	}

	defaultCurrency = strings.ToUpper(strings.TrimSpace(defaultCurrency))
	parsed := make([]Tier, 0, len(raw))
	for i, item := range raw {
		minQty, err := parseNonNegative(item.Min)
		if err != nil {
			return nil, fmt.Errorf("tier %d: %w", i, ErrInvalidMinQuantity)
		}
		amount, err := parseNonNegative(item.Amount)
		if err != nil {
			return nil, fmt.Errorf("tier %d: %w", i, ErrInvalidUnitAmount)
		}
		currency := strings.ToUpper(strings.TrimSpace(item.Currency))
		if currency == "" {
			currency = defaultCurrency
		}
		if len(currency) != 3 {
			return nil, fmt.Errorf("tier %d: %w", i, ErrInvalidCurrency)
		}
		parsed = append(parsed, Tier{MinQuantity: minQty, UnitAmount: amount, Currency: currency})
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].MinQuantity < parsed[j].MinQuantity
	})

	// equal mins keep input order after a stable sort, so the last of a run wins
	deduped := make([]Tier, 0, len(parsed))
	for i := range parsed {
		if i+1 < len(parsed) && parsed[i+1].MinQuantity == parsed[i].MinQuantity {
			continue
		}
		deduped = append(deduped, parsed[i])
	}

	deduped[0].MinQuantity = 1
	for i := 1; i < len(deduped); i++ {
		if deduped[i].MinQuantity <= deduped[i-1].MinQuantity {
			deduped[i].MinQuantity = deduped[i-1].MinQuantity + 1
		}
	}
	for i := 0; i < len(deduped)-1; i++ {
		upper := deduped[i+1].MinQuantity - 1
		deduped[i].MaxQuantity = &upper
	}
	deduped[len(deduped)-1].MaxQuantity = nil

	return deduped, nil
}

// Resolve returns the tier containing quantity. Quantities below one are priced as one.
func Resolve(tiers []Tier, quantity int64) (Tier, error) {
	if len(tiers) == 0 {
		return Tier{}, ErrNoPricing
	}
	if quantity < 1 {
		quantity = 1
	}
	for _, tier := range tiers {
		if tier.Contains(quantity) {
			return tier, nil
		}
	}
	return Tier{}, ErrNoPricing
}

func parseNonNegative(value json.Number) (int64, error) {
	v, err := value.Int64()
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative value %d", v)
	}
	return v, nil
}

package cart

import (
	"context"
	"errors"
	"math"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/config"
	pricetierdomain "github.com/smallbiznis/storefront/internal/pricetier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PricedLine is the server-side price of one cart line, ready to be snapshotted.
type PricedLine struct {
	Kind             string
	ProductID        *snowflake.ID
	VariantID        *snowflake.ID
	DesignID         *snowflake.ID
	LockTechnologyID *snowflake.ID
	SKU              string
	Description      string
	Currency         string
	UnitAmount       int64
	Quantity         int64
	LineTotal        int64
	PriceSource      string
}

type Resolution struct {
	Lines          []PricedLine
	Subtotal       int64
	Currency       string
	ManuallyPriced bool
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	CatalogRepo catalogdomain.Repository
	Tiers       pricetierdomain.Service
	CheckoutCfg *config.CheckoutConfigHolder `optional:"true"`
}

type Resolver struct {
	db          *gorm.DB
	log         *zap.Logger
	catalogRepo catalogdomain.Repository
	tiers       pricetierdomain.Service
	checkoutCfg *config.CheckoutConfigHolder
}

func NewResolver(p Params) *Resolver {
	return &Resolver{
		db:          p.DB,
		log:         p.Log.Named("cart.resolver"),
		catalogRepo: p.CatalogRepo,
		tiers:       p.Tiers,
		checkoutCfg: p.CheckoutCfg,
	}
}

// Resolve prices every line or none. The first failing line aborts the cart.
func (r *Resolver) Resolve(ctx context.Context, lines []Line) (*Resolution, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	if limit := r.checkoutCfg.Get().MaxLineItems; len(lines) > limit {
		return nil, ErrTooManyLines
	}

	res := &Resolution{Lines: make([]PricedLine, 0, len(lines))}
	for i, line := range lines {
		priced, err := r.priceLine(ctx, line)
		if err != nil {
			return nil, &LineError{Index: i, Err: err}
		}

		if res.Currency == "" {
			res.Currency = priced.Currency
		} else if priced.Currency != res.Currency {
			return nil, &LineError{Index: i, Err: ErrMixedCurrency}
		}

		if priced.LineTotal > math.MaxInt64-res.Subtotal {
			return nil, &LineError{Index: i, Err: ErrAmountOverflow}
		}
		res.Subtotal += priced.LineTotal
		if priced.PriceSource == PriceSourceManualOverride {
			res.ManuallyPriced = true
		}
		res.Lines = append(res.Lines, priced)
	}

	return res, nil
}

func (r *Resolver) priceLine(ctx context.Context, line Line) (PricedLine, error) {
	switch l := line.(type) {
	case CatalogLine:
		return r.priceCatalogLine(ctx, l)
	case ConfigurableLine:
		return r.priceConfigurableLine(ctx, l)
	default:
		return PricedLine{}, ErrInvalidKind
	}
}

func (r *Resolver) priceCatalogLine(ctx context.Context, line CatalogLine) (PricedLine, error) {
	if line.Quantity < 1 {
		return PricedLine{}, ErrInvalidQuantity
	}
	variant, err := r.catalogRepo.FindVariant(ctx, r.db, line.VariantID)
	if err != nil {
		return PricedLine{}, err
	}
	if variant == nil {
		return PricedLine{}, ErrItemNotFound
	}
	product, err := r.catalogRepo.FindProduct(ctx, r.db, variant.ProductID)
	if err != nil {
		return PricedLine{}, err
	}
	if product == nil {
		return PricedLine{}, ErrItemNotFound
	}
	if !variant.Active || !product.Active {
		return PricedLine{}, ErrInactiveItem
	}

	priced := PricedLine{
		Kind:        KindVariant,
		ProductID:   idPtr(product.ID),
		VariantID:   idPtr(variant.ID),
		SKU:         variant.SKU,
		Description: product.Name + " - " + variant.Name,
		Quantity:    line.Quantity,
	}

	if line.PriceOverride != nil {
		priced.UnitAmount = *line.PriceOverride
		priced.Currency = variant.Currency
		priced.PriceSource = PriceSourceManualOverride
	} else {
		tier, err := r.tiers.ResolveFor(ctx, pricetierdomain.VariantOwner{VariantID: variant.ID}, line.Quantity)
		if err != nil {
			return PricedLine{}, mapTierErr(err)
		}
		priced.UnitAmount = tier.UnitAmount
		priced.Currency = tier.Currency
		priced.PriceSource = PriceSourceTier
	}

	total, err := lineTotal(priced.UnitAmount, priced.Quantity)
	if err != nil {
		return PricedLine{}, err
	}
	priced.LineTotal = total
	return priced, nil
}

func (r *Resolver) priceConfigurableLine(ctx context.Context, line ConfigurableLine) (PricedLine, error) {
	if line.Boxes < 1 {
		return PricedLine{}, ErrInvalidQuantity
	}
	design, err := r.catalogRepo.FindKeycardDesign(ctx, r.db, line.DesignID)
	if err != nil {
		return PricedLine{}, err
	}
	if design == nil {
		return PricedLine{}, ErrItemNotFound
	}
	tech, err := r.catalogRepo.FindLockTechnology(ctx, r.db, line.LockTechnologyID)
	if err != nil {
		return PricedLine{}, err
	}
	if tech == nil {
		return PricedLine{}, ErrItemNotFound
	}
	if !design.Active || !tech.Active {
		return PricedLine{}, ErrInactiveItem
	}

	tier, err := r.tiers.ResolveFor(ctx, pricetierdomain.KeycardOwner{DesignID: design.ID, LockTechnologyID: tech.ID}, line.Boxes)
	if err != nil {
		return PricedLine{}, mapTierErr(err)
	}
	total, err := lineTotal(tier.UnitAmount, line.Boxes)
	if err != nil {
		return PricedLine{}, err
	}

	return PricedLine{
		Kind:             KindKeycard,
		DesignID:         idPtr(design.ID),
		LockTechnologyID: idPtr(tech.ID),
		Description:      design.Name + " / " + tech.Name,
		Currency:         tier.Currency,
		UnitAmount:       tier.UnitAmount,
		Quantity:         line.Boxes,
		LineTotal:        total,
		PriceSource:      PriceSourceTier,
	}, nil
}

func mapTierErr(err error) error {
	if errors.Is(err, pricetierdomain.ErrNoPricing) {
		return ErrNoPricing
	}
	return err
}

func lineTotal(unitAmount, quantity int64) (int64, error) {
	if unitAmount < 0 || quantity < 1 {
		return 0, ErrInvalidUnitAmount
	}
	if unitAmount > 0 && quantity > math.MaxInt64/unitAmount {
		return 0, ErrAmountOverflow
	}
	return unitAmount * quantity, nil
}

func idPtr(id snowflake.ID) *snowflake.ID {
	return &id
}

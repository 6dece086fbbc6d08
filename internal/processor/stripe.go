package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/storefront/internal/processor/domain"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.uber.org/zap"
)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeProductAPI interface {
	New(params *stripe.ProductParams) (*stripe.Product, error)
	Update(id string, params *stripe.ProductParams) (*stripe.Product, error)
}

type stripePriceAPI interface {
	New(params *stripe.PriceParams) (*stripe.Price, error)
	Get(id string, params *stripe.PriceParams) (*stripe.Price, error)
	Update(id string, params *stripe.PriceParams) (*stripe.Price, error)
}

type stripeClients struct {
	sessions stripeSessionAPI
	products stripeProductAPI
	prices   stripePriceAPI
}

type StripeConfig struct {
	APIKey    string
	AccountID string
	Backends  *stripe.Backends
	Log       *zap.Logger
	clients   *stripeClients
}

type stripeGateway struct {
	api     stripeClients
	account string
	log     *zap.Logger
}

func NewStripe(cfg StripeConfig) (domain.Gateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.clients != nil {
		clients = *cfg.clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			sessions: sc.CheckoutSessions,
			products: sc.Products,
			prices:   sc.Prices,
		}
	}
	if clients.sessions == nil || clients.products == nil || clients.prices == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &stripeGateway{
		api:     clients,
		account: strings.TrimSpace(cfg.AccountID),
		log:     log.Named("processor.stripe"),
	}, nil
}

func (g *stripeGateway) Name() string { return "stripe" }

func (g *stripeGateway) UpsertProduct(ctx context.Context, input domain.ProductInput) (string, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || input.ProductID == "" {
		return "", domain.ErrInvalidInput
	}

	params := &stripe.ProductParams{
		Name:   stripe.String(name),
		Active: stripe.Bool(input.Active),
	}
	params.Context = ctx
	if input.Description != nil && strings.TrimSpace(*input.Description) != "" {
		params.Description = stripe.String(strings.TrimSpace(*input.Description))
	}
	params.AddMetadata("product_id", input.ProductID)
	if g.account != "" {
		params.SetStripeAccount(g.account)
	}

	if input.ExternalID != nil && *input.ExternalID != "" {
		product, err := g.api.products.Update(*input.ExternalID, params)
		if err != nil {
			return "", fmt.Errorf("stripe: update product: %w", err)
		}
		g.log.Debug("product updated", zap.String("external_id", product.ID))
		return product.ID, nil
	}

	params.SetIdempotencyKey(fmt.Sprintf("product-%s-%d", input.ProductID, input.Version))
	product, err := g.api.products.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create product: %w", err)
	}
	g.log.Debug("product created", zap.String("external_id", product.ID))
	return product.ID, nil
}

func (g *stripeGateway) UpsertPrice(ctx context.Context, input domain.PriceInput) (string, error) {
	if input.VariantID == "" || input.ExternalProductID == "" || input.UnitAmount < 0 {
		return "", domain.ErrInvalidInput
	}
	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if currency == "" {
		return "", domain.ErrInvalidInput
	}

	if input.PreviousPriceID != nil && *input.PreviousPriceID != "" {
		getParams := &stripe.PriceParams{}
		getParams.Context = ctx
		if g.account != "" {
			getParams.SetStripeAccount(g.account)
		}
		previous, err := g.api.prices.Get(*input.PreviousPriceID, getParams)
		if err != nil {
			return "", fmt.Errorf("stripe: get price: %w", err)
		}
		if previous.UnitAmount == input.UnitAmount && strings.EqualFold(string(previous.Currency), currency) {
			if previous.Active != input.Active {
				if err := g.setPriceActive(ctx, previous.ID, input.Active); err != nil {
					return "", err
				}
			}
			return previous.ID, nil
		}
	}

	params := &stripe.PriceParams{
		Product:    stripe.String(input.ExternalProductID),
		UnitAmount: stripe.Int64(input.UnitAmount),
		Currency:   stripe.String(currency),
		Active:     stripe.Bool(input.Active),
	}
	params.Context = ctx
	if nickname := strings.TrimSpace(input.Nickname); nickname != "" {
		params.Nickname = stripe.String(nickname)
	}
	params.AddMetadata("variant_id", input.VariantID)
	if input.SKU != "" {
		params.AddMetadata("sku", input.SKU)
	}
	params.SetIdempotencyKey(fmt.Sprintf("price-%s-%d", input.VariantID, input.Version))
	if g.account != "" {
		params.SetStripeAccount(g.account)
	}

	price, err := g.api.prices.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create price: %w", err)
	}

	if input.PreviousPriceID != nil && *input.PreviousPriceID != "" && *input.PreviousPriceID != price.ID {
		if err := g.setPriceActive(ctx, *input.PreviousPriceID, false); err != nil {
			g.log.Warn("failed to deactivate previous price",
				zap.String("price_id", *input.PreviousPriceID),
				zap.Error(err),
			)
		}
	}

	g.log.Debug("price created", zap.String("external_price_id", price.ID))
	return price.ID, nil
}

func (g *stripeGateway) setPriceActive(ctx context.Context, priceID string, active bool) error {
	params := &stripe.PriceParams{Active: stripe.Bool(active)}
	params.Context = ctx
	if g.account != "" {
		params.SetStripeAccount(g.account)
	}
	if _, err := g.api.prices.Update(priceID, params); err != nil {
		return fmt.Errorf("stripe: update price: %w", err)
	}
	return nil
}

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, input domain.CheckoutInput) (*domain.CheckoutSession, error) {
	if len(input.Lines) == 0 || input.OrderID == "" {
		return nil, domain.ErrInvalidInput
	}
	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if currency == "" {
		return nil, domain.ErrInvalidInput
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(input.SuccessURL),
		CancelURL:  stripe.String(input.CancelURL),
	}
	params.Context = ctx
	if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if g.account != "" {
		params.SetStripeAccount(g.account)
	}
	if input.OrderNumber != "" {
		params.ClientReferenceID = stripe.String(input.OrderNumber)
	}
	if input.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(input.CustomerEmail)
	}

	metadata := map[string]string{"order_id": input.OrderID}
	if input.OrderNumber != "" {
		metadata["order_number"] = input.OrderNumber
	}
	params.Metadata = metadata
	params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
		Metadata: copyMetadata(metadata),
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(input.Lines))
	for _, item := range input.Lines {
		quantity := item.Quantity
		if quantity < 1 {
			quantity = 1
		}
		line := &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(item.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
		}
		if item.SKU != "" {
			line.PriceData.ProductData.Metadata = map[string]string{"sku": item.SKU}
		}
		lineItems = append(lineItems, line)
	}
	params.LineItems = lineItems

	session, err := g.api.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	g.log.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("order_id", input.OrderID),
	)

	return &domain.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

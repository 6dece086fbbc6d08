package processor

import (
	"context"

	"github.com/smallbiznis/storefront/internal/processor/domain"
)

// noopGateway is used when no processor credentials are configured. Every call fails with
// ErrGatewayDisabled so sync rows end up failed instead of silently synced.
type noopGateway struct{}

func NewNoop() domain.Gateway {
	return noopGateway{}
}

func (noopGateway) Name() string { return "noop" }

func (noopGateway) UpsertProduct(context.Context, domain.ProductInput) (string, error) {
	return "", domain.ErrGatewayDisabled
}

func (noopGateway) UpsertPrice(context.Context, domain.PriceInput) (string, error) {
	return "", domain.ErrGatewayDisabled
}

func (noopGateway) CreateCheckoutSession(context.Context, domain.CheckoutInput) (*domain.CheckoutSession, error) {
	return nil, domain.ErrGatewayDisabled
}

package processor

import (
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/processor/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("processor.gateway",
	fx.Provide(NewGateway),
)

// NewGateway picks the processor once at startup.
func NewGateway(cfg config.Config, log *zap.Logger) (domain.Gateway, error) {
	if !cfg.StripeEnabled() {
		log.Warn("stripe secret key not set, processor calls are disabled")
		return NewNoop(), nil
	}
	return NewStripe(StripeConfig{
		APIKey:    cfg.Stripe.SecretKey,
		AccountID: cfg.Stripe.AccountID,
		Log:       log,
	})
}

package payment

import (
	"strings"

	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"github.com/smallbiznis/storefront/internal/payment/repository"
	paymentservice "github.com/smallbiznis/storefront/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(NewAdapter),
	fx.Provide(fx.Annotate(paymentservice.NewService, fx.As(new(paymentdomain.Service)))),
)

// NewAdapter returns nil when no webhook secret is configured; Ingest then reports webhook_not_configured.
func NewAdapter(cfg config.Config, log *zap.Logger) paymentdomain.Adapter {
	secret := strings.TrimSpace(cfg.Stripe.WebhookSecret)
	if secret == "" {
		log.Named("payment.service").Warn("stripe webhook secret not set; webhook ingest disabled")
		return nil
	}
	return stripe.NewAdapter(secret)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/storefront/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Cfg        config.Config
	Clock      clock.Clock
	Repo       paymentdomain.Repository
	OrderRepo  orderdomain.Repository
	Adapter    paymentdomain.Adapter `optional:"true"`
	ObsMetrics *obsmetrics.Metrics   `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          paymentdomain.Repository
	orderRepo     orderdomain.Repository
	adapter       paymentdomain.Adapter
	obsMetrics    *obsmetrics.Metrics
	orderingGuard bool
}

func NewService(p Params) *Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("payment.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		orderRepo:     p.OrderRepo,
		adapter:       p.Adapter,
		obsMetrics:    p.ObsMetrics,
		orderingGuard: p.Cfg.WebhookOrderingGuard,
	}
}

// Ingest verifies a processor delivery and applies it to its order at most once.
// Every verified event is acknowledged; only store failures are returned after verification.
func (s *Service) Ingest(ctx context.Context, payload []byte, signatureHeader string) (*paymentdomain.Outcome, error) {
	if s.adapter == nil {
		return nil, paymentdomain.ErrWebhookNotConfigured
	}
	event, err := s.adapter.Construct(payload, signatureHeader)
	if err != nil {
		return nil, err
	}
	if !json.Valid(event.RawPayload) {
		return nil, paymentdomain.ErrInvalidPayload
	}

	log := logger.WithContext(ctx, s.log).With(
		zap.String("provider", event.Provider),
		zap.String("event_id", event.ProviderEventID),
		zap.String("event_type", event.Type),
	)

	received := paymentdomain.ProcessorEvent{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ExternalEventID: event.ProviderEventID,
		EventType:       event.Type,
		Payload:         datatypes.JSON(event.RawPayload),
		ReceivedAt:      s.clock.Now(),
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return nil, err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			outcome := &paymentdomain.Outcome{EventType: event.Type, AlreadyHandled: true, OrderID: stored.OrderID}
			s.obsMetrics.RecordWebhookEvent(ctx, event.Provider, event.Type, outcome.Label())
			log.Debug("webhook event already processed")
			return outcome, nil
		}
		log.Info("reprocessing unfinished webhook event")
	}

	var outcome *paymentdomain.Outcome
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result, err := s.apply(ctx, tx, log, event)
		if err != nil {
			return err
		}
		outcome = result
		return s.repo.MarkProcessed(ctx, tx, stored.ID, result.OrderID, s.clock.Now())
	})
	if err != nil {
		log.Error("webhook event processing failed", zap.Error(err))
		return nil, err
	}

	s.obsMetrics.RecordWebhookEvent(ctx, event.Provider, event.Type, outcome.Label())
	return outcome, nil
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, log *zap.Logger, event *paymentdomain.PaymentEvent) (*paymentdomain.Outcome, error) {
	outcome := &paymentdomain.Outcome{EventType: event.Type}
	if !event.Handled {
		outcome.Ignored = true
		log.Debug("webhook event type ignored")
		return outcome, nil
	}

	order, err := s.resolveOrder(ctx, tx, event.Ref)
	if err != nil {
		return nil, err
	}
	if order == nil {
		outcome.OrderNotFound = true
		log.Warn("webhook event has no matching order",
			zap.String("session_id", event.Ref.SessionID),
			zap.String("payment_intent_id", event.Ref.PaymentIntentID),
			zap.String("order_number", event.Ref.OrderNumber),
		)
		return outcome, nil
	}
	outcome.OrderID = &order.ID
	orderLog := logger.WithOrder(log, order.ID, derefString(order.OrderNumber))

	if s.orderingGuard && order.LastEventAt != nil && event.OccurredAt.Before(*order.LastEventAt) {
		outcome.Stale = true
		orderLog.Info("webhook event older than last applied event",
			zap.Time("occurred_at", event.OccurredAt),
			zap.Time("last_event_at", *order.LastEventAt),
		)
		return outcome, nil
	}

	fields, err := s.buildPatch(order, event, orderLog)
	if err != nil {
		return nil, err
	}
	if err := s.orderRepo.Patch(ctx, tx, order.ID, fields); err != nil {
		return nil, err
	}
	orderLog.Info("webhook event applied", zap.Any("payment_status", fields["payment_status"]))
	return outcome, nil
}

// resolveOrder tries metadata id, session id, payment intent id, then order number.
func (s *Service) resolveOrder(ctx context.Context, tx *gorm.DB, ref paymentdomain.OrderRef) (*orderdomain.Order, error) {
	var (
		order *orderdomain.Order
		err   error
	)
	if ref.OrderID != nil {
		if order, err = s.orderRepo.FindByID(ctx, tx, *ref.OrderID); err != nil || order != nil {
			return s.lock(ctx, tx, order, err)
		}
	}
	if ref.SessionID != "" {
		if order, err = s.orderRepo.FindBySessionID(ctx, tx, ref.SessionID); err != nil || order != nil {
			return s.lock(ctx, tx, order, err)
		}
	}
	if ref.PaymentIntentID != "" {
		if order, err = s.orderRepo.FindByPaymentIntentID(ctx, tx, ref.PaymentIntentID); err != nil || order != nil {
			return s.lock(ctx, tx, order, err)
		}
	}
	if number := strings.ToUpper(strings.TrimSpace(ref.OrderNumber)); number != "" {
		if order, err = s.orderRepo.FindByNumber(ctx, tx, number); err != nil || order != nil {
			return s.lock(ctx, tx, order, err)
		}
	}
	return nil, nil
}

func (s *Service) lock(ctx context.Context, tx *gorm.DB, order *orderdomain.Order, err error) (*orderdomain.Order, error) {
	if err != nil || order == nil {
		return order, err
	}
	return s.orderRepo.FindByIDForUpdate(ctx, tx, order.ID)
}

func (s *Service) buildPatch(order *orderdomain.Order, event *paymentdomain.PaymentEvent, log *zap.Logger) (map[string]any, error) {
	patch := event.Patch
	now := s.clock.Now()
	fields := map[string]any{"updated_at": now}

	setString := func(column string, value *string) {
		if value != nil {
			fields[column] = *value
		}
	}
	setAmount := func(column string, value *int64) {
		if value != nil && *value >= 0 {
			fields[column] = *value
		}
	}

	setString("external_session_id", patch.ExternalSessionID)
	setString("external_payment_intent_id", patch.ExternalPaymentIntentID)
	setString("external_customer_id", patch.ExternalCustomerID)
	setString("customer_email", patch.CustomerEmail)
	setString("customer_name", patch.CustomerName)
	setString("customer_phone", patch.CustomerPhone)

	for column, addr := range map[string]*orderdomain.Address{
		"shipping_address": patch.ShippingAddress,
		"billing_address":  patch.BillingAddress,
	} {
		if addr == nil {
			continue
		}
		raw, err := json.Marshal(addr)
		if err != nil {
			return nil, err
		}
		fields[column] = datatypes.JSON(raw)
	}

	// Amounts are minor units of the event currency; they only apply to an order in that currency.
	amountsApply := true
	if patch.Currency != nil {
		if strings.EqualFold(*patch.Currency, order.Currency) {
			fields["currency"] = strings.ToUpper(*patch.Currency)
		} else {
			amountsApply = false
			log.Warn("webhook currency differs from order currency, amounts ignored",
				zap.String("event_currency", *patch.Currency),
				zap.String("order_currency", order.Currency),
			)
		}
	}
	if amountsApply {
		setAmount("subtotal", patch.Subtotal)
		setAmount("tax_amount", patch.TaxAmount)
		setAmount("shipping_amount", patch.ShippingAmount)
		setAmount("total", patch.Total)
	}

	if patch.PaymentStatus != nil {
		fields["payment_status"] = *patch.PaymentStatus
		if *patch.PaymentStatus == orderdomain.PaymentStatusPaid && order.PaidAt == nil {
			fields["paid_at"] = now
		}
	}
	if event.Refunded && order.OrderStatus == orderdomain.OrderStatusPlaced {
		fields["order_status"] = orderdomain.OrderStatusCancelled
	}

	occurred := event.OccurredAt
	if order.LastEventAt == nil || occurred.After(*order.LastEventAt) {
		fields["last_event_at"] = occurred
	}
	return fields, nil
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// IsSignatureError reports errors that must be answered with 400 and never stored.
func IsSignatureError(err error) bool {
	return errors.Is(err, paymentdomain.ErrInvalidSignature) ||
		errors.Is(err, paymentdomain.ErrInvalidPayload) ||
		errors.Is(err, paymentdomain.ErrInvalidEvent)
}

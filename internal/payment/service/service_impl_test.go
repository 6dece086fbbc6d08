package service_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	orderrepo "github.com/smallbiznis/storefront/internal/order/repository"
	"github.com/smallbiznis/storefront/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/storefront/internal/payment/repository"
	paymentservice "github.com/smallbiznis/storefront/internal/payment/service"
	"github.com/smallbiznis/storefront/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_test"

type webhookEnv struct {
	db    *gorm.DB
	svc   *paymentservice.Service
	clock *clock.FakeClock
	repo  orderdomain.Repository
}

func newWebhookEnv(t *testing.T, guard bool) *webhookEnv {
	t.Helper()
	db := testutil.OpenDB(t)
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	repo := orderrepo.Provide()
	svc := paymentservice.NewService(paymentservice.Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     testutil.Node(t),
		Cfg:       config.Config{WebhookOrderingGuard: guard},
		Clock:     fake,
		Repo:      paymentrepo.Provide(),
		OrderRepo: repo,
		Adapter:   stripe.NewAdapter(webhookSecret),
	})
	return &webhookEnv{db: db, svc: svc, clock: fake, repo: repo}
}

func (e *webhookEnv) seedOrder(t *testing.T, sessionID string) *orderdomain.Order {
	t.Helper()
	ctx := context.Background()
	now := e.clock.Now()
	order := &orderdomain.Order{
		OrderStatus:       orderdomain.OrderStatusPlaced,
		PaymentStatus:     orderdomain.PaymentStatusPending,
		FulfillmentStatus: orderdomain.FulfillmentStatusUnfulfilled,
		ShippingStatus:    orderdomain.ShippingStatusPending,
		Currency:          "USD",
		Subtotal:          12600,
		Total:             12600,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if sessionID != "" {
		order.ExternalSessionID = &sessionID
	}
	require.NoError(t, e.repo.Insert(ctx, e.db, order))
	number := fmt.Sprintf("LTS-2026-%06d", order.ID)
	require.NoError(t, e.repo.SetOrderNumber(ctx, e.db, order.ID, number))
	return e.reload(t, order.ID)
}

func (e *webhookEnv) reload(t *testing.T, id int64) *orderdomain.Order {
	t.Helper()
	order, err := e.repo.FindByID(context.Background(), e.db, id)
	require.NoError(t, err)
	require.NotNil(t, order)
	return order
}

func (e *webhookEnv) ingest(t *testing.T, payload []byte) *paymentdomain.Outcome {
	t.Helper()
	outcome, err := e.svc.Ingest(context.Background(), payload, signatureHeader(payload))
	require.NoError(t, err)
	require.NotNil(t, outcome)
	return outcome
}

func (e *webhookEnv) countEvents(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Table("processor_events").Count(&count).Error)
	return count
}

func stripeEvent(t *testing.T, id, eventType string, created time.Time, object map[string]any) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":      id,
		"object":  "event",
		"type":    eventType,
		"created": created.Unix(),
		"data":    map[string]any{"object": object},
	})
	require.NoError(t, err)
	return payload
}

func signatureHeader(payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.%s", ts, string(payload))))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func completedSession(sessionID, currency string) map[string]any {
	return map[string]any{
		"id":              sessionID,
		"currency":        currency,
		"amount_subtotal": 12600,
		"amount_total":    13100,
		"payment_status":  "paid",
		"payment_intent":  "pi_" + sessionID,
		"customer":        "cus_1",
		"customer_details": map[string]any{
			"email": "guest@example.com",
			"name":  "Guest Buyer",
			"address": map[string]any{
				"line1": "1 Main St", "city": "Austin", "postal_code": "78701", "country": "US",
			},
		},
		"shipping_details": map[string]any{
			"name":    "Guest Buyer",
			"address": map[string]any{"line1": "9 Dock Rd", "city": "Austin", "country": "US"},
		},
		"total_details": map[string]any{"amount_tax": 500, "amount_shipping": 0},
	}
}

func TestIngestDuplicateDeliveryIsNoop(t *testing.T) {
	env := newWebhookEnv(t, false)
	order := env.seedOrder(t, "cs_1")
	payload := stripeEvent(t, "evt_1", stripe.EventCheckoutCompleted, env.clock.Now(), completedSession("cs_1", "usd"))

	first := env.ingest(t, payload)
	assert.Equal(t, "applied", first.Label())
	require.NotNil(t, first.OrderID)
	assert.Equal(t, order.ID, *first.OrderID)

	afterFirst := env.reload(t, order.ID)
	assert.Equal(t, orderdomain.PaymentStatusPaid, afterFirst.PaymentStatus)
	assert.Equal(t, int64(13100), afterFirst.Total)
	assert.Equal(t, int64(500), afterFirst.TaxAmount)
	assert.Equal(t, "pi_cs_1", *afterFirst.ExternalPaymentIntentID)
	assert.Equal(t, "cus_1", *afterFirst.ExternalCustomerID)
	assert.Equal(t, "guest@example.com", *afterFirst.CustomerEmail)
	require.NotNil(t, afterFirst.PaidAt)

	var shipping orderdomain.Address
	require.NoError(t, json.Unmarshal(afterFirst.ShippingAddress, &shipping))
	assert.Equal(t, "9 Dock Rd", shipping.Line1)

	env.clock.Advance(time.Hour)
	second := env.ingest(t, payload)
	assert.True(t, second.AlreadyHandled)
	require.NotNil(t, second.OrderID)
	assert.Equal(t, order.ID, *second.OrderID)

	afterSecond := env.reload(t, order.ID)
	assert.Equal(t, afterFirst.UpdatedAt.Unix(), afterSecond.UpdatedAt.Unix())
	assert.Equal(t, afterFirst.PaidAt.Unix(), afterSecond.PaidAt.Unix())
	assert.Equal(t, int64(1), env.countEvents(t))
}

func TestIngestKeepsFirstPaidAt(t *testing.T) {
	env := newWebhookEnv(t, false)
	order := env.seedOrder(t, "cs_2")
	paidAt := env.clock.Now()

	env.ingest(t, stripeEvent(t, "evt_a", stripe.EventCheckoutCompleted, paidAt, completedSession("cs_2", "usd")))

	env.clock.Advance(2 * time.Hour)
	outcome := env.ingest(t, stripeEvent(t, "evt_b", stripe.EventPaymentIntentSucceeded, env.clock.Now(), map[string]any{
		"id":       "pi_cs_2",
		"currency": "usd",
	}))
	assert.Equal(t, "applied", outcome.Label())

	got := env.reload(t, order.ID)
	assert.Equal(t, orderdomain.PaymentStatusPaid, got.PaymentStatus)
	require.NotNil(t, got.PaidAt)
	assert.Equal(t, paidAt.Unix(), got.PaidAt.Unix())
	assert.Equal(t, int64(2), env.countEvents(t))
}

func TestIngestRefundCancelsPlacedOrder(t *testing.T) {
	env := newWebhookEnv(t, false)
	order := env.seedOrder(t, "cs_3")
	env.ingest(t, stripeEvent(t, "evt_paid", stripe.EventCheckoutCompleted, env.clock.Now(), completedSession("cs_3", "usd")))

	env.clock.Advance(time.Minute)
	outcome := env.ingest(t, stripeEvent(t, "evt_refund", stripe.EventChargeRefunded, env.clock.Now(), map[string]any{
		"id":             "ch_1",
		"payment_intent": "pi_cs_3",
	}))
	require.NotNil(t, outcome.OrderID)

	got := env.reload(t, order.ID)
	assert.Equal(t, orderdomain.PaymentStatusRefunded, got.PaymentStatus)
	assert.Equal(t, orderdomain.OrderStatusCancelled, got.OrderStatus)
}

func TestIngestRefundLeavesProcessingOrder(t *testing.T) {
	env := newWebhookEnv(t, false)
	order := env.seedOrder(t, "")
	require.NoError(t, env.repo.Patch(context.Background(), env.db, order.ID, map[string]any{
		"order_status":               orderdomain.OrderStatusProcessing,
		"external_payment_intent_id": "pi_9",
	}))

	env.ingest(t, stripeEvent(t, "evt_refund", stripe.EventChargeRefunded, env.clock.Now(), map[string]any{
		"id":             "ch_9",
		"payment_intent": "pi_9",
	}))

	got := env.reload(t, order.ID)
	assert.Equal(t, orderdomain.PaymentStatusRefunded, got.PaymentStatus)
	assert.Equal(t, orderdomain.OrderStatusProcessing, got.OrderStatus)
}

func TestIngestResolvesByMetadataAndNumber(t *testing.T) {
	env := newWebhookEnv(t, false)
	byID := env.seedOrder(t, "")
	byNumber := env.seedOrder(t, "")

	session := completedSession("cs_meta", "usd")
	session["metadata"] = map[string]any{"order_id": fmt.Sprint(byID.ID)}
	outcome := env.ingest(t, stripeEvent(t, "evt_meta", stripe.EventCheckoutCompleted, env.clock.Now(), session))
	require.NotNil(t, outcome.OrderID)
	assert.Equal(t, byID.ID, *outcome.OrderID)
	assert.Equal(t, "cs_meta", *env.reload(t, byID.ID).ExternalSessionID)

	session = completedSession("cs_ref", "usd")
	session["client_reference_id"] = *byNumber.OrderNumber
	outcome = env.ingest(t, stripeEvent(t, "evt_ref", stripe.EventCheckoutCompleted, env.clock.Now(), session))
	require.NotNil(t, outcome.OrderID)
	assert.Equal(t, byNumber.ID, *outcome.OrderID)
}

func TestIngestUnknownOrderIsAcknowledged(t *testing.T) {
	env := newWebhookEnv(t, false)

	outcome := env.ingest(t, stripeEvent(t, "evt_orphan", stripe.EventCheckoutCompleted, env.clock.Now(), completedSession("cs_missing", "usd")))
	assert.True(t, outcome.OrderNotFound)
	assert.Nil(t, outcome.OrderID)

	var processed int64
	require.NoError(t, env.db.Table("processor_events").Where("processed_at IS NOT NULL AND order_id IS NULL").Count(&processed).Error)
	assert.Equal(t, int64(1), processed)
}

func TestIngestIgnoresUnhandledTypes(t *testing.T) {
	env := newWebhookEnv(t, false)

	outcome := env.ingest(t, stripeEvent(t, "evt_cus", "customer.created", env.clock.Now(), map[string]any{"id": "cus_1"}))
	assert.True(t, outcome.Ignored)
	assert.Equal(t, "ignored", outcome.Label())
	assert.Equal(t, int64(1), env.countEvents(t))
}

func TestIngestRejectsBadSignature(t *testing.T) {
	env := newWebhookEnv(t, false)
	payload := stripeEvent(t, "evt_bad", stripe.EventCheckoutCompleted, env.clock.Now(), completedSession("cs_x", "usd"))

	_, err := env.svc.Ingest(context.Background(), payload, "t=1,v1=deadbeef")
	require.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
	assert.True(t, paymentservice.IsSignatureError(err))
	assert.Equal(t, int64(0), env.countEvents(t))
}

func TestIngestWithoutAdapter(t *testing.T) {
	svc := paymentservice.NewService(paymentservice.Params{
		DB:    testutil.OpenDB(t),
		Log:   zap.NewNop(),
		GenID: testutil.Node(t),
		Clock: clock.SystemClock{},
		Repo:  paymentrepo.Provide(),
	})

	_, err := svc.Ingest(context.Background(), []byte(`{}`), "")
	require.ErrorIs(t, err, paymentdomain.ErrWebhookNotConfigured)
}

func TestIngestSkipsMismatchedCurrency(t *testing.T) {
	env := newWebhookEnv(t, false)
	order := env.seedOrder(t, "cs_eur")

	env.ingest(t, stripeEvent(t, "evt_eur", stripe.EventCheckoutCompleted, env.clock.Now(), completedSession("cs_eur", "eur")))

	got := env.reload(t, order.ID)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, orderdomain.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, int64(12600), got.Total)
	assert.Equal(t, int64(12600), got.Subtotal)
	assert.Zero(t, got.TaxAmount)
	assert.Zero(t, got.ShippingAmount)
}

func TestIngestExpiredSessionKeepsOrderPlaced(t *testing.T) {
	env := newWebhookEnv(t, false)
	order := env.seedOrder(t, "cs_exp")

	outcome := env.ingest(t, stripeEvent(t, "evt_exp", stripe.EventCheckoutExpired, env.clock.Now(), map[string]any{
		"id":             "cs_exp",
		"currency":       "usd",
		"payment_status": "unpaid",
	}))
	require.NotNil(t, outcome.OrderID)

	got := env.reload(t, order.ID)
	assert.Equal(t, orderdomain.PaymentStatusExpired, got.PaymentStatus)
	assert.Equal(t, orderdomain.OrderStatusPlaced, got.OrderStatus)
	assert.Nil(t, got.PaidAt)
}

func TestIngestReprocessesUnfinishedEvent(t *testing.T) {
	env := newWebhookEnv(t, false)
	order := env.seedOrder(t, "cs_crash")
	payload := stripeEvent(t, "evt_crash", stripe.EventCheckoutCompleted, env.clock.Now(), completedSession("cs_crash", "usd"))

	_, err := paymentrepo.Provide().InsertEvent(context.Background(), env.db, &paymentdomain.ProcessorEvent{
		ID:              testutil.Node(t).Generate(),
		Provider:        "stripe",
		ExternalEventID: "evt_crash",
		EventType:       stripe.EventCheckoutCompleted,
		Payload:         payload,
		ReceivedAt:      env.clock.Now(),
	})
	require.NoError(t, err)

	outcome := env.ingest(t, payload)
	assert.False(t, outcome.AlreadyHandled)
	assert.Equal(t, orderdomain.PaymentStatusPaid, env.reload(t, order.ID).PaymentStatus)
	assert.Equal(t, int64(1), env.countEvents(t))
}

func TestIngestOrderingGuard(t *testing.T) {
	env := newWebhookEnv(t, true)
	order := env.seedOrder(t, "cs_guard")
	later := env.clock.Now()
	earlier := later.Add(-10 * time.Minute)

	env.ingest(t, stripeEvent(t, "evt_new", stripe.EventCheckoutCompleted, later, completedSession("cs_guard", "usd")))

	outcome := env.ingest(t, stripeEvent(t, "evt_old", stripe.EventCheckoutExpired, earlier, map[string]any{"id": "cs_guard"}))
	assert.True(t, outcome.Stale)

	got := env.reload(t, order.ID)
	assert.Equal(t, orderdomain.PaymentStatusPaid, got.PaymentStatus)
	require.NotNil(t, got.LastEventAt)
	assert.Equal(t, later.Unix(), got.LastEventAt.Unix())
}

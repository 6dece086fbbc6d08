package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructVerifiesSignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_123","object":"event","type":"customer.created","created":1767225600,"data":{"object":{"id":"cus_1"}}}`)
	now := time.Now().Unix()

	adapter := NewAdapter(secret)
	event, err := adapter.Construct(payload, buildStripeSignatureHeader(secret, payload, now))
	require.NoError(t, err)
	assert.Equal(t, "evt_123", event.ProviderEventID)
	assert.False(t, event.Handled)

	_, err = adapter.Construct(payload, buildStripeSignatureHeader("wrong", payload, now))
	require.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	_, err = adapter.Construct(payload, "")
	require.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	_, err = adapter.Construct(payload, buildStripeSignatureHeader(secret, payload, now-3600))
	require.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
}

func TestConstructRejectsMalformedBody(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":`)

	_, err := NewAdapter(secret).Construct(payload, buildStripeSignatureHeader(secret, payload, time.Now().Unix()))
	require.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)
}

func TestConstructParsesEvents(t *testing.T) {
	secret := "whsec_test"
	adapter := NewAdapter(secret)
	created := int64(1767225600)

	tests := []struct {
		name  string
		event map[string]any
		check func(t *testing.T, ev *paymentdomain.PaymentEvent)
	}{{
		name: EventCheckoutCompleted,
		event: map[string]any{
			"id": "evt_cs", "object": "event", "type": EventCheckoutCompleted, "created": created,
			"data": map[string]any{"object": map[string]any{
				"id":                  "cs_1",
				"client_reference_id": "LTS-2026-000007",
				"currency":            "usd",
				"amount_subtotal":     12600,
				"amount_total":        13100,
				"payment_status":      "paid",
				"payment_intent":      "pi_1",
				"customer":            map[string]any{"id": "cus_1"},
				"metadata":            map[string]any{"order_id": "7", "order_number": "LTS-2026-000007"},
				"customer_details": map[string]any{
					"email": "Guest@Example.com", "name": "Guest",
					"address": map[string]any{"line1": "1 Main", "city": "Austin", "country": "us"},
				},
				"total_details": map[string]any{"amount_tax": 500, "amount_shipping": 0},
			}},
		},
		check: func(t *testing.T, ev *paymentdomain.PaymentEvent) {
			require.True(t, ev.Handled)
			require.NotNil(t, ev.Ref.OrderID)
			assert.Equal(t, int64(7), *ev.Ref.OrderID)
			assert.Equal(t, "cs_1", ev.Ref.SessionID)
			assert.Equal(t, "LTS-2026-000007", ev.Ref.OrderNumber)
			assert.Equal(t, "USD", *ev.Patch.Currency)
			assert.Equal(t, int64(13100), *ev.Patch.Total)
			assert.Equal(t, int64(500), *ev.Patch.TaxAmount)
			assert.Equal(t, "cus_1", *ev.Patch.ExternalCustomerID)
			assert.Equal(t, "guest@example.com", *ev.Patch.CustomerEmail)
			assert.Equal(t, "US", ev.Patch.BillingAddress.Country)
			assert.Nil(t, ev.Patch.ShippingAddress)
			assert.Equal(t, orderdomain.PaymentStatusPaid, *ev.Patch.PaymentStatus)
			assert.Equal(t, time.Unix(created, 0).UTC(), ev.OccurredAt)
		},
	}, {
		name: "checkout.session.completed unpaid",
		event: map[string]any{
			"id": "evt_cs_unpaid", "object": "event", "type": EventCheckoutCompleted, "created": created,
			"data": map[string]any{"object": map[string]any{"id": "cs_2", "payment_status": "unpaid"}},
		},
		check: func(t *testing.T, ev *paymentdomain.PaymentEvent) {
			assert.Nil(t, ev.Patch.PaymentStatus)
			assert.Nil(t, ev.Ref.OrderID)
			assert.Nil(t, ev.Patch.Total)
			assert.Nil(t, ev.Patch.Subtotal)
			assert.Nil(t, ev.Patch.TaxAmount)
		},
	}, {
		name: "checkout.session.completed free order",
		event: map[string]any{
			"id": "evt_cs_free", "object": "event", "type": EventCheckoutCompleted, "created": created,
			"data": map[string]any{"object": map[string]any{
				"id":              "cs_3",
				"currency":        "usd",
				"amount_subtotal": 0,
				"amount_total":    0,
				"payment_status":  "no_payment_required",
				"total_details":   map[string]any{"amount_tax": 0},
			}},
		},
		check: func(t *testing.T, ev *paymentdomain.PaymentEvent) {
			require.NotNil(t, ev.Patch.Total)
			assert.Zero(t, *ev.Patch.Total)
			require.NotNil(t, ev.Patch.TaxAmount)
			assert.Nil(t, ev.Patch.ShippingAmount)
			assert.Equal(t, orderdomain.PaymentStatusPaid, *ev.Patch.PaymentStatus)
		},
	}, {
		name: EventPaymentIntentFailed,
		event: map[string]any{
			"id": "evt_pi", "object": "event", "type": EventPaymentIntentFailed, "created": created,
			"data": map[string]any{"object": map[string]any{"id": "pi_9", "currency": "usd"}},
		},
		check: func(t *testing.T, ev *paymentdomain.PaymentEvent) {
			assert.Equal(t, "pi_9", ev.Ref.PaymentIntentID)
			assert.Equal(t, orderdomain.PaymentStatusFailed, *ev.Patch.PaymentStatus)
			assert.Nil(t, ev.Patch.Currency)
		},
	}, {
		name: EventChargeRefunded,
		event: map[string]any{
			"id": "evt_ch", "object": "event", "type": EventChargeRefunded, "created": created,
			"data": map[string]any{"object": map[string]any{"id": "ch_1", "payment_intent": "pi_9"}},
		},
		check: func(t *testing.T, ev *paymentdomain.PaymentEvent) {
			assert.True(t, ev.Refunded)
			assert.Equal(t, "pi_9", ev.Ref.PaymentIntentID)
			assert.Equal(t, orderdomain.PaymentStatusRefunded, *ev.Patch.PaymentStatus)
		},
	}, {
		name: "charge.refunded expanded",
		event: map[string]any{
			"id": "evt_ch_exp", "object": "event", "type": EventChargeRefunded, "created": created,
			"data": map[string]any{"object": map[string]any{
				"id":             "ch_2",
				"payment_intent": map[string]any{"id": "pi_10", "object": "payment_intent"},
				"customer":       map[string]any{"id": "cus_2", "object": "customer"},
				"metadata":       map[string]any{"order_number": "LTS-2026-000010"},
			}},
		},
		check: func(t *testing.T, ev *paymentdomain.PaymentEvent) {
			assert.Equal(t, "pi_10", ev.Ref.PaymentIntentID)
			assert.Equal(t, "LTS-2026-000010", ev.Ref.OrderNumber)
			assert.Equal(t, "cus_2", *ev.Patch.ExternalCustomerID)
		},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := json.Marshal(tt.event)
			require.NoError(t, err)
			ev, err := adapter.Construct(payload, buildStripeSignatureHeader(secret, payload, time.Now().Unix()))
			require.NoError(t, err)
			tt.check(t, ev)
		})
	}
}

func buildStripeSignatureHeader(secret string, payload []byte, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	signature := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, signature)
}

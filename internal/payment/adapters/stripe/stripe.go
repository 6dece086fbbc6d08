package stripe

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	stripego "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

const providerName = "stripe"

const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncFailed    = "checkout.session.async_payment_failed"
	EventCheckoutExpired        = "checkout.session.expired"
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded         = "charge.refunded"
)

type Adapter struct {
	webhookSecret string
	tolerance     time.Duration
}

func NewAdapter(webhookSecret string) *Adapter {
	return &Adapter{
		webhookSecret: strings.TrimSpace(webhookSecret),
		tolerance:     webhook.DefaultTolerance,
	}
}

func (a *Adapter) Provider() string {
	return providerName
}

func (a *Adapter) Construct(payload []byte, signatureHeader string) (*paymentdomain.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, a.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                a.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrInvalidHeader),
			errors.Is(err, webhook.ErrNoValidSignature),
			errors.Is(err, webhook.ErrNotSigned),
			errors.Is(err, webhook.ErrTooOld):
			return nil, paymentdomain.ErrInvalidSignature
		default:
			return nil, paymentdomain.ErrInvalidPayload
		}
	}
	if strings.TrimSpace(event.ID) == "" || event.Data == nil {
		return nil, paymentdomain.ErrInvalidEvent
	}

	out := &paymentdomain.PaymentEvent{
		Provider:        providerName,
		ProviderEventID: event.ID,
		Type:            string(event.Type),
		OccurredAt:      timestamp(event.Created),
		RawPayload:      payload,
	}

	switch out.Type {
	case EventCheckoutCompleted, EventCheckoutAsyncSucceeded, EventCheckoutAsyncFailed, EventCheckoutExpired:
		err = parseCheckoutSession(out, event.Data.Raw)
	case EventPaymentIntentSucceeded, EventPaymentIntentFailed:
		err = parsePaymentIntent(out, event.Data.Raw)
	case EventChargeRefunded:
		err = parseCharge(out, event.Data.Raw)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// presentFields records which keys a processor object carried. Stripe amounts decode to plain
// int64 values, so an absent amount and a zero amount only differ here.
type presentFields map[string]json.RawMessage

func fieldsOf(raw json.RawMessage) presentFields {
	var fields presentFields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	return fields
}

func (f presentFields) has(key string) bool {
	value, ok := f[key]
	return ok && string(value) != "null"
}

func (f presentFields) amount(key string, value int64) *int64 {
	if !f.has(key) {
		return nil
	}
	return &value
}

func parseCheckoutSession(out *paymentdomain.PaymentEvent, raw json.RawMessage) error {
	var session stripego.CheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return paymentdomain.ErrInvalidEvent
	}

	out.Handled = true
	out.Ref = orderRef(session.Metadata)
	out.Ref.SessionID = session.ID
	out.Ref.PaymentIntentID = intentID(session.PaymentIntent)
	if ref := strings.TrimSpace(session.ClientReferenceID); ref != "" {
		out.Ref.OrderNumber = ref
	}

	patch := &out.Patch
	patch.ExternalSessionID = optional(session.ID)
	patch.ExternalPaymentIntentID = optional(intentID(session.PaymentIntent))
	patch.ExternalCustomerID = optional(customerID(session.Customer))

	switch out.Type {
	case EventCheckoutCompleted, EventCheckoutAsyncSucceeded:
		fields := fieldsOf(raw)
		patch.Currency = optional(strings.ToUpper(string(session.Currency)))
		patch.Subtotal = fields.amount("amount_subtotal", session.AmountSubtotal)
		patch.Total = fields.amount("amount_total", session.AmountTotal)
		if totals := session.TotalDetails; totals != nil {
			totalFields := fieldsOf(fields["total_details"])
			patch.TaxAmount = totalFields.amount("amount_tax", totals.AmountTax)
			patch.ShippingAmount = totalFields.amount("amount_shipping", totals.AmountShipping)
		}
		if details := session.CustomerDetails; details != nil {
			patch.CustomerEmail = optional(strings.ToLower(details.Email))
			patch.CustomerName = optional(details.Name)
			patch.CustomerPhone = optional(details.Phone)
			patch.BillingAddress = toAddress(details.Name, details.Address)
		}
		if shipping := session.ShippingDetails; shipping != nil {
			patch.ShippingAddress = toAddress(shipping.Name, shipping.Address)
		}
		// unpaid completions settle later through async_payment_succeeded
		switch {
		case out.Type == EventCheckoutAsyncSucceeded,
			session.PaymentStatus == stripego.CheckoutSessionPaymentStatusPaid,
			session.PaymentStatus == stripego.CheckoutSessionPaymentStatusNoPaymentRequired:
			patch.PaymentStatus = optional(orderdomain.PaymentStatusPaid)
		}
	case EventCheckoutAsyncFailed:
		patch.PaymentStatus = optional(orderdomain.PaymentStatusFailed)
	case EventCheckoutExpired:
		patch.PaymentStatus = optional(orderdomain.PaymentStatusExpired)
	}
	return nil
}

func parsePaymentIntent(out *paymentdomain.PaymentEvent, raw json.RawMessage) error {
	var intent stripego.PaymentIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(intent.ID) == "" {
		return paymentdomain.ErrInvalidEvent
	}

	out.Handled = true
	out.Ref = orderRef(intent.Metadata)
	out.Ref.PaymentIntentID = intent.ID

	out.Patch.ExternalPaymentIntentID = optional(intent.ID)
	out.Patch.ExternalCustomerID = optional(customerID(intent.Customer))
	if out.Type == EventPaymentIntentSucceeded {
		out.Patch.Currency = optional(strings.ToUpper(string(intent.Currency)))
		out.Patch.PaymentStatus = optional(orderdomain.PaymentStatusPaid)
	} else {
		out.Patch.PaymentStatus = optional(orderdomain.PaymentStatusFailed)
	}
	return nil
}

func parseCharge(out *paymentdomain.PaymentEvent, raw json.RawMessage) error {
	var charge stripego.Charge
	if err := json.Unmarshal(raw, &charge); err != nil {
		return paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(charge.ID) == "" {
		return paymentdomain.ErrInvalidEvent
	}

	out.Handled = true
	out.Refunded = true
	out.Ref = orderRef(charge.Metadata)
	out.Ref.PaymentIntentID = intentID(charge.PaymentIntent)

	out.Patch.ExternalPaymentIntentID = optional(intentID(charge.PaymentIntent))
	out.Patch.ExternalCustomerID = optional(customerID(charge.Customer))
	out.Patch.PaymentStatus = optional(orderdomain.PaymentStatusRefunded)
	return nil
}

func intentID(intent *stripego.PaymentIntent) string {
	if intent == nil {
		return ""
	}
	return intent.ID
}

func customerID(customer *stripego.Customer) string {
	if customer == nil {
		return ""
	}
	return customer.ID
}

func orderRef(metadata map[string]string) paymentdomain.OrderRef {
	var ref paymentdomain.OrderRef
	if raw := strings.TrimSpace(metadata["order_id"]); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			ref.OrderID = &id
		}
	}
	ref.OrderNumber = strings.TrimSpace(metadata["order_number"])
	return ref
}

func toAddress(name string, addr *stripego.Address) *orderdomain.Address {
	if addr == nil || (addr.Line1 == "" && addr.City == "" && addr.Country == "") {
		return nil
	}
	return &orderdomain.Address{
		Name:       strings.TrimSpace(name),
		Line1:      strings.TrimSpace(addr.Line1),
		Line2:      strings.TrimSpace(addr.Line2),
		City:       strings.TrimSpace(addr.City),
		State:      strings.TrimSpace(addr.State),
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(addr.Country)),
	}
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func timestamp(created int64) time.Time {
	if created == 0 {
		return time.Now().UTC()
	}
	return time.Unix(created, 0).UTC()
}

package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/service"
)

// SignatureHeader заголовок, в котором Stripe передаёт подпись
const SignatureHeader = "Stripe-Signature"

// Типы событий PaymentIntent, которые влияют на заказы
const (
	eventPaymentIntentSucceeded = "payment_intent.succeeded"
	eventPaymentIntentFailed    = "payment_intent.payment_failed"
	eventPaymentIntentCanceled  = "payment_intent.canceled"
)

// Verifier реализует service.EventVerifier поверх stripe-go/webhook
type Verifier struct {
	secret    string
	tolerance time.Duration
}

// NewVerifier создаёт Verifier. tolerance допустимый возраст подписи
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance}
}

// Verify проверяет подпись и переводит событие Stripe в service.PaymentEvent
func (v *Verifier) Verify(payload []byte, signatureHeader string) (service.PaymentEvent, error) {
	if signatureHeader == "" {
		return service.PaymentEvent{}, fmt.Errorf("%w: missing %s header", service.ErrInvalidSignature, SignatureHeader)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return service.PaymentEvent{}, fmt.Errorf("%w: %v", service.ErrInvalidSignature, err)
		}
		return service.PaymentEvent{}, fmt.Errorf("%w: %v", service.ErrMalformedEvent, err)
	}

	out := service.PaymentEvent{
		ID:   event.ID,
		Type: string(event.Type),
		Kind: kindOf(string(event.Type)),
	}
	if out.Kind == service.EventOther {
		return out, nil
	}

	if event.Data == nil || len(event.Data.Raw) == 0 {
		return service.PaymentEvent{}, fmt.Errorf("%w: event %s has no data object", service.ErrMalformedEvent, event.ID)
	}
	var pi stripego.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return service.PaymentEvent{}, fmt.Errorf("%w: decode payment intent: %v", service.ErrMalformedEvent, err)
	}

	out.PaymentReference = pi.ID
	out.Amount = pi.Amount
	out.AmountReceived = pi.AmountReceived
	out.Metadata = pi.Metadata
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	out.FailureReason = failureReason(out.Kind, &pi)
	return out, nil
}

func kindOf(eventType string) service.EventKind {
	switch eventType {
	case eventPaymentIntentSucceeded:
		return service.EventSucceeded
	case eventPaymentIntentFailed:
		return service.EventFailed
	case eventPaymentIntentCanceled:
		return service.EventCanceled
	default:
		return service.EventOther
	}
}

func failureReason(kind service.EventKind, pi *stripego.PaymentIntent) string {
	switch kind {
	case service.EventFailed:
		if pi.LastPaymentError != nil {
			return pi.LastPaymentError.Msg
		}
	case service.EventCanceled:
		if pi.CancellationReason != "" {
			return string(pi.CancellationReason)
		}
		if pi.LastPaymentError != nil {
			return pi.LastPaymentError.Msg
		}
	}
	return ""
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

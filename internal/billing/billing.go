// Package billing provides the payment gateway used to purchase Pro periods.
package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// EventPaymentSucceeded is the normalised webhook event for a settled order.
const EventPaymentSucceeded = "payment.succeeded"

// ErrInvalidWebhook is returned when a webhook payload fails verification.
var ErrInvalidWebhook = errors.New("billing: invalid webhook signature")

// Gateway defines the operations the payment flow needs from a provider.
type Gateway interface {
	// CreateOrder opens a gateway order for amount (minor units) in currency.
	// receipt is an opaque reference stored with the order.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error)

	// VerifySignature checks the signature returned by the checkout callback.
	VerifySignature(orderID, paymentID, signature string) bool

	// ConfirmPayment asks the gateway whether the order has been paid.
	ConfirmPayment(ctx context.Context, orderID string) (bool, error)

	// ParseWebhook verifies and decodes a webhook delivery.
	ParseWebhook(payload []byte, header string) (WebhookEvent, error)
}

// Order is a gateway order awaiting payment.
type Order struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
}

// WebhookEvent is a verified, provider-neutral webhook notification.
// Type is EventPaymentSucceeded for settled orders and the provider's own
// event name otherwise.
type WebhookEvent struct {
	ID        string
	Type      string
	OrderID   string
	PaymentID string
}

// Signer produces and checks checkout callback signatures. The signature is
// an HMAC-SHA256 of "orderID|paymentID" keyed by the signing secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer for secret.
func NewSigner(secret string) Signer {
	return Signer{secret: []byte(secret)}
}

// Sign returns the hex signature for an order and payment pair.
func (s Signer) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature against the expected value in constant time.
func (s Signer) Verify(orderID, paymentID, signature string) bool {
	if len(s.secret) == 0 || orderID == "" || paymentID == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(s.Sign(orderID, paymentID))
	return hmac.Equal(got, want)
}

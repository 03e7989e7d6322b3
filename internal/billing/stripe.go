package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/webhook"
)

// stripeGateway implements Gateway with Stripe PaymentIntents.
type stripeGateway struct {
	webhookSecret string
	signer        Signer
}

// NewStripeGateway creates a new Stripe payment gateway.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
// The signingSecret keys the checkout callback signature.
func NewStripeGateway(secretKey, webhookSecret, signingSecret string) Gateway {
	stripe.Key = secretKey

	return &stripeGateway{
		webhookSecret: webhookSecret,
		signer:        NewSigner(signingSecret),
	}
}

func (g *stripeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("receipt", receipt)

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}
	return &Order{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

func (g *stripeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return g.signer.Verify(orderID, paymentID, signature)
}

func (g *stripeGateway) ConfirmPayment(ctx context.Context, orderID string) (bool, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(orderID, params)
	if err != nil {
		return false, fmt.Errorf("stripe get payment intent: %w", err)
	}
	return pi.Status == stripe.PaymentIntentStatusSucceeded, nil
}

func (g *stripeGateway) ParseWebhook(payload []byte, header string) (WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, header, g.webhookSecret)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	out := WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Type != stripe.EventTypePaymentIntentSucceeded {
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return WebhookEvent{}, fmt.Errorf("stripe decode payment intent: %w", err)
	}

	out.Type = EventPaymentSucceeded
	out.OrderID = pi.ID
	out.PaymentID = pi.ID
	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		out.PaymentID = pi.LatestCharge.ID
	}
	return out, nil
}

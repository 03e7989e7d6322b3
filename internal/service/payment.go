package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/DukeRupert/rateflow/internal/auth"
	"github.com/DukeRupert/rateflow/internal/billing"
	"github.com/DukeRupert/rateflow/internal/clock"
	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/repository"
	"github.com/google/uuid"
)

var errOrderAlreadyPaid = errors.New("payment order already paid")

// =============================================================================
// Interface Definition
// =============================================================================

// PaymentService sells Pro periods through a payment gateway.
type PaymentService interface {
	// Enabled reports whether a gateway is configured.
	Enabled() bool

	// CreateOrder opens a gateway order for one Pro period.
	CreateOrder(ctx context.Context, sess *auth.Session) (*domain.PaymentOrder, error)

	// VerifyPayment checks the client callback and activates Pro.
	VerifyPayment(ctx context.Context, sess *auth.Session, params domain.VerifyPaymentParams) (*domain.PlanStatus, error)

	// HandleWebhook completes orders reported by the gateway.
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error
}

// PaymentConfig is the Pro price.
type PaymentConfig struct {
	AmountCents int64
	Currency    string
}

// =============================================================================
// Implementation
// =============================================================================

type paymentService struct {
	store   repository.Store
	gateway billing.Gateway
	config  PaymentConfig
	clock   clock.Clock
	logger  *slog.Logger
}

// NewPaymentService creates a new PaymentService. A nil gateway disables
// payments and every operation answers not_impl.
func NewPaymentService(store repository.Store, gateway billing.Gateway, cfg PaymentConfig, clk clock.Clock, logger *slog.Logger) PaymentService {
	return &paymentService{
		store:   store,
		gateway: gateway,
		config:  cfg,
		clock:   clk,
		logger:  logger,
	}
}

func (s *paymentService) Enabled() bool {
	return s.gateway != nil
}

func paymentsDisabled(op string) error {
	return domain.Errorf(domain.ENOTIMPL, op, "Payments are not configured")
}

// CreateOrder refuses an active Pro plan before the gateway is contacted.
func (s *paymentService) CreateOrder(ctx context.Context, sess *auth.Session) (*domain.PaymentOrder, error) {
	const op = "payment.create_order"

	if !s.Enabled() {
		return nil, paymentsDisabled(op)
	}

	business, err := requireOwnedBusiness(ctx, s.store, op, sess)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if domain.ResolvePlan(repoPlan(business), now).IsActivePro() {
		return nil, domain.AlreadyOnProPlan(op)
	}

	currency := strings.ToLower(s.config.Currency)
	receipt := "pro-" + business.ID.String()[:8] + "-" + now.UTC().Format("20060102150405")

	order, err := s.gateway.CreateOrder(ctx, s.config.AmountCents, currency, receipt)
	if err != nil {
		s.logger.Error("gateway order creation failed", "business_id", business.ID, "error", err)
		return nil, domain.ExternalServiceFailure(err, op, "Payment gateway")
	}

	row, err := s.store.CreatePaymentOrder(ctx, repository.CreatePaymentOrderParams{
		BusinessID:     business.ID,
		GatewayOrderID: order.ID,
		AmountCents:    order.AmountCents,
		Currency:       order.Currency,
		CreatedAt:      now,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to store payment order")
	}

	s.logger.Info("Payment order created", "business_id", business.ID, "order_id", order.ID, "amount_cents", order.AmountCents)

	out := repoOrderToDomain(row)
	out.ClientSecret = order.ClientSecret
	return out, nil
}

// VerifyPayment checks ownership, the client signature and the gateway
// status, in that order, then completes the order.
func (s *paymentService) VerifyPayment(ctx context.Context, sess *auth.Session, params domain.VerifyPaymentParams) (*domain.PlanStatus, error) {
	const op = "payment.verify"

	if !s.Enabled() {
		return nil, paymentsDisabled(op)
	}

	if _, err := requireOwnedBusiness(ctx, s.store, op, sess); err != nil {
		return nil, err
	}

	order, err := s.store.GetPaymentOrderByGatewayID(ctx, params.OrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "payment order", params.OrderID)
		}
		return nil, domain.Internal(err, op, "failed to load payment order")
	}
	if order.BusinessID != sess.BusinessID {
		return nil, domain.NotFound(op, "payment order", params.OrderID)
	}

	if !s.gateway.VerifySignature(params.OrderID, params.PaymentID, params.Signature) {
		s.logger.Warn("Payment signature mismatch", "business_id", sess.BusinessID, "order_id", params.OrderID)
		return nil, domain.PaymentVerificationFailed(op)
	}

	if order.Status == string(domain.OrderStatusCreated) {
		ok, err := s.gateway.ConfirmPayment(ctx, params.OrderID)
		if err != nil {
			return nil, domain.ExternalServiceFailure(err, op, "Payment gateway")
		}
		if !ok {
			return nil, domain.PaymentVerificationFailed(op)
		}
	}

	return s.completeOrder(ctx, op, order, params.PaymentID)
}

// completeOrder flips the order to paid and activates Pro in one transaction.
// The paid flip is conditional, so a replay finds nothing to do.
func (s *paymentService) completeOrder(ctx context.Context, op string, order repository.PaymentOrder, paymentID string) (*domain.PlanStatus, error) {
	now := s.clock.Now()

	var status *domain.PlanStatus
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		_, err := q.MarkPaymentOrderPaid(ctx, repository.MarkPaymentOrderPaidParams{
			GatewayOrderID: order.GatewayOrderID,
			PaymentID:      paymentID,
			PaidAt:         now,
		})
		if errors.Is(err, sql.ErrNoRows) {
			return errOrderAlreadyPaid
		}
		if err != nil {
			return domain.Internal(err, op, "failed to mark order paid")
		}

		status, err = activatePro(ctx, q, s.clock, op, order.BusinessID, order.GatewayOrderID)
		return err
	})

	if errors.Is(err, errOrderAlreadyPaid) {
		return nil, s.replayError(ctx, op, order.BusinessID)
	}
	if err != nil {
		if domain.HasReason(err, domain.ReasonAlreadyOnProPlan) {
			s.logger.Warn("Paid order found an active Pro plan", "business_id", order.BusinessID, "order_id", order.GatewayOrderID)
		}
		return nil, err
	}

	s.logger.Info("Payment completed", "business_id", order.BusinessID, "order_id", order.GatewayOrderID)
	return status, nil
}

func (s *paymentService) replayError(ctx context.Context, op string, businessID uuid.UUID) error {
	b, err := s.store.GetBusinessByID(ctx, businessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BusinessNotFound(op)
		}
		return domain.Internal(err, op, "failed to load business")
	}
	if domain.ResolvePlan(repoPlan(b), s.clock.Now()).IsActivePro() {
		return domain.AlreadyOnProPlan(op)
	}
	return domain.Conflict(op, "Payment order has already been completed")
}

// HandleWebhook acknowledges every verified event. Only payment success
// changes state, and a replay of it is a no-op.
func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	const op = "payment.webhook"

	if !s.Enabled() {
		return paymentsDisabled(op)
	}

	event, err := s.gateway.ParseWebhook(payload, signatureHeader)
	if err != nil {
		s.logger.Warn("Rejected webhook", "error", err)
		return domain.Invalid(op, "Invalid webhook signature")
	}

	if event.Type != billing.EventPaymentSucceeded {
		s.logger.Debug("Ignoring webhook event", "event_id", event.ID, "type", event.Type)
		return nil
	}

	order, err := s.store.GetPaymentOrderByGatewayID(ctx, event.OrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Webhook for unknown order", "event_id", event.ID, "order_id", event.OrderID)
			return nil
		}
		return domain.Internal(err, op, "failed to load payment order")
	}
	if order.Status == string(domain.OrderStatusPaid) {
		return nil
	}

	_, err = s.completeOrder(ctx, op, order, event.PaymentID)
	if err != nil && domain.ErrorCode(err) == domain.ECONFLICT {
		return nil
	}
	return err
}

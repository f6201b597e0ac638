package payment

import (
	"context"
	"strings"
	"time"

	"github.com/YelzhanWeb/canteen/internal/adapter/logger"
	"github.com/YelzhanWeb/canteen/internal/clock"
	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
	"github.com/shopspring/decimal"
)

const (
	DefaultListLimit       = 50
	MaxListLimit           = 100
	DefaultProviderTimeout = 30 * time.Second
)

// Options tune the mobile-money flow.
type Options struct {
	ProviderTimeout time.Duration
	// CancelOnMobileFailure cancels the order and releases its stock when the provider declines.
	CancelOnMobileFailure bool
}

type Service struct {
	orders      interfaces.OrderRepository
	payments    interfaces.PaymentRepository
	lifecycle   interfaces.OrderLifecycle
	tx          interfaces.TxManager
	gateway     interfaces.PaymentGateway
	broadcaster interfaces.Broadcaster
	audit       interfaces.AuditRecorder
	metrics     interfaces.Metrics
	clock       clock.Clock
	logger      logger.Logger
	opts        Options
}

type Deps struct {
	Orders      interfaces.OrderRepository
	Payments    interfaces.PaymentRepository
	Lifecycle   interfaces.OrderLifecycle
	Tx          interfaces.TxManager
	Gateway     interfaces.PaymentGateway
	Broadcaster interfaces.Broadcaster
	Audit       interfaces.AuditRecorder
	Metrics     interfaces.Metrics
	Clock       clock.Clock
	Logger      logger.Logger
}

func NewService(d Deps, opts Options) *Service {
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = DefaultProviderTimeout
	}
	return &Service{
		orders:      d.Orders,
		payments:    d.Payments,
		lifecycle:   d.Lifecycle,
		tx:          d.Tx,
		gateway:     d.Gateway,
		broadcaster: d.Broadcaster,
		audit:       d.Audit,
		metrics:     d.Metrics,
		clock:       d.Clock,
		logger:      d.Logger,
		opts:        opts,
	}
}

// PayCash records a completed cash payment for the full order total and confirms the order
// in the same transaction. Change is returned to the caller, not stored.
func (s *Service) PayCash(ctx context.Context, actor domain.Actor, cmd interfaces.CashPaymentCommand) (*interfaces.CashPaymentResult, error) {
	fields := map[string]any{"order_id": cmd.OrderID, "amount_received": cmd.AmountReceived.StringFixed(2)}

	if err := validateCash(cmd); err != nil {
		s.audit.Record(ctx, actor, domain.AuditPaymentCash, err, fields)
		return nil, err
	}

	var (
		order   *domain.Order
		payment *domain.Payment
		change  decimal.Decimal
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if order, err = s.orders.FindByID(ctx, cmd.OrderID); err != nil {
			return err
		}
		if err := s.ensureNoPayment(ctx, order.ID); err != nil {
			return err
		}
		if change, err = domain.CashChange(order.TotalAmount, cmd.AmountReceived); err != nil {
			return err
		}

		payment = domain.NewCashPayment(order, actor.ID, cmd.Notes, s.clock.Now())
		if err := s.payments.Create(ctx, payment); err != nil {
			return err
		}
		return s.lifecycle.ApplyTransition(ctx, order, domain.StatusConfirmed, actor.ID, strPtr("Cash payment received"))
	})
	if err != nil {
		logger.Failure(s.logger, "cash_payment_failed", "Cash payment failed", logger.RequestID(ctx), fields, err)
		s.audit.Record(ctx, actor, domain.AuditPaymentCash, err, fields)
		return nil, err
	}

	fields["transaction_id"] = payment.TransactionID
	fields["change_amount"] = change.StringFixed(2)
	s.settled(ctx, actor, domain.AuditPaymentCash, order, payment, fields)

	return &interfaces.CashPaymentResult{Payment: payment, ChangeAmount: change}, nil
}

// PayMobileMoney creates a PENDING payment, asks the provider to charge the phone and then
// settles or fails the payment. The payment is visible as PENDING while the provider works.
func (s *Service) PayMobileMoney(ctx context.Context, actor domain.Actor, cmd interfaces.MobilePaymentCommand) (*domain.Payment, error) {
	fields := map[string]any{"order_id": cmd.OrderID, "provider": cmd.Provider}

	if err := validateMobile(cmd); err != nil {
		s.audit.Record(ctx, actor, domain.AuditPaymentMobile, err, fields)
		return nil, err
	}

	var (
		order   *domain.Order
		payment *domain.Payment
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if order, err = s.orders.FindByID(ctx, cmd.OrderID); err != nil {
			return err
		}
		if actor.IsCustomer() && !order.OwnedBy(actor.ID) {
			return domain.Errorf(domain.CodeForbidden, "you can only pay for your own orders")
		}
		if err := s.ensureNoPayment(ctx, order.ID); err != nil {
			return err
		}
		if order.Status != domain.StatusPending {
			return domain.Errorf(domain.CodeInvalidTransition, "order is %s and no longer awaiting payment", order.Status)
		}

		payment = domain.NewMobilePayment(order, cmd.PhoneNumber, cmd.Provider, actor.ID, s.clock.Now())
		return s.payments.Create(ctx, payment)
	})
	if err != nil {
		logger.Failure(s.logger, "mobile_payment_failed", "Mobile money payment rejected", logger.RequestID(ctx), fields, err)
		s.audit.Record(ctx, actor, domain.AuditPaymentMobile, err, fields)
		return nil, err
	}
	fields["transaction_id"] = payment.TransactionID

	// the provider call outlives a dropped client so the payment never stays PENDING
	gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ProviderTimeout)
	result, gerr := s.gateway.Charge(gctx, interfaces.ChargeRequest{
		TransactionID: payment.TransactionID,
		PhoneNumber:   cmd.PhoneNumber,
		Provider:      cmd.Provider,
		Amount:        payment.Amount,
	})
	cancel()

	if gerr == nil {
		err = s.tx.WithTx(context.WithoutCancel(ctx), func(ctx context.Context) error {
			if err := payment.Complete(result.ExternalTransactionID, s.clock.Now()); err != nil {
				return err
			}
			if err := s.payments.Update(ctx, payment); err != nil {
				return err
			}
			var err error
			if order, err = s.orders.FindByID(ctx, order.ID); err != nil {
				return err
			}
			return s.lifecycle.ApplyTransition(ctx, order, domain.StatusConfirmed, actor.ID, strPtr("Mobile money payment received"))
		})
		if err == nil {
			fields["external_transaction_id"] = result.ExternalTransactionID
			s.settled(ctx, actor, domain.AuditPaymentMobile, order, payment, fields)
			return payment, nil
		}
		if domain.CodeOf(err) == "" {
			logger.Failure(s.logger, "mobile_payment_settle_failed", "Failed to settle mobile money payment", logger.RequestID(ctx), fields, err)
			s.audit.Record(ctx, actor, domain.AuditPaymentMobile, err, fields)
			return nil, err
		}
		// the order moved on while the provider was charging; the charge cannot be applied
		payment.Status = domain.PaymentPending
		payment.CompletedAt = nil
		payment.ExternalTransactionID = nil
		gerr = domain.Wrap(domain.CodeConflict, err, "order changed during payment: "+domain.MessageOf(err))
	}

	return nil, s.failMobile(ctx, actor, order, payment, gerr, fields)
}

// failMobile marks the payment FAILED. With CancelOnMobileFailure the order is cancelled in the
// same transaction; otherwise it stays PENDING with its stock reserved until someone cancels it.
func (s *Service) failMobile(ctx context.Context, actor domain.Actor, order *domain.Order, payment *domain.Payment,
	cause error, fields map[string]any,
) error {
	reason := domain.MessageOf(cause)
	if reason == "" {
		reason = cause.Error()
	}

	var (
		cancelled bool
		levels    []domain.StockLevel
	)
	err := s.tx.WithTx(context.WithoutCancel(ctx), func(ctx context.Context) error {
		if err := payment.Fail(reason, s.clock.Now()); err != nil {
			return err
		}
		if err := s.payments.Update(ctx, payment); err != nil {
			return err
		}
		if !s.opts.CancelOnMobileFailure {
			return nil
		}
		current, err := s.orders.FindByID(ctx, order.ID)
		if err != nil {
			return err
		}
		if !current.Cancellable() {
			return nil
		}
		if levels, err = s.lifecycle.ApplyCancel(ctx, current, actor.ID, strPtr("Mobile money payment failed")); err != nil {
			return err
		}
		order, cancelled = current, true
		return nil
	})
	if err != nil {
		logger.Failure(s.logger, "mobile_payment_fail_write_failed", "Failed to record mobile money failure", logger.RequestID(ctx), fields, err)
		s.audit.Record(ctx, actor, domain.AuditPaymentMobile, err, fields)
		return err
	}

	s.metrics.PaymentSettled(payment.Method, payment.Status)
	fields["failure_reason"] = reason
	fields["order_cancelled"] = cancelled

	failure := domain.Wrap(domain.CodeExternalProviderFailure, cause, "mobile money payment failed: "+reason)
	s.logger.Info("payment_failed", "Mobile money payment failed", logger.RequestID(ctx), fields)
	s.audit.Record(ctx, actor, domain.AuditPaymentMobile, failure, fields)

	s.broadcaster.Emit(ctx, domain.EventPaymentFailed, domain.PaymentEventPayload{Payment: payment, Order: order},
		domain.OrderChannel(order.ID))
	if cancelled {
		s.lifecycle.EmitCancellation(ctx, order, strPtr("Mobile money payment failed"), levels)
	}
	return failure
}

func (s *Service) settled(ctx context.Context, actor domain.Actor, action string, order *domain.Order, payment *domain.Payment, fields map[string]any) {
	s.metrics.PaymentSettled(payment.Method, payment.Status)
	s.logger.Info("payment_completed", "Payment completed", logger.RequestID(ctx), fields)
	s.audit.Record(ctx, actor, action, nil, fields)

	s.broadcaster.Emit(ctx, domain.EventPaymentCompleted, domain.PaymentEventPayload{Payment: payment, Order: order},
		domain.OrderChannel(order.ID))
	s.broadcaster.Emit(ctx, domain.EventOrderConfirmed, order, domain.RoleChannel(domain.RoleKitchen))
}

// VerifyMobileMoney asks the provider about a transaction. Nothing is written.
func (s *Service) VerifyMobileMoney(ctx context.Context, actor domain.Actor, transactionID string) (*domain.Verification, error) {
	fields := map[string]any{"transaction_id": transactionID}

	payment, err := s.payments.FindByTransactionID(ctx, transactionID)
	if err == nil && payment.Method != domain.PaymentMobileMoney {
		err = domain.Errorf(domain.CodeNotFound, "mobile money transaction %s not found", transactionID)
	}
	if err == nil && actor.IsCustomer() {
		err = s.ensureOwner(ctx, actor, payment.OrderID)
	}
	if err != nil {
		s.audit.Record(ctx, actor, domain.AuditPaymentVerify, err, fields)
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()
	v, err := s.gateway.Verify(gctx, transactionID)
	if err != nil {
		err = domain.Wrap(domain.CodeExternalProviderFailure, err, "payment verification failed")
		logger.Failure(s.logger, "payment_verify_failed", "Payment verification failed", logger.RequestID(ctx), fields, err)
		s.audit.Record(ctx, actor, domain.AuditPaymentVerify, err, fields)
		return nil, err
	}
	v.PaymentStatus = payment.Status

	fields["provider_reference"] = v.ProviderReference
	s.audit.Record(ctx, actor, domain.AuditPaymentVerify, nil, fields)
	return &v, nil
}

func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsCustomer() {
		if err := s.ensureOwner(ctx, actor, payment.OrderID); err != nil {
			return nil, domain.Errorf(domain.CodeNotFound, "payment %s not found", id)
		}
	}
	return payment, nil
}

func (s *Service) List(ctx context.Context, actor domain.Actor, filter domain.PaymentFilter) ([]*domain.Payment, error) {
	if actor.IsCustomer() {
		filter.CustomerID = actor.ID
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultListLimit
	case filter.Limit > MaxListLimit:
		filter.Limit = MaxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.payments.List(ctx, filter)
}

func (s *Service) ensureNoPayment(ctx context.Context, orderID string) error {
	exists, err := s.payments.ExistsForOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrPaymentExists
	}
	return nil
}

func (s *Service) ensureOwner(ctx context.Context, actor domain.Actor, orderID string) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.OwnedBy(actor.ID) {
		return domain.Errorf(domain.CodeForbidden, "you can only view your own payments")
	}
	return nil
}

func validateCash(cmd interfaces.CashPaymentCommand) error {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return domain.Errorf(domain.CodeInvalidInput, "orderId is required")
	}
	if !cmd.AmountReceived.IsPositive() {
		return domain.Errorf(domain.CodeInvalidInput, "amountReceived must be a positive amount")
	}
	return nil
}

func validateMobile(cmd interfaces.MobilePaymentCommand) error {
	switch {
	case strings.TrimSpace(cmd.OrderID) == "":
		return domain.Errorf(domain.CodeInvalidInput, "orderId is required")
	case strings.TrimSpace(cmd.PhoneNumber) == "":
		return domain.Errorf(domain.CodeInvalidInput, "phoneNumber is required")
	case strings.TrimSpace(cmd.Provider) == "":
		return domain.Errorf(domain.CodeInvalidInput, "provider is required")
	}
	return nil
}

func strPtr(s string) *string { return &s }

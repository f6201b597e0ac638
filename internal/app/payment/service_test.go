package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/YelzhanWeb/canteen/internal/adapter/gateway"
	"github.com/YelzhanWeb/canteen/internal/adapter/logger"
	"github.com/YelzhanWeb/canteen/internal/adapter/memory"
	"github.com/YelzhanWeb/canteen/internal/adapter/metrics"
	"github.com/YelzhanWeb/canteen/internal/app/audit"
	"github.com/YelzhanWeb/canteen/internal/app/inventory"
	"github.com/YelzhanWeb/canteen/internal/app/order"
	"github.com/YelzhanWeb/canteen/internal/clock"
	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
	"github.com/YelzhanWeb/canteen/internal/testutil"
	"github.com/shopspring/decimal"
)

var (
	now     = time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC)
	student = domain.Actor{ID: "stu-1", Name: "Ama", Role: domain.RoleStudent}
	other   = domain.Actor{ID: "stu-2", Name: "Kofi", Role: domain.RoleStudent}
	cashier = domain.Actor{ID: "staff-1", Name: "Esi", Role: domain.RoleStaff}
)

// observingGateway wraps a real gateway and lets a test look at the store mid-call.
type observingGateway struct {
	interfaces.PaymentGateway
	during func()
}

func (g *observingGateway) Charge(ctx context.Context, req interfaces.ChargeRequest) (interfaces.ChargeResult, error) {
	if g.during != nil {
		g.during()
	}
	return g.PaymentGateway.Charge(ctx, req)
}

type fixture struct {
	store   *memory.Store
	orders  *order.Service
	svc     *Service
	gateway *observingGateway
	events  *testutil.EventLog
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.PutMenuItem(domain.MenuItem{
		ID: "rice", Name: "Jollof Rice", Price: decimal.RequireFromString("12.50"),
		StockQuantity: 10, Status: domain.MenuItemAvailable, PreparationTime: 15,
	})

	clk := clock.NewManual(now)
	events := &testutil.EventLog{}
	reg := metrics.NewRegistry()
	rec := audit.NewRecorder(store.Audit(), clk, logger.Nop())

	orders := order.NewService(order.Deps{
		Orders:      store.Orders(),
		Menu:        store.Menu(),
		Ledger:      inventory.NewLedger(store.Menu(), store.TxManager()),
		Tx:          store.TxManager(),
		Broadcaster: events,
		Audit:       rec,
		Metrics:     reg,
		Clock:       clk,
		Logger:      logger.Nop(),
	})
	gw := &observingGateway{PaymentGateway: gateway.NewSimulated(gateway.Config{}, clk)}
	svc := NewService(Deps{
		Orders:      store.Orders(),
		Payments:    store.Payments(),
		Lifecycle:   orders,
		Tx:          store.TxManager(),
		Gateway:     gw,
		Broadcaster: events,
		Audit:       rec,
		Metrics:     reg,
		Clock:       clk,
		Logger:      logger.Nop(),
	}, opts)

	return &fixture{store: store, orders: orders, svc: svc, gateway: gw, events: events}
}

// placeOrder creates a PENDING order for 2 x 12.50.
func (f *fixture) placeOrder(t *testing.T) *domain.Order {
	t.Helper()
	o, err := f.orders.Create(context.Background(), student, interfaces.CreateOrderCommand{
		Items: []domain.LineRequest{{MenuItemID: "rice", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	f.events.Reset()
	return o
}

func (f *fixture) orderStatus(t *testing.T, id string) domain.Status {
	t.Helper()
	o, err := f.orders.Get(context.Background(), cashier, id)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	return o.Status
}

func (f *fixture) stock(t *testing.T) int {
	t.Helper()
	item, _ := f.store.MenuItem("rice")
	return item.StockQuantity
}

func TestService_PayCash(t *testing.T) {
	t.Parallel()

	t.Run("settles and confirms order", func(t *testing.T) {
		f := newFixture(t, Options{})
		o := f.placeOrder(t)

		res, err := f.svc.PayCash(context.Background(), cashier, interfaces.CashPaymentCommand{
			OrderID: o.ID, AmountReceived: decimal.RequireFromString("30.00"),
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		p := res.Payment
		if p.Method != domain.PaymentCash || p.Status != domain.PaymentCompleted {
			t.Fatalf("unexpected payment %+v", p)
		}
		if !p.Amount.Equal(decimal.RequireFromString("25.00")) {
			t.Fatalf("expected amount 25.00, got %s", p.Amount)
		}
		if !res.ChangeAmount.Equal(decimal.RequireFromString("5.00")) {
			t.Fatalf("expected change 5.00, got %s", res.ChangeAmount)
		}
		if p.CompletedAt == nil {
			t.Fatal("completed at not set")
		}
		if got := f.orderStatus(t, o.ID); got != domain.StatusConfirmed {
			t.Fatalf("expected CONFIRMED, got %s", got)
		}

		completed, ok := f.events.Find(domain.EventPaymentCompleted)
		if !ok || completed.Channels[0] != domain.OrderChannel(o.ID) {
			t.Fatalf("unexpected payment-completed %+v", completed)
		}
		confirmed, ok := f.events.Find(domain.EventOrderConfirmed)
		if !ok || confirmed.Channels[0] != domain.RoleChannel(domain.RoleKitchen) {
			t.Fatalf("unexpected order-confirmed %+v", confirmed)
		}
	})

	t.Run("one cent short is rejected without a payment row", func(t *testing.T) {
		f := newFixture(t, Options{})
		o := f.placeOrder(t)

		_, err := f.svc.PayCash(context.Background(), cashier, interfaces.CashPaymentCommand{
			OrderID: o.ID, AmountReceived: decimal.RequireFromString("24.99"),
		})
		if !errors.Is(err, domain.ErrInsufficientPayment) {
			t.Fatalf("expected ErrInsufficientPayment, got %v", err)
		}
		if f.store.PaymentCount() != 0 {
			t.Fatalf("expected no payments, got %d", f.store.PaymentCount())
		}
		if got := f.orderStatus(t, o.ID); got != domain.StatusPending {
			t.Fatalf("expected PENDING, got %s", got)
		}
	})

	t.Run("exact amount gives zero change", func(t *testing.T) {
		f := newFixture(t, Options{})
		o := f.placeOrder(t)

		res, err := f.svc.PayCash(context.Background(), cashier, interfaces.CashPaymentCommand{
			OrderID: o.ID, AmountReceived: decimal.RequireFromString("25"),
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !res.ChangeAmount.IsZero() {
			t.Fatalf("expected zero change, got %s", res.ChangeAmount)
		}
	})

	t.Run("validation and missing order", func(t *testing.T) {
		f := newFixture(t, Options{})

		_, err := f.svc.PayCash(context.Background(), cashier, interfaces.CashPaymentCommand{OrderID: "x"})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		_, err = f.svc.PayCash(context.Background(), cashier, interfaces.CashPaymentCommand{
			OrderID: "missing", AmountReceived: decimal.NewFromInt(10),
		})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("cancelled order cannot be paid", func(t *testing.T) {
		f := newFixture(t, Options{})
		o := f.placeOrder(t)
		if _, err := f.orders.Cancel(context.Background(), student, interfaces.CancelOrderCommand{OrderID: o.ID}); err != nil {
			t.Fatalf("cancel: %v", err)
		}

		_, err := f.svc.PayCash(context.Background(), cashier, interfaces.CashPaymentCommand{
			OrderID: o.ID, AmountReceived: decimal.NewFromInt(50),
		})
		if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
		if f.store.PaymentCount() != 0 {
			t.Fatal("payment row left behind by a rolled back settlement")
		}
	})
}

func TestService_AtMostOnePayment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cash := func(f *fixture, id string) error {
		_, err := f.svc.PayCash(ctx, cashier, interfaces.CashPaymentCommand{OrderID: id, AmountReceived: decimal.NewFromInt(25)})
		return err
	}
	mobile := func(f *fixture, id string) error {
		_, err := f.svc.PayMobileMoney(ctx, student, interfaces.MobilePaymentCommand{OrderID: id, PhoneNumber: "0241234567", Provider: "MTN"})
		return err
	}
	failedMobile := func(f *fixture, id string) error {
		_, err := f.svc.PayMobileMoney(ctx, student, interfaces.MobilePaymentCommand{OrderID: id, PhoneNumber: "fail-0000", Provider: "MTN"})
		return err
	}

	tests := []struct {
		name          string
		first, second func(*fixture, string) error
		firstFails    bool
	}{
		{name: "cash then cash", first: cash, second: cash},
		{name: "cash then mobile", first: cash, second: mobile},
		{name: "mobile then cash", first: mobile, second: cash},
		{name: "failed mobile then mobile", first: failedMobile, second: mobile, firstFails: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			o := f.placeOrder(t)

			if err := tc.first(f, o.ID); (err != nil) != tc.firstFails {
				t.Fatalf("first payment: unexpected result %v", err)
			}
			if err := tc.second(f, o.ID); !errors.Is(err, domain.ErrPaymentExists) {
				t.Fatalf("expected ErrPaymentExists, got %v", err)
			}
			if f.store.PaymentCount() != 1 {
				t.Fatalf("expected exactly one payment, got %d", f.store.PaymentCount())
			}
		})
	}
}

func TestService_PayMobileMoney(t *testing.T) {
	t.Parallel()

	t.Run("success keeps payment pending during provider call", func(t *testing.T) {
		f := newFixture(t, Options{})
		o := f.placeOrder(t)

		var seen *domain.Payment
		f.gateway.during = func() {
			list, err := f.svc.List(context.Background(), cashier, domain.PaymentFilter{})
			if err != nil || len(list) != 1 {
				t.Errorf("expected one payment during provider call, got %v (%v)", list, err)
				return
			}
			seen = list[0]
		}

		p, err := f.svc.PayMobileMoney(context.Background(), student, interfaces.MobilePaymentCommand{
			OrderID: o.ID, PhoneNumber: "0241234567", Provider: "MTN",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if seen == nil || seen.Status != domain.PaymentPending {
			t.Fatalf("expected PENDING payment during provider call, got %+v", seen)
		}
		if p.Status != domain.PaymentCompleted || p.ExternalTransactionID == nil || p.CompletedAt == nil {
			t.Fatalf("unexpected payment %+v", p)
		}
		if got := f.orderStatus(t, o.ID); got != domain.StatusConfirmed {
			t.Fatalf("expected CONFIRMED, got %s", got)
		}
		if _, ok := f.events.Find(domain.EventOrderConfirmed); !ok {
			t.Fatal("expected order-confirmed")
		}
	})

	t.Run("failure leaves order pending and stock reserved", func(t *testing.T) {
		f := newFixture(t, Options{})
		o := f.placeOrder(t)

		_, err := f.svc.PayMobileMoney(context.Background(), student, interfaces.MobilePaymentCommand{
			OrderID: o.ID, PhoneNumber: "024-fail-99", Provider: "MTN",
		})
		if !errors.Is(err, domain.ErrExternalProviderFailure) {
			t.Fatalf("expected ErrExternalProviderFailure, got %v", err)
		}

		list, _ := f.svc.List(context.Background(), cashier, domain.PaymentFilter{})
		if len(list) != 1 || list[0].Status != domain.PaymentFailed || list[0].FailureReason == nil {
			t.Fatalf("expected one FAILED payment with reason, got %+v", list)
		}
		if got := f.orderStatus(t, o.ID); got != domain.StatusPending {
			t.Fatalf("expected PENDING, got %s", got)
		}
		if f.stock(t) != 8 {
			t.Fatalf("expected stock to stay reserved at 8, got %d", f.stock(t))
		}
		if _, ok := f.events.Find(domain.EventPaymentFailed); !ok {
			t.Fatal("expected payment-failed")
		}
	})

	t.Run("failure with cancel policy releases stock", func(t *testing.T) {
		f := newFixture(t, Options{CancelOnMobileFailure: true})
		o := f.placeOrder(t)

		_, err := f.svc.PayMobileMoney(context.Background(), student, interfaces.MobilePaymentCommand{
			OrderID: o.ID, PhoneNumber: "fail", Provider: "Vodafone",
		})
		if !errors.Is(err, domain.ErrExternalProviderFailure) {
			t.Fatalf("expected ErrExternalProviderFailure, got %v", err)
		}
		if got := f.orderStatus(t, o.ID); got != domain.StatusCancelled {
			t.Fatalf("expected CANCELLED, got %s", got)
		}
		if f.stock(t) != 10 {
			t.Fatalf("expected stock released to 10, got %d", f.stock(t))
		}
		if _, ok := f.events.Find(domain.EventOrderCancelled); !ok {
			t.Fatal("expected order-cancelled")
		}
	})

	t.Run("order cancelled during provider call", func(t *testing.T) {
		f := newFixture(t, Options{})
		o := f.placeOrder(t)
		f.gateway.during = func() {
			if _, err := f.orders.Cancel(context.Background(), student, interfaces.CancelOrderCommand{OrderID: o.ID}); err != nil {
				t.Errorf("cancel during call: %v", err)
			}
		}

		_, err := f.svc.PayMobileMoney(context.Background(), student, interfaces.MobilePaymentCommand{
			OrderID: o.ID, PhoneNumber: "0241234567", Provider: "MTN",
		})
		if !errors.Is(err, domain.ErrExternalProviderFailure) {
			t.Fatalf("expected ErrExternalProviderFailure, got %v", err)
		}
		list, _ := f.svc.List(context.Background(), cashier, domain.PaymentFilter{})
		if len(list) != 1 || list[0].Status != domain.PaymentFailed {
			t.Fatalf("expected FAILED payment, got %+v", list)
		}
	})

	t.Run("another customer is forbidden", func(t *testing.T) {
		f := newFixture(t, Options{})
		o := f.placeOrder(t)

		_, err := f.svc.PayMobileMoney(context.Background(), other, interfaces.MobilePaymentCommand{
			OrderID: o.ID, PhoneNumber: "0241234567", Provider: "MTN",
		})
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t, Options{})
		_, err := f.svc.PayMobileMoney(context.Background(), student, interfaces.MobilePaymentCommand{OrderID: "x", Provider: "MTN"})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestService_VerifyMobileMoney(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	ctx := context.Background()
	o := f.placeOrder(t)

	p, err := f.svc.PayMobileMoney(ctx, student, interfaces.MobilePaymentCommand{OrderID: o.ID, PhoneNumber: "0241234567", Provider: "MTN"})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}

	v, err := f.svc.VerifyMobileMoney(ctx, student, p.TransactionID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if v.Status != "verified" || v.PaymentStatus != domain.PaymentCompleted || v.TransactionID != p.TransactionID {
		t.Fatalf("unexpected verification %+v", v)
	}

	if _, err := f.svc.VerifyMobileMoney(ctx, other, p.TransactionID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.VerifyMobileMoney(ctx, cashier, "MM-unknown"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_ReadsAreCustomerScoped(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	ctx := context.Background()
	o := f.placeOrder(t)

	res, err := f.svc.PayCash(ctx, cashier, interfaces.CashPaymentCommand{OrderID: o.ID, AmountReceived: decimal.NewFromInt(25)})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}

	if _, err := f.svc.Get(ctx, student, res.Payment.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := f.svc.Get(ctx, other, res.Payment.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mine, _ := f.svc.List(ctx, student, domain.PaymentFilter{})
	theirs, _ := f.svc.List(ctx, other, domain.PaymentFilter{})
	if len(mine) != 1 || len(theirs) != 0 {
		t.Fatalf("unexpected scoping: mine=%d theirs=%d", len(mine), len(theirs))
	}

	method := domain.PaymentMobileMoney
	mobileOnly, _ := f.svc.List(ctx, cashier, domain.PaymentFilter{Method: &method})
	if len(mobileOnly) != 0 {
		t.Fatalf("expected no mobile payments, got %d", len(mobileOnly))
	}
}

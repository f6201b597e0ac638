package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/YelzhanWeb/canteen/internal/adapter/logger"
	"github.com/YelzhanWeb/canteen/internal/adapter/memory"
	"github.com/YelzhanWeb/canteen/internal/adapter/metrics"
	"github.com/YelzhanWeb/canteen/internal/app/audit"
	"github.com/YelzhanWeb/canteen/internal/app/inventory"
	"github.com/YelzhanWeb/canteen/internal/clock"
	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
	"github.com/YelzhanWeb/canteen/internal/testutil"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

var (
	now     = time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	student = domain.Actor{ID: "stu-1", Name: "Ama", Role: domain.RoleStudent}
	other   = domain.Actor{ID: "stu-2", Name: "Kofi", Role: domain.RoleStudent}
	staff   = domain.Actor{ID: "staff-1", Name: "Esi", Role: domain.RoleStaff}
)

type fixture struct {
	store   *memory.Store
	svc     *Service
	events  *testutil.EventLog
	clock   *clock.Manual
	metrics *metrics.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.PutMenuItem(domain.MenuItem{
		ID: "rice", Name: "Jollof Rice", Price: decimal.RequireFromString("10.50"),
		StockQuantity: 10, Status: domain.MenuItemAvailable, PreparationTime: 15,
	})
	store.PutMenuItem(domain.MenuItem{
		ID: "juice", Name: "Orange Juice", Price: decimal.RequireFromString("3.00"),
		StockQuantity: 5, Status: domain.MenuItemAvailable, PreparationTime: 2,
	})
	store.PutMenuItem(domain.MenuItem{
		ID: "soup", Name: "Light Soup", Price: decimal.RequireFromString("8.00"),
		StockQuantity: 10, Status: domain.MenuItemUnavailable, PreparationTime: 10,
	})

	clk := clock.NewManual(now)
	events := &testutil.EventLog{}
	reg := metrics.NewRegistry()
	svc := NewService(Deps{
		Orders:      store.Orders(),
		Menu:        store.Menu(),
		Ledger:      inventory.NewLedger(store.Menu(), store.TxManager()),
		Tx:          store.TxManager(),
		Broadcaster: events,
		Audit:       audit.NewRecorder(store.Audit(), clk, logger.Nop()),
		Metrics:     reg,
		Clock:       clk,
		Logger:      logger.Nop(),
	})
	return &fixture{store: store, svc: svc, events: events, clock: clk, metrics: reg}
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	item, ok := f.store.MenuItem(id)
	if !ok {
		t.Fatalf("menu item %s missing", id)
	}
	return item.StockQuantity
}

func (f *fixture) create(t *testing.T, actor domain.Actor, lines ...domain.LineRequest) *domain.Order {
	t.Helper()
	o, err := f.svc.Create(context.Background(), actor, interfaces.CreateOrderCommand{Items: lines})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func line(id string, qty int) domain.LineRequest {
	return domain.LineRequest{MenuItemID: id, Quantity: qty}
}

func TestService_Create(t *testing.T) {
	t.Parallel()

	t.Run("reserves stock and snapshots prices", func(t *testing.T) {
		f := newFixture(t)
		notes := "no pepper"

		o, err := f.svc.Create(context.Background(), student, interfaces.CreateOrderCommand{
			Items:               []domain.LineRequest{line("rice", 2), line("juice", 1)},
			SpecialInstructions: &notes,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if o.Status != domain.StatusPending {
			t.Fatalf("expected PENDING, got %s", o.Status)
		}
		if !o.TotalAmount.Equal(decimal.RequireFromString("24.00")) {
			t.Fatalf("expected total 24.00, got %s", o.TotalAmount)
		}
		if o.Number != "ORD-20250102-000001" {
			t.Fatalf("unexpected order number %s", o.Number)
		}
		if o.EstimatedReadyTime == nil || !o.EstimatedReadyTime.Equal(now.Add(15*time.Minute)) {
			t.Fatalf("unexpected estimated ready time %v", o.EstimatedReadyTime)
		}
		if o.CustomerID != student.ID || o.CustomerName != student.Name {
			t.Fatalf("unexpected customer %s/%s", o.CustomerID, o.CustomerName)
		}
		if f.stock(t, "rice") != 8 || f.stock(t, "juice") != 4 {
			t.Fatalf("unexpected stock rice=%d juice=%d", f.stock(t, "rice"), f.stock(t, "juice"))
		}

		history, err := f.svc.History(context.Background(), student, o.ID)
		if err != nil || len(history) != 1 || history[0].Status != domain.StatusPending {
			t.Fatalf("unexpected history %v (%v)", history, err)
		}

		newOrder, ok := f.events.Find(domain.EventNewOrder)
		if !ok || len(newOrder.Channels) != 3 {
			t.Fatalf("expected new-order on three role channels, got %+v", newOrder)
		}
		created, ok := f.events.Find(domain.EventOrderCreated)
		if !ok || created.Channels[0] != domain.OrderChannel(o.ID) {
			t.Fatalf("expected order-created on order channel, got %+v", created)
		}
		if _, ok := f.events.Find(domain.EventInventoryUpdated); !ok {
			t.Fatal("expected inventory-updated")
		}
		if got := promtestutil.ToFloat64(f.metrics.OrdersCreated); got != 1 {
			t.Fatalf("expected orders created metric 1, got %v", got)
		}

		recs := f.store.AuditRecords()
		if len(recs) != 1 || recs[0].Action != domain.AuditOrderCreate || recs[0].Outcome != domain.AuditSuccess {
			t.Fatalf("unexpected audit records %+v", recs)
		}
	})

	t.Run("rejects invalid requests", func(t *testing.T) {
		tests := []struct {
			name  string
			lines []domain.LineRequest
			want  error
		}{
			{name: "empty", lines: nil, want: domain.ErrInvalidInput},
			{name: "zero quantity", lines: []domain.LineRequest{line("rice", 0)}, want: domain.ErrInvalidInput},
			{name: "unknown item", lines: []domain.LineRequest{line("pizza", 1)}, want: domain.ErrInvalidInput},
			{name: "unavailable item", lines: []domain.LineRequest{line("soup", 1)}, want: domain.ErrInvalidInput},
			{name: "more than stock", lines: []domain.LineRequest{line("juice", 6)}, want: domain.ErrInsufficientStock},
			{name: "repeated lines exceed stock", lines: []domain.LineRequest{line("juice", 3), line("juice", 3)}, want: domain.ErrInsufficientStock},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				f := newFixture(t)
				_, err := f.svc.Create(context.Background(), student, interfaces.CreateOrderCommand{Items: tc.lines})
				if !errors.Is(err, tc.want) {
					t.Fatalf("expected %v, got %v", tc.want, err)
				}
				if f.stock(t, "juice") != 5 || f.stock(t, "rice") != 10 {
					t.Fatal("stock changed by a failed create")
				}
				orders, _ := f.svc.List(context.Background(), staff, domain.OrderFilter{})
				if len(orders) != 0 {
					t.Fatalf("expected no orders, got %d", len(orders))
				}
				recs := f.store.AuditRecords()
				if len(recs) != 1 || recs[0].Outcome != domain.AuditFailure {
					t.Fatalf("expected one failure audit, got %+v", recs)
				}
			})
		}
	})

	t.Run("concurrent orders never oversell", func(t *testing.T) {
		f := newFixture(t)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			success int
		)
		for i := 0; i < 12; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.Create(context.Background(), student, interfaces.CreateOrderCommand{
					Items: []domain.LineRequest{line("juice", 1)},
				})
				if err == nil {
					mu.Lock()
					success++
					mu.Unlock()
				} else if !errors.Is(err, domain.ErrInsufficientStock) {
					t.Errorf("unexpected error %v", err)
				}
			}()
		}
		wg.Wait()

		if success != 5 {
			t.Fatalf("expected 5 successful orders, got %d", success)
		}
		if f.stock(t, "juice") != 0 {
			t.Fatalf("expected stock 0, got %d", f.stock(t, "juice"))
		}
	})
}

func TestService_PriceSnapshotIsImmutable(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	o := f.create(t, student, line("rice", 2))

	item, _ := f.store.MenuItem("rice")
	item.Price = decimal.RequireFromString("99.99")
	f.store.PutMenuItem(item)

	got, err := f.svc.Get(context.Background(), student, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.TotalAmount.Equal(decimal.RequireFromString("21.00")) {
		t.Fatalf("total changed to %s", got.TotalAmount)
	}
	if !got.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.50")) {
		t.Fatalf("unit price changed to %s", got.Items[0].UnitPrice)
	}
}

func TestService_StockConservation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	a := f.create(t, student, line("rice", 2))
	b := f.create(t, student, line("rice", 3))
	f.create(t, student, line("rice", 1))

	for _, o := range []*domain.Order{a, b} {
		if _, err := f.svc.Cancel(context.Background(), student, interfaces.CancelOrderCommand{OrderID: o.ID}); err != nil {
			t.Fatalf("cancel: %v", err)
		}
	}

	if got := f.stock(t, "rice"); got != 10-6+5 {
		t.Fatalf("expected stock 9, got %d", got)
	}
}

func TestService_UpdateStatusTransitions(t *testing.T) {
	t.Parallel()

	all := []domain.Status{
		domain.StatusPending, domain.StatusConfirmed, domain.StatusPreparing,
		domain.StatusReady, domain.StatusCompleted, domain.StatusCancelled,
	}

	for _, from := range all {
		for _, to := range all {
			from, to := from, to
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				f := newFixture(t)
				ctx := context.Background()

				o := f.create(t, student, line("rice", 1))
				if from != domain.StatusPending {
					seeded := *o
					seeded.Status = from
					if err := f.store.Orders().UpdateStatus(ctx, &seeded, domain.StatusPending); err != nil {
						t.Fatalf("seed status: %v", err)
					}
				}

				updated, err := f.svc.UpdateStatus(ctx, staff, interfaces.UpdateStatusCommand{OrderID: o.ID, Status: string(to)})
				if domain.CanTransition(from, to) {
					if err != nil {
						t.Fatalf("expected success, got %v", err)
					}
					stored, _ := f.svc.Get(ctx, staff, o.ID)
					if updated.Status != to || stored.Status != to {
						t.Fatalf("expected %s persisted, got %s / %s", to, updated.Status, stored.Status)
					}
					return
				}
				if !errors.Is(err, domain.ErrInvalidTransition) {
					t.Fatalf("expected ErrInvalidTransition, got %v", err)
				}
				stored, _ := f.svc.Get(ctx, staff, o.ID)
				if stored.Status != from {
					t.Fatalf("status changed to %s by an illegal transition", stored.Status)
				}
			})
		}
	}
}

func TestService_UpdateStatus(t *testing.T) {
	t.Parallel()

	t.Run("unknown status", func(t *testing.T) {
		f := newFixture(t)
		o := f.create(t, student, line("rice", 1))

		_, err := f.svc.UpdateStatus(context.Background(), staff, interfaces.UpdateStatusCommand{OrderID: o.ID, Status: "EATEN"})
		if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("stamps ready and completion times and emits events", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		o := f.create(t, student, line("rice", 1))

		steps := []domain.Status{domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReady, domain.StatusCompleted}
		var last *domain.Order
		for _, st := range steps {
			f.clock.Advance(time.Minute)
			var err error
			last, err = f.svc.UpdateStatus(ctx, staff, interfaces.UpdateStatusCommand{OrderID: o.ID, Status: string(st)})
			if err != nil {
				t.Fatalf("to %s: %v", st, err)
			}
			if st == domain.StatusReady && (last.ActualReadyTime == nil || !last.ActualReadyTime.Equal(f.clock.Now())) {
				t.Fatalf("actual ready time not stamped: %v", last.ActualReadyTime)
			}
		}
		if last.CompletedAt == nil || !last.CompletedAt.Equal(f.clock.Now()) {
			t.Fatalf("completed at not stamped: %v", last.CompletedAt)
		}
		if last.ActualReadyTime == nil || !last.ActualReadyTime.Equal(now.Add(3*time.Minute)) {
			t.Fatalf("actual ready time overwritten: %v", last.ActualReadyTime)
		}
		if n := f.events.Count(domain.EventStatusUpdated); n != 4 {
			t.Fatalf("expected 4 status-updated events, got %d", n)
		}
		if n := f.events.Count(domain.EventOrderUpdated); n != 4 {
			t.Fatalf("expected 4 order-updated events, got %d", n)
		}

		history, _ := f.svc.History(ctx, staff, o.ID)
		if len(history) != 5 {
			t.Fatalf("expected 5 history entries, got %d", len(history))
		}
	})

	t.Run("cancel via status update releases stock", func(t *testing.T) {
		f := newFixture(t)
		o := f.create(t, student, line("juice", 2))

		updated, err := f.svc.UpdateStatus(context.Background(), staff, interfaces.UpdateStatusCommand{OrderID: o.ID, Status: "CANCELLED"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if updated.Status != domain.StatusCancelled || f.stock(t, "juice") != 5 {
			t.Fatalf("unexpected status %s stock %d", updated.Status, f.stock(t, "juice"))
		}
	})
}

func TestService_Cancel(t *testing.T) {
	t.Parallel()

	t.Run("other customer is forbidden", func(t *testing.T) {
		f := newFixture(t)
		o := f.create(t, student, line("rice", 1))

		_, err := f.svc.Cancel(context.Background(), other, interfaces.CancelOrderCommand{OrderID: o.ID})
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		if f.stock(t, "rice") != 9 {
			t.Fatal("stock released by a forbidden cancel")
		}
	})

	t.Run("preparing order is not cancellable", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		o := f.create(t, student, line("rice", 1))
		for _, st := range []string{"CONFIRMED", "PREPARING"} {
			if _, err := f.svc.UpdateStatus(ctx, staff, interfaces.UpdateStatusCommand{OrderID: o.ID, Status: st}); err != nil {
				t.Fatalf("to %s: %v", st, err)
			}
		}

		_, err := f.svc.Cancel(ctx, student, interfaces.CancelOrderCommand{OrderID: o.ID})
		if !errors.Is(err, domain.ErrNotCancellable) {
			t.Fatalf("expected ErrNotCancellable, got %v", err)
		}
	})

	t.Run("owner cancels confirmed order", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		o := f.create(t, student, line("rice", 4), line("juice", 2))
		if _, err := f.svc.UpdateStatus(ctx, staff, interfaces.UpdateStatusCommand{OrderID: o.ID, Status: "CONFIRMED"}); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		f.events.Reset()
		reason := "changed my mind"

		cancelled, err := f.svc.Cancel(ctx, student, interfaces.CancelOrderCommand{OrderID: o.ID, Reason: &reason})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cancelled.Status != domain.StatusCancelled {
			t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
		}
		if f.stock(t, "rice") != 10 || f.stock(t, "juice") != 5 {
			t.Fatalf("stock not released: rice=%d juice=%d", f.stock(t, "rice"), f.stock(t, "juice"))
		}

		ev, ok := f.events.Find(domain.EventOrderCancelled)
		if !ok || len(ev.Channels) != 4 || ev.Channels[0] != domain.OrderChannel(o.ID) {
			t.Fatalf("unexpected order-cancelled event %+v", ev)
		}
		if _, ok := f.events.Find(domain.EventInventoryUpdated); !ok {
			t.Fatal("expected inventory-updated")
		}
	})

	t.Run("missing order", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Cancel(context.Background(), staff, interfaces.CancelOrderCommand{OrderID: "nope"})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestService_ReadsAreCustomerScoped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	mine := f.create(t, student, line("rice", 1))
	f.create(t, other, line("juice", 1))

	if _, err := f.svc.Get(ctx, other, mine.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another customer's order, got %v", err)
	}
	if _, err := f.svc.History(ctx, other, mine.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another customer's history, got %v", err)
	}

	orders, err := f.svc.List(ctx, student, domain.OrderFilter{CustomerID: other.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != mine.ID {
		t.Fatalf("customer listing not scoped: %+v", orders)
	}

	all, _ := f.svc.List(ctx, staff, domain.OrderFilter{})
	if len(all) != 2 {
		t.Fatalf("staff should see all orders, got %d", len(all))
	}

	pending := domain.StatusPending
	day := now.Add(-24 * time.Hour)
	none, _ := f.svc.List(ctx, staff, domain.OrderFilter{Status: &pending, Day: &day})
	if len(none) != 0 {
		t.Fatalf("expected no orders the day before, got %d", len(none))
	}
}

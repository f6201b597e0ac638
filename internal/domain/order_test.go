package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var t0 = time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

func catalog() map[string]*MenuItem {
	return map[string]*MenuItem{
		"a": {ID: "a", Name: "Banku", Price: decimal.RequireFromString("9.99"), StockQuantity: 5, Status: MenuItemAvailable, PreparationTime: 20},
		"b": {ID: "b", Name: "Sobolo", Price: decimal.RequireFromString("2.50"), StockQuantity: 5, Status: MenuItemAvailable, PreparationTime: 1},
		"c": {ID: "c", Name: "Kenkey", Price: decimal.RequireFromString("6.00"), StockQuantity: 5, Status: MenuItemUnavailable, PreparationTime: 10},
	}
}

func TestNewOrder(t *testing.T) {
	t.Parallel()
	customer := Actor{ID: "u1", Name: "Abena", Role: RoleStudent}
	note := "no pepper"

	o, err := NewOrder(customer, []LineRequest{
		{MenuItemID: "a", Quantity: 3, SpecialInstructions: &note},
		{MenuItemID: "b", Quantity: 2},
	}, catalog(), nil, t0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if o.Status != StatusPending || o.CustomerID != "u1" || o.CustomerName != "Abena" {
		t.Fatalf("unexpected order %+v", o)
	}
	if !o.TotalAmount.Equal(decimal.RequireFromString("34.97")) {
		t.Fatalf("expected total 34.97, got %s", o.TotalAmount)
	}
	if want := t0.Add(20 * time.Minute); !o.EstimatedReadyTime.Equal(want) {
		t.Fatalf("expected eta %s, got %s", want, o.EstimatedReadyTime)
	}
	if len(o.Items) != 2 || o.Items[0].OrderID != o.ID || *o.Items[0].SpecialInstructions != note {
		t.Fatalf("unexpected items %+v", o.Items)
	}
	if o.ActualReadyTime != nil || o.CompletedAt != nil {
		t.Fatal("lifecycle timestamps set on a new order")
	}
}

func TestNewOrder_Rejects(t *testing.T) {
	t.Parallel()
	customer := Actor{ID: "u1", Role: RoleStudent}

	tests := []struct {
		name  string
		lines []LineRequest
	}{
		{name: "no lines", lines: nil},
		{name: "zero quantity", lines: []LineRequest{{MenuItemID: "a", Quantity: 0}}},
		{name: "negative quantity", lines: []LineRequest{{MenuItemID: "a", Quantity: -1}}},
		{name: "missing id", lines: []LineRequest{{Quantity: 1}}},
		{name: "unknown item", lines: []LineRequest{{MenuItemID: "zz", Quantity: 1}}},
		{name: "unavailable item", lines: []LineRequest{{MenuItemID: "a", Quantity: 1}, {MenuItemID: "c", Quantity: 1}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewOrder(customer, tc.lines, catalog(), nil, t0)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestRequestedQuantities(t *testing.T) {
	t.Parallel()
	got := RequestedQuantities([]LineRequest{{MenuItemID: "a", Quantity: 2}, {MenuItemID: "b", Quantity: 1}, {MenuItemID: "a", Quantity: 4}})
	if got["a"] != 6 || got["b"] != 1 || len(got) != 2 {
		t.Fatalf("unexpected quantities %v", got)
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()
	allowed := map[[2]Status]bool{
		{StatusPending, StatusConfirmed}:   true,
		{StatusPending, StatusCancelled}:   true,
		{StatusConfirmed, StatusPreparing}: true,
		{StatusConfirmed, StatusCancelled}: true,
		{StatusPreparing, StatusReady}:     true,
		{StatusReady, StatusCompleted}:     true,
	}
	all := []Status{StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled}

	for _, from := range all {
		for _, to := range all {
			if got := CanTransition(from, to); got != allowed[[2]Status{from, to}] {
				t.Errorf("CanTransition(%s, %s) = %v", from, to, got)
			}
		}
	}
}

func TestOrder_TransitionTo(t *testing.T) {
	t.Parallel()

	t.Run("ready then completed keeps ready time", func(t *testing.T) {
		o := &Order{Status: StatusPreparing}
		ready := t0.Add(10 * time.Minute)
		if err := o.TransitionTo(StatusReady, ready); err != nil {
			t.Fatalf("ready: %v", err)
		}
		done := ready.Add(5 * time.Minute)
		if err := o.TransitionTo(StatusCompleted, done); err != nil {
			t.Fatalf("completed: %v", err)
		}
		if !o.ActualReadyTime.Equal(ready) || !o.CompletedAt.Equal(done) || !o.UpdatedAt.Equal(done) {
			t.Fatalf("unexpected timestamps ready=%v completed=%v", o.ActualReadyTime, o.CompletedAt)
		}
	})

	t.Run("completed without ready time stamps both", func(t *testing.T) {
		o := &Order{Status: StatusReady}
		if err := o.TransitionTo(StatusCompleted, t0); err != nil {
			t.Fatalf("completed: %v", err)
		}
		if o.ActualReadyTime == nil || !o.ActualReadyTime.Equal(t0) {
			t.Fatalf("expected actual ready time %s, got %v", t0, o.ActualReadyTime)
		}
	})

	t.Run("illegal move leaves order untouched", func(t *testing.T) {
		o := &Order{Status: StatusCompleted, UpdatedAt: t0}
		err := o.TransitionTo(StatusPending, t0.Add(time.Hour))
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
		if o.Status != StatusCompleted || !o.UpdatedAt.Equal(t0) {
			t.Fatalf("order mutated: %+v", o)
		}
	})
}

func TestOrder_Visibility(t *testing.T) {
	t.Parallel()
	o := &Order{CustomerID: "u1", Status: StatusConfirmed}

	if !o.VisibleTo(Actor{ID: "u1", Role: RoleStudent}) {
		t.Error("owner cannot see own order")
	}
	if o.VisibleTo(Actor{ID: "u2", Role: RoleStudent}) {
		t.Error("other student can see order")
	}
	if !o.VisibleTo(Actor{ID: "k", Role: RoleKitchen}) {
		t.Error("kitchen cannot see order")
	}
	if !o.Cancellable() {
		t.Error("confirmed order should be cancellable")
	}
	o.Status = StatusPreparing
	if o.Cancellable() {
		t.Error("preparing order should not be cancellable")
	}
}

func TestOrderFilter_DayRange(t *testing.T) {
	t.Parallel()
	day := time.Date(2025, 1, 6, 23, 59, 0, 0, time.FixedZone("UTC+2", 2*3600))
	start, end, ok := OrderFilter{Day: &day}.DayRange()
	if !ok {
		t.Fatal("expected range")
	}
	if !start.Equal(time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)) || end.Sub(start) != 24*time.Hour {
		t.Fatalf("unexpected range %s - %s", start, end)
	}
	if _, _, ok := (OrderFilter{}).DayRange(); ok {
		t.Fatal("expected no range without a day")
	}
}

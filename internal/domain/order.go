package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order represents a canteen order entity
type Order struct {
	ID                  string          `json:"id"`
	Number              string          `json:"orderNumber"`
	CustomerID          string          `json:"customerId"`
	CustomerName        string          `json:"customerName"`
	Status              Status          `json:"status"`
	TotalAmount         decimal.Decimal `json:"totalAmount"`
	SpecialInstructions *string         `json:"specialInstructions,omitempty"`
	EstimatedReadyTime  *time.Time      `json:"estimatedReadyTime,omitempty"`
	ActualReadyTime     *time.Time      `json:"actualReadyTime,omitempty"`
	CompletedAt         *time.Time      `json:"completedAt,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
	Items               []OrderItem     `json:"items"`
}

// OrderItem is one menu item within an order, priced at creation time
type OrderItem struct {
	ID                  string          `json:"id"`
	OrderID             string          `json:"orderId"`
	MenuItemID          string          `json:"menuItemId"`
	Name                string          `json:"name"`
	Quantity            int             `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unitPrice"`
	SpecialInstructions *string         `json:"specialInstructions,omitempty"`
}

// LineTotal is quantity times the unit-price snapshot.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// LineRequest is a requested order line before pricing
type LineRequest struct {
	MenuItemID          string
	Quantity            int
	SpecialInstructions *string
}

// ValidateLines checks the shape of requested lines without touching the catalog.
func ValidateLines(lines []LineRequest) error {
	if len(lines) == 0 {
		return Errorf(CodeInvalidInput, "order items are required")
	}
	for i, l := range lines {
		if l.MenuItemID == "" {
			return Errorf(CodeInvalidInput, "items[%d].menuItemId is required", i)
		}
		if l.Quantity < 1 {
			return Errorf(CodeInvalidInput, "items[%d].quantity must be a positive integer", i)
		}
	}
	return nil
}

// RequestedQuantities sums requested quantity per menu item.
func RequestedQuantities(lines []LineRequest) map[string]int {
	out := make(map[string]int, len(lines))
	for _, l := range lines {
		out[l.MenuItemID] += l.Quantity
	}
	return out
}

// NewOrder creates a PENDING order from requested lines, snapshotting the catalog prices.
// Every referenced item must be present in catalog and available.
func NewOrder(customer Actor, lines []LineRequest, catalog map[string]*MenuItem, instructions *string, now time.Time) (*Order, error) {
	if err := ValidateLines(lines); err != nil {
		return nil, err
	}

	order := &Order{
		ID:                  uuid.NewString(),
		CustomerID:          customer.ID,
		CustomerName:        customer.Name,
		Status:              StatusPending,
		SpecialInstructions: instructions,
		CreatedAt:           now,
		UpdatedAt:           now,
		Items:               make([]OrderItem, 0, len(lines)),
	}

	maxPrep := 0
	for _, l := range lines {
		item, ok := catalog[l.MenuItemID]
		if !ok || !item.IsAvailable() {
			return nil, Errorf(CodeInvalidInput, "some menu items are not available")
		}
		if item.PreparationTime > maxPrep {
			maxPrep = item.PreparationTime
		}
		order.Items = append(order.Items, OrderItem{
			ID:                  uuid.NewString(),
			OrderID:             order.ID,
			MenuItemID:          item.ID,
			Name:                item.Name,
			Quantity:            l.Quantity,
			UnitPrice:           item.Price,
			SpecialInstructions: l.SpecialInstructions,
		})
	}

	order.CalculateTotal()
	eta := now.Add(time.Duration(maxPrep) * time.Minute)
	order.EstimatedReadyTime = &eta

	return order, nil
}

// CalculateTotal calculates the total amount of the order
func (o *Order) CalculateTotal() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	o.TotalAmount = total
}

var validTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady},
	StatusReady:     {StatusCompleted},
	StatusCompleted: {},
	StatusCancelled: {},
}

// CanTransition reports whether to is a legal successor of from.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanTransitionTo checks if the order can transition to the new status
func (o *Order) CanTransitionTo(newStatus Status) bool {
	return CanTransition(o.Status, newStatus)
}

// TransitionTo moves the order to newStatus and stamps the lifecycle timestamps.
func (o *Order) TransitionTo(newStatus Status, now time.Time) error {
	if !o.CanTransitionTo(newStatus) {
		return Errorf(CodeInvalidTransition, "cannot move order from %s to %s", o.Status, newStatus)
	}

	o.Status = newStatus
	o.UpdatedAt = now

	switch newStatus {
	case StatusReady:
		o.ActualReadyTime = &now
	case StatusCompleted:
		if o.ActualReadyTime == nil {
			o.ActualReadyTime = &now
		}
		o.CompletedAt = &now
	}

	return nil
}

// Cancellable reports whether the order may still be cancelled.
func (o *Order) Cancellable() bool {
	return o.Status == StatusPending || o.Status == StatusConfirmed
}

// OwnedBy reports whether customerID placed the order.
func (o *Order) OwnedBy(customerID string) bool {
	return o.CustomerID == customerID
}

// VisibleTo reports whether the actor may read the order.
func (o *Order) VisibleTo(a Actor) bool {
	return !a.Role.IsCustomer() || o.OwnedBy(a.ID)
}

// OrderFilter narrows order listings
type OrderFilter struct {
	CustomerID string
	Status     *Status
	Day        *time.Time
	Limit      int
	Offset     int
}

// DayRange returns the [start, end) bounds of the filter day, if set.
func (f OrderFilter) DayRange() (time.Time, time.Time, bool) {
	if f.Day == nil {
		return time.Time{}, time.Time{}, false
	}
	d := f.Day.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1), true
}

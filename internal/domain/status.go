package domain

import "time"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusPreparing Status = "PREPARING"
	StatusReady     Status = "READY"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus returns the status for s or false when s is not a known value.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return st, true
	}
	return "", false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ActiveStatuses are the statuses that make up the kitchen queue, in queue priority order.
var ActiveStatuses = []Status{StatusConfirmed, StatusPreparing, StatusReady}

// QueuePriority returns the queue rank of s (lower is served first) or -1 when s is not queued.
func (s Status) QueuePriority() int {
	for i, st := range ActiveStatuses {
		if st == s {
			return i
		}
	}
	return -1
}

// IsActive reports whether orders in s appear in the kitchen queue.
func (s Status) IsActive() bool {
	return s.QueuePriority() >= 0
}

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleStaff   Role = "STAFF"
	RoleKitchen Role = "KITCHEN"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole returns the role for s or false when s is not a known role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleStudent, RoleStaff, RoleKitchen, RoleAdmin:
		return r, true
	}
	return "", false
}

// IsCustomer reports whether the role is restricted to its own orders and payments.
func (r Role) IsCustomer() bool {
	return r == RoleStudent
}

// StatusLog represents a log entry for order status changes
type StatusLog struct {
	ID        int64     `json:"id"`
	OrderID   string    `json:"orderId"`
	Status    Status    `json:"status"`
	ChangedBy string    `json:"changedBy"`
	ChangedAt time.Time `json:"changedAt"`
	Notes     *string   `json:"notes,omitempty"`
}

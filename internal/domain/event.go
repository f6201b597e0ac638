package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type Event string

const (
	EventNewOrder         Event = "new-order"
	EventOrderCreated     Event = "order-created"
	EventStatusUpdated    Event = "status-updated"
	EventOrderUpdated     Event = "order-updated"
	EventOrderCancelled   Event = "order-cancelled"
	EventPaymentCompleted Event = "payment-completed"
	EventPaymentFailed    Event = "payment-failed"
	EventOrderConfirmed   Event = "order-confirmed"
	EventInventoryUpdated Event = "inventory-updated"
	EventQueueUpdated     Event = "queue-updated"
)

const (
	orderChannelPrefix = "order:"
	roleChannelPrefix  = "role:"
)

// OrderChannel is the channel watched by everyone tracking one order.
func OrderChannel(orderID string) string {
	return orderChannelPrefix + orderID
}

// RoleChannel is the channel shared by every member of a role.
func RoleChannel(r Role) string {
	return roleChannelPrefix + string(r)
}

// ValidChannel reports whether ch names an order or role channel.
func ValidChannel(ch string) bool {
	switch {
	case strings.HasPrefix(ch, orderChannelPrefix):
		return len(ch) > len(orderChannelPrefix)
	case strings.HasPrefix(ch, roleChannelPrefix):
		_, ok := ParseRole(strings.TrimPrefix(ch, roleChannelPrefix))
		return ok
	}
	return false
}

// ChannelWildcard subscribes to every channel under a prefix, e.g. "role:*".
const ChannelWildcard = "*"

// ValidSubscription reports whether ch is a channel or a prefix wildcard a subscriber may bind to.
func ValidSubscription(ch string) bool {
	switch ch {
	case orderChannelPrefix + ChannelWildcard, roleChannelPrefix + ChannelWildcard:
		return true
	}
	return ValidChannel(ch)
}

// Envelope is the wire shape of a broadcast event
type Envelope struct {
	Channel   string          `json:"channel"`
	Event     Event           `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// OrderCancelledPayload accompanies order-cancelled.
type OrderCancelledPayload struct {
	Order  *Order  `json:"order"`
	Reason *string `json:"reason,omitempty"`
}

// PaymentEventPayload accompanies payment-completed and payment-failed.
type PaymentEventPayload struct {
	Payment *Payment `json:"payment"`
	Order   *Order   `json:"order"`
}

// QueueUpdatedPayload accompanies queue-updated after a reap.
type QueueUpdatedPayload struct {
	Reason   string   `json:"reason"`
	OrderIDs []string `json:"orderIds"`
}

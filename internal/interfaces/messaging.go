package interfaces

import (
	"context"
	"time"

	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/shopspring/decimal"
)

// EventPublisher delivers one event to one channel (Adapter/RabbitMQ).
type EventPublisher interface {
	Publish(ctx context.Context, channel string, event domain.Event, payload any) error
}

// EventConsumer streams envelopes published to the given channels until ctx ends.
type EventConsumer interface {
	Consume(ctx context.Context, channels []string, handler EnvelopeHandler) error
}

type EnvelopeHandler func(ctx context.Context, env domain.Envelope) error

// Broadcaster fans an event out to channels without reporting delivery failures.
type Broadcaster interface {
	Emit(ctx context.Context, event domain.Event, payload any, channels ...string)
}

// Payment provider (Adapter/Gateway)
type ChargeRequest struct {
	TransactionID string
	PhoneNumber   string
	Provider      string
	Amount        decimal.Decimal
}

type ChargeResult struct {
	ExternalTransactionID string
	ProcessedAt           time.Time
}

type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Verify(ctx context.Context, transactionID string) (domain.Verification, error)
}

// AuditRecorder writes one audit record per mutating operation; err nil means success.
type AuditRecorder interface {
	Record(ctx context.Context, actor domain.Actor, action string, err error, fields map[string]any)
}

// Metrics receives domain counters (Adapter/Metrics).
type Metrics interface {
	OrderCreated()
	OrderStatusChanged(to domain.Status)
	OrderCancelled()
	PaymentSettled(method domain.PaymentMethod, status domain.PaymentStatus)
	OrdersReaped(n int)
	EventPublished(event domain.Event, ok bool)
}

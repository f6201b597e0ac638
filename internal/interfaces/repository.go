package interfaces

import (
	"context"
	"time"

	"github.com/YelzhanWeb/canteen/internal/domain"
)

// TxManager groups repository calls into one atomic unit. Repositories called with the
// ctx handed to fn take part in the transaction; fn returning an error rolls it back.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	InTx(ctx context.Context) bool
}

// Repository interfaces (Adapter/Postgres, Adapter/Memory)
type OrderRepository interface {
	NextOrderNumber(ctx context.Context, now time.Time) (string, error)
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error)
	// UpdateStatus persists order's status and timestamps only if the stored status is still from.
	UpdateStatus(ctx context.Context, order *domain.Order, from domain.Status) error
	LogStatus(ctx context.Context, entry *domain.StatusLog) error
	GetStatusHistory(ctx context.Context, orderID string) ([]*domain.StatusLog, error)
	// ListActive returns queued orders in serving order, at most limit of them.
	ListActive(ctx context.Context, limit int) ([]*domain.Order, error)
	// CountAhead counts queued orders served strictly before order.
	CountAhead(ctx context.Context, order *domain.Order) (int, error)
	// ListStaleReady returns READY orders whose actual ready time is before cutoff.
	ListStaleReady(ctx context.Context, cutoff time.Time) ([]*domain.Order, error)
}

type MenuRepository interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]*domain.MenuItem, error)
	// DecrementStock removes qty only when at least qty is in stock and returns what is left.
	DecrementStock(ctx context.Context, id string, qty int) (int, error)
	IncrementStock(ctx context.Context, id string, qty int) (int, error)
}

type PaymentRepository interface {
	ExistsForOrder(ctx context.Context, orderID string) (bool, error)
	Create(ctx context.Context, payment *domain.Payment) error
	Update(ctx context.Context, payment *domain.Payment) error
	FindByID(ctx context.Context, id string) (*domain.Payment, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error)
	List(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, error)
}

// AuditSink stores audit records (Postgres table, Kafka topic).
type AuditSink interface {
	Append(ctx context.Context, record *domain.AuditRecord) error
}

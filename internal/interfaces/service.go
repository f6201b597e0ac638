package interfaces

import (
	"context"

	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/shopspring/decimal"
)

// Service commands
type CreateOrderCommand struct {
	Items               []domain.LineRequest
	SpecialInstructions *string
}

type UpdateStatusCommand struct {
	OrderID string
	Status  string
	Notes   *string
}

type CancelOrderCommand struct {
	OrderID string
	Reason  *string
}

type CashPaymentCommand struct {
	OrderID        string
	AmountReceived decimal.Decimal
	Notes          *string
}

type MobilePaymentCommand struct {
	OrderID     string
	PhoneNumber string
	Provider    string
}

type CashPaymentResult struct {
	Payment      *domain.Payment `json:"payment"`
	ChangeAmount decimal.Decimal `json:"changeAmount"`
}

type ReapResult struct {
	Reaped   int      `json:"reaped"`
	OrderIDs []string `json:"orderIds"`
}

// InventoryLedger moves menu stock; both calls require a transaction in ctx.
type InventoryLedger interface {
	Reserve(ctx context.Context, menuItemID string, qty int) (domain.StockLevel, error)
	Release(ctx context.Context, menuItemID string, qty int) (domain.StockLevel, error)
}

// OrderLifecycle is the shared write path for status changes. The Apply calls join the
// caller's transaction; the Emit calls announce what they committed.
type OrderLifecycle interface {
	ApplyTransition(ctx context.Context, order *domain.Order, to domain.Status, changedBy string, notes *string) error
	ApplyCancel(ctx context.Context, order *domain.Order, changedBy string, reason *string) ([]domain.StockLevel, error)
	EmitStatusChange(ctx context.Context, order *domain.Order)
	EmitCancellation(ctx context.Context, order *domain.Order, reason *string, levels []domain.StockLevel)
}

// Service interfaces (Business Logic)
type OrderService interface {
	Create(ctx context.Context, actor domain.Actor, cmd CreateOrderCommand) (*domain.Order, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, cmd UpdateStatusCommand) (*domain.Order, error)
	Cancel(ctx context.Context, actor domain.Actor, cmd CancelOrderCommand) (*domain.Order, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error)
	List(ctx context.Context, actor domain.Actor, filter domain.OrderFilter) ([]*domain.Order, error)
	History(ctx context.Context, actor domain.Actor, id string) ([]*domain.StatusLog, error)
}

type PaymentService interface {
	PayCash(ctx context.Context, actor domain.Actor, cmd CashPaymentCommand) (*CashPaymentResult, error)
	PayMobileMoney(ctx context.Context, actor domain.Actor, cmd MobilePaymentCommand) (*domain.Payment, error)
	VerifyMobileMoney(ctx context.Context, actor domain.Actor, transactionID string) (*domain.Verification, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Payment, error)
	List(ctx context.Context, actor domain.Actor, filter domain.PaymentFilter) ([]*domain.Payment, error)
}

type QueueService interface {
	Status(ctx context.Context, limit int) (*domain.QueueSnapshot, error)
	Position(ctx context.Context, orderID string) (*domain.QueuePosition, error)
	Reap(ctx context.Context) (*ReapResult, error)
}

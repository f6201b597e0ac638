package order

import (
	"context"
	"sort"

	"github.com/YelzhanWeb/canteen/internal/adapter/logger"
	"github.com/YelzhanWeb/canteen/internal/app/broadcast"
	"github.com/YelzhanWeb/canteen/internal/clock"
	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

type Service struct {
	orders      interfaces.OrderRepository
	menu        interfaces.MenuRepository
	ledger      interfaces.InventoryLedger
	tx          interfaces.TxManager
	broadcaster interfaces.Broadcaster
	audit       interfaces.AuditRecorder
	metrics     interfaces.Metrics
	clock       clock.Clock
	logger      logger.Logger
}

type Deps struct {
	Orders      interfaces.OrderRepository
	Menu        interfaces.MenuRepository
	Ledger      interfaces.InventoryLedger
	Tx          interfaces.TxManager
	Broadcaster interfaces.Broadcaster
	Audit       interfaces.AuditRecorder
	Metrics     interfaces.Metrics
	Clock       clock.Clock
	Logger      logger.Logger
}

func NewService(d Deps) *Service {
	return &Service{
		orders:      d.Orders,
		menu:        d.Menu,
		ledger:      d.Ledger,
		tx:          d.Tx,
		broadcaster: d.Broadcaster,
		audit:       d.Audit,
		metrics:     d.Metrics,
		clock:       d.Clock,
		logger:      d.Logger,
	}
}

// Create places a PENDING order. Order rows, line items, stock reservations and the first
// history entry commit together or not at all.
func (s *Service) Create(ctx context.Context, actor domain.Actor, cmd interfaces.CreateOrderCommand) (*domain.Order, error) {
	reqID := logger.RequestID(ctx)

	if err := domain.ValidateLines(cmd.Items); err != nil {
		s.audit.Record(ctx, actor, domain.AuditOrderCreate, err, map[string]any{"items": len(cmd.Items)})
		return nil, err
	}

	var (
		order  *domain.Order
		levels []domain.StockLevel
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		wanted := domain.RequestedQuantities(cmd.Items)
		ids := sortedKeys(wanted)

		catalog, err := s.menu.FindByIDs(ctx, ids)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		order, err = domain.NewOrder(actor, cmd.Items, catalog, cmd.SpecialInstructions, now)
		if err != nil {
			return err
		}

		for _, id := range ids {
			item := catalog[id]
			if item.StockQuantity < wanted[id] {
				return domain.Errorf(domain.CodeInsufficientStock,
					"insufficient stock for %s: available %d, requested %d", item.Name, item.StockQuantity, wanted[id])
			}
		}

		if order.Number, err = s.orders.NextOrderNumber(ctx, now); err != nil {
			return err
		}
		if err := s.orders.Create(ctx, order); err != nil {
			return err
		}

		// reserve in id order so concurrent orders lock rows in the same sequence
		for _, id := range ids {
			lvl, err := s.ledger.Reserve(ctx, id, wanted[id])
			if err != nil {
				return err
			}
			levels = append(levels, lvl)
		}

		return s.orders.LogStatus(ctx, &domain.StatusLog{
			OrderID:   order.ID,
			Status:    order.Status,
			ChangedBy: actor.ID,
			ChangedAt: now,
		})
	})
	if err != nil {
		logger.Failure(s.logger, "order_create_failed", "Failed to create order", reqID, nil, err)
		s.audit.Record(ctx, actor, domain.AuditOrderCreate, err, map[string]any{"items": len(cmd.Items)})
		return nil, err
	}

	s.metrics.OrderCreated()
	s.logger.Info("order_created", "Order created", reqID, map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.Number,
		"total_amount": order.TotalAmount.StringFixed(2),
	})
	s.audit.Record(ctx, actor, domain.AuditOrderCreate, nil, map[string]any{
		"order_id":     order.ID,
		"order_number": order.Number,
		"total_amount": order.TotalAmount.StringFixed(2),
		"items":        len(order.Items),
	})

	s.broadcaster.Emit(ctx, domain.EventNewOrder, order, broadcast.RoleChannels(broadcast.StaffRoles...)...)
	s.broadcaster.Emit(ctx, domain.EventOrderCreated, order, domain.OrderChannel(order.ID))
	s.broadcaster.Emit(ctx, domain.EventInventoryUpdated, levels,
		broadcast.RoleChannels(domain.RoleStaff, domain.RoleAdmin)...)

	return order, nil
}

// UpdateStatus advances an order one legal step. Cancelling goes through Cancel so stock is released.
func (s *Service) UpdateStatus(ctx context.Context, actor domain.Actor, cmd interfaces.UpdateStatusCommand) (*domain.Order, error) {
	to, ok := domain.ParseStatus(cmd.Status)
	if !ok {
		err := domain.Errorf(domain.CodeInvalidTransition, "invalid status %q", cmd.Status)
		s.audit.Record(ctx, actor, domain.AuditOrderStatus, err, map[string]any{"order_id": cmd.OrderID, "status": cmd.Status})
		return nil, err
	}
	if to == domain.StatusCancelled {
		current, err := s.orders.FindByID(ctx, cmd.OrderID)
		if err == nil && !current.CanTransitionTo(to) {
			err = domain.Errorf(domain.CodeInvalidTransition, "cannot move order from %s to %s", current.Status, to)
		}
		if err != nil {
			s.audit.Record(ctx, actor, domain.AuditOrderStatus, err, map[string]any{"order_id": cmd.OrderID, "to": to})
			return nil, err
		}
		return s.Cancel(ctx, actor, interfaces.CancelOrderCommand{OrderID: cmd.OrderID, Reason: cmd.Notes})
	}

	var (
		order *domain.Order
		from  domain.Status
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if order, err = s.orders.FindByID(ctx, cmd.OrderID); err != nil {
			return err
		}
		from = order.Status
		return s.ApplyTransition(ctx, order, to, actor.ID, cmd.Notes)
	})
	fields := map[string]any{"order_id": cmd.OrderID, "from": from, "to": to}
	if err != nil {
		logger.Failure(s.logger, "order_status_update_failed", "Failed to update order status", logger.RequestID(ctx), fields, err)
		s.audit.Record(ctx, actor, domain.AuditOrderStatus, err, fields)
		return nil, err
	}

	s.logger.Info("order_status_updated", "Order status updated", logger.RequestID(ctx), fields)
	s.audit.Record(ctx, actor, domain.AuditOrderStatus, nil, fields)
	s.EmitStatusChange(ctx, order)
	return order, nil
}

// EmitStatusChange announces a committed transition to the order and staff channels.
func (s *Service) EmitStatusChange(ctx context.Context, order *domain.Order) {
	s.broadcaster.Emit(ctx, domain.EventStatusUpdated, order, domain.OrderChannel(order.ID))
	s.broadcaster.Emit(ctx, domain.EventOrderUpdated, order, broadcast.RoleChannels(broadcast.StaffRoles...)...)
}

// Cancel cancels a PENDING or CONFIRMED order and releases its stock. Customers may only
// cancel their own orders.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, cmd interfaces.CancelOrderCommand) (*domain.Order, error) {
	var (
		order  *domain.Order
		levels []domain.StockLevel
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if order, err = s.orders.FindByID(ctx, cmd.OrderID); err != nil {
			return err
		}
		if actor.IsCustomer() && !order.OwnedBy(actor.ID) {
			return domain.Errorf(domain.CodeForbidden, "you can only cancel your own orders")
		}
		levels, err = s.ApplyCancel(ctx, order, actor.ID, cmd.Reason)
		return err
	})
	fields := map[string]any{"order_id": cmd.OrderID}
	if cmd.Reason != nil {
		fields["reason"] = *cmd.Reason
	}
	if err != nil {
		logger.Failure(s.logger, "order_cancel_failed", "Failed to cancel order", logger.RequestID(ctx), fields, err)
		s.audit.Record(ctx, actor, domain.AuditOrderCancel, err, fields)
		return nil, err
	}

	s.logger.Info("order_cancelled", "Order cancelled", logger.RequestID(ctx), fields)
	s.audit.Record(ctx, actor, domain.AuditOrderCancel, nil, fields)
	s.EmitCancellation(ctx, order, cmd.Reason, levels)
	return order, nil
}

// EmitCancellation announces a committed cancellation and the stock it released.
func (s *Service) EmitCancellation(ctx context.Context, order *domain.Order, reason *string, levels []domain.StockLevel) {
	payload := domain.OrderCancelledPayload{Order: order, Reason: reason}
	channels := append([]string{domain.OrderChannel(order.ID)}, broadcast.RoleChannels(broadcast.StaffRoles...)...)
	s.broadcaster.Emit(ctx, domain.EventOrderCancelled, payload, channels...)
	s.broadcaster.Emit(ctx, domain.EventInventoryUpdated, levels,
		broadcast.RoleChannels(domain.RoleStaff, domain.RoleAdmin)...)
}

// ApplyTransition moves order to status to inside the caller's transaction. The write only
// lands if nobody changed the order since it was read.
func (s *Service) ApplyTransition(ctx context.Context, order *domain.Order, to domain.Status, changedBy string, notes *string) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		from := order.Status
		now := s.clock.Now()
		if err := order.TransitionTo(to, now); err != nil {
			return err
		}
		if err := s.orders.UpdateStatus(ctx, order, from); err != nil {
			return err
		}
		if err := s.orders.LogStatus(ctx, &domain.StatusLog{
			OrderID:   order.ID,
			Status:    to,
			ChangedBy: changedBy,
			ChangedAt: now,
			Notes:     notes,
		}); err != nil {
			return err
		}
		s.metrics.OrderStatusChanged(to)
		return nil
	})
}

// ApplyCancel cancels order and releases exactly the quantities it reserved.
func (s *Service) ApplyCancel(ctx context.Context, order *domain.Order, changedBy string, reason *string) ([]domain.StockLevel, error) {
	if !order.Cancellable() {
		return nil, domain.Errorf(domain.CodeNotCancellable, "order cannot be cancelled in status %s", order.Status)
	}

	var levels []domain.StockLevel
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.ApplyTransition(ctx, order, domain.StatusCancelled, changedBy, reason); err != nil {
			return err
		}
		reserved := make(map[string]int, len(order.Items))
		for _, it := range order.Items {
			reserved[it.MenuItemID] += it.Quantity
		}
		for _, id := range sortedKeys(reserved) {
			lvl, err := s.ledger.Release(ctx, id, reserved[id])
			if err != nil {
				return err
			}
			levels = append(levels, lvl)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.OrderCancelled()
	return levels, nil
}

func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.VisibleTo(actor) {
		return nil, domain.Errorf(domain.CodeNotFound, "order %s not found", id)
	}
	return order, nil
}

func (s *Service) List(ctx context.Context, actor domain.Actor, filter domain.OrderFilter) ([]*domain.Order, error) {
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
	return s.orders.List(ctx, filter)
}

func (s *Service) History(ctx context.Context, actor domain.Actor, id string) ([]*domain.StatusLog, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.orders.GetStatusHistory(ctx, id)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
)

const orderColumns = `id, number, customer_id, customer_name, status, total_amount, special_instructions,
	estimated_ready_time, actual_ready_time, completed_at, created_at, updated_at`

type orderRepository struct {
	db DB
}

func NewOrderRepository(db DB) interfaces.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) NextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	var seq int64
	if err := executor(ctx, r.db).QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return "", fmt.Errorf("failed to generate order number: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%06d", now.UTC().Format("20060102"), seq), nil
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	q := executor(ctx, r.db)

	query := `
		INSERT INTO orders (id, number, customer_id, customer_name, status, total_amount, special_instructions,
		                    estimated_ready_time, actual_ready_time, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := q.Exec(ctx, query,
		order.ID, order.Number, order.CustomerID, order.CustomerName, order.Status, order.TotalAmount,
		order.SpecialInstructions, order.EstimatedReadyTime, order.ActualReadyTime, order.CompletedAt,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", mapError(err))
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, menu_item_id, name, quantity, unit_price, special_instructions, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for i, item := range order.Items {
		_, err := q.Exec(ctx, itemQuery,
			item.ID, order.ID, item.MenuItemID, item.Name, item.Quantity, item.UnitPrice, item.SpecialInstructions, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", mapError(err))
		}
	}
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	q := executor(ctx, r.db)

	order, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", id, mapError(err))
	}
	if err := r.loadItems(ctx, q, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CustomerID != "" {
		where = append(where, "customer_id = "+arg(filter.CustomerID))
	}
	if filter.Status != nil {
		where = append(where, "status = "+arg(string(*filter.Status)))
	}
	if start, end, ok := filter.DayRange(); ok {
		where = append(where, "created_at >= "+arg(start), "created_at < "+arg(end))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	return r.queryOrders(ctx, query, args...)
}

func (r *orderRepository) UpdateStatus(ctx context.Context, order *domain.Order, from domain.Status) error {
	query := `
		UPDATE orders
		SET status = $1, actual_ready_time = $2, completed_at = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`
	tag, err := executor(ctx, r.db).Exec(ctx, query,
		order.Status, order.ActualReadyTime, order.CompletedAt, order.UpdatedAt, order.ID, from,
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.Errorf(domain.CodeInvalidTransition, "order %s is no longer %s", order.ID, from)
	}
	return nil
}

func (r *orderRepository) LogStatus(ctx context.Context, entry *domain.StatusLog) error {
	query := `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := executor(ctx, r.db).QueryRow(ctx, query,
		entry.OrderID, entry.Status, entry.ChangedBy, entry.ChangedAt, entry.Notes,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to log status: %w", mapError(err))
	}
	return nil
}

func (r *orderRepository) GetStatusHistory(ctx context.Context, orderID string) ([]*domain.StatusLog, error) {
	query := `
		SELECT id, order_id, status, changed_by, changed_at, notes
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY changed_at ASC, id ASC
	`

	rows, err := executor(ctx, r.db).Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", mapError(err))
	}
	defer rows.Close()

	logs := []*domain.StatusLog{}
	for rows.Next() {
		var log domain.StatusLog
		if err := rows.Scan(&log.ID, &log.OrderID, &log.Status, &log.ChangedBy, &log.ChangedAt, &log.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan status log: %w", err)
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}

func (r *orderRepository) ListActive(ctx context.Context, limit int) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = ANY($1::text[])
		ORDER BY array_position($1::text[], status), created_at, id
		LIMIT $2
	`
	return r.queryOrders(ctx, query, activeStatusNames(), limit)
}

func (r *orderRepository) CountAhead(ctx context.Context, order *domain.Order) (int, error) {
	rank := order.Status.QueuePriority()
	if rank < 0 {
		return 0, nil
	}

	query := `
		SELECT COUNT(*)
		FROM orders
		WHERE status = ANY($1::text[])
		  AND (array_position($1::text[], status) < $2
		       OR (status = $3 AND created_at < $4))
	`
	var n int
	err := executor(ctx, r.db).QueryRow(ctx, query,
		activeStatusNames(), rank+1, order.Status, order.CreatedAt,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders ahead: %w", mapError(err))
	}
	return n, nil
}

func (r *orderRepository) ListStaleReady(ctx context.Context, cutoff time.Time) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = $1 AND actual_ready_time < $2
		ORDER BY actual_ready_time, id
	`
	return r.queryOrders(ctx, query, domain.StatusReady, cutoff)
}

func (r *orderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	q := executor(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", mapError(err))
	}

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", mapError(err))
	}

	if err := r.loadItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) loadItems(ctx context.Context, q querier, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		o.Items = []domain.OrderItem{}
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	query := `
		SELECT id, order_id, menu_item_id, name, quantity, unit_price, special_instructions
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`
	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", mapError(err))
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MenuItemID, &item.Name,
			&item.Quantity, &item.UnitPrice, &item.SpecialInstructions); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

func scanOrder(row Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID, &o.CustomerName, &o.Status, &o.TotalAmount, &o.SpecialInstructions,
		&o.EstimatedReadyTime, &o.ActualReadyTime, &o.CompletedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func activeStatusNames() []string {
	names := make([]string, len(domain.ActiveStatuses))
	for i, s := range domain.ActiveStatuses {
		names[i] = string(s)
	}
	return names
}

package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
)

const paymentColumns = `p.id, p.order_id, p.method, p.status, p.amount, p.transaction_id, p.external_transaction_id,
	p.phone_number, p.provider, p.failure_reason, p.notes, p.processed_by, p.completed_at, p.created_at, p.updated_at`

type paymentRepository struct {
	db DB
}

func NewPaymentRepository(db DB) interfaces.PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) ExistsForOrder(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	err := executor(ctx, r.db).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE order_id = $1)`, orderID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check payment: %w", mapError(err))
	}
	return exists, nil
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (id, order_id, method, status, amount, transaction_id, external_transaction_id,
		                      phone_number, provider, failure_reason, notes, processed_by, completed_at,
		                      created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := executor(ctx, r.db).Exec(ctx, query,
		p.ID, p.OrderID, p.Method, p.Status, p.Amount, p.TransactionID, p.ExternalTransactionID,
		p.PhoneNumber, p.Provider, p.FailureReason, p.Notes, p.ProcessedBy, p.CompletedAt,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", mapError(err))
	}
	return nil
}

func (r *paymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = $1, external_transaction_id = $2, failure_reason = $3, completed_at = $4, updated_at = $5
		WHERE id = $6
	`
	tag, err := executor(ctx, r.db).Exec(ctx, query,
		p.Status, p.ExternalTransactionID, p.FailureReason, p.CompletedAt, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.Errorf(domain.CodeNotFound, "payment %s not found", p.ID)
	}
	return nil
}

func (r *paymentRepository) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	p, err := scanPayment(executor(ctx, r.db).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments p WHERE p.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("payment %s: %w", id, mapError(err))
	}
	return p, nil
}

func (r *paymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	p, err := scanPayment(executor(ctx, r.db).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments p WHERE p.transaction_id = $1`, transactionID))
	if err != nil {
		return nil, fmt.Errorf("payment %s: %w", transactionID, mapError(err))
	}
	return p, nil
}

func (r *paymentRepository) List(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	query := `SELECT ` + paymentColumns + ` FROM payments p`
	if filter.CustomerID != "" {
		query += ` JOIN orders o ON o.id = p.order_id`
		where = append(where, "o.customer_id = "+arg(filter.CustomerID))
	}
	if filter.Status != nil {
		where = append(where, "p.status = "+arg(string(*filter.Status)))
	}
	if filter.Method != nil {
		where = append(where, "p.method = "+arg(string(*filter.Method)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.created_at DESC, p.id"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := executor(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", mapError(err))
	}
	defer rows.Close()

	payments := []*domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(row Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.Method, &p.Status, &p.Amount, &p.TransactionID, &p.ExternalTransactionID,
		&p.PhoneNumber, &p.Provider, &p.FailureReason, &p.Notes, &p.ProcessedBy, &p.CompletedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

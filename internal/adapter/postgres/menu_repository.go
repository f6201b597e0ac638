package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
	"github.com/jackc/pgx/v5"
)

type menuRepository struct {
	db DB
}

func NewMenuRepository(db DB) interfaces.MenuRepository {
	return &menuRepository{db: db}
}

func (r *menuRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*domain.MenuItem, error) {
	items := make(map[string]*domain.MenuItem, len(ids))
	if len(ids) == 0 {
		return items, nil
	}

	query := `
		SELECT id, name, price, stock_quantity, status, preparation_time, updated_at
		FROM menu_items
		WHERE id = ANY($1::uuid[])
	`
	rows, err := executor(ctx, r.db).Query(ctx, query, ids)
	if err != nil {
		if isInvalidText(err) {
			// a malformed id cannot match any item
			return items, nil
		}
		return nil, fmt.Errorf("failed to query menu items: %w", mapError(err))
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.MenuItem
		if err := rows.Scan(&m.ID, &m.Name, &m.Price, &m.StockQuantity, &m.Status, &m.PreparationTime, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		items[m.ID] = &m
	}
	if err := rows.Err(); err != nil {
		if isInvalidText(err) {
			return map[string]*domain.MenuItem{}, nil
		}
		return nil, fmt.Errorf("failed to read menu items: %w", mapError(err))
	}
	return items, nil
}

// DecrementStock is a conditional update, so two concurrent reservations cannot oversell.
func (r *menuRepository) DecrementStock(ctx context.Context, id string, qty int) (int, error) {
	query := `
		UPDATE menu_items
		SET stock_quantity = stock_quantity - $2, updated_at = NOW()
		WHERE id = $1 AND stock_quantity >= $2
		RETURNING stock_quantity
	`
	var remaining int
	err := executor(ctx, r.db).QueryRow(ctx, query, id, qty).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.Errorf(domain.CodeInsufficientStock, "insufficient stock for menu item %s", id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to decrement stock: %w", mapError(err))
	}
	return remaining, nil
}

func (r *menuRepository) IncrementStock(ctx context.Context, id string, qty int) (int, error) {
	query := `
		UPDATE menu_items
		SET stock_quantity = stock_quantity + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING stock_quantity
	`
	var remaining int
	if err := executor(ctx, r.db).QueryRow(ctx, query, id, qty).Scan(&remaining); err != nil {
		return 0, fmt.Errorf("failed to increment stock for menu item %s: %w", id, mapError(err))
	}
	return remaining, nil
}

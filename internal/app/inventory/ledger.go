package inventory

import (
	"context"
	"errors"

	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
)

// ErrNoTransaction is returned when stock is moved outside a caller transaction.
var ErrNoTransaction = errors.New("inventory: stock can only change inside a transaction")

// Ledger is the only writer of menu stock.
type Ledger struct {
	menu interfaces.MenuRepository
	tx   interfaces.TxManager
}

func NewLedger(menu interfaces.MenuRepository, tx interfaces.TxManager) *Ledger {
	return &Ledger{menu: menu, tx: tx}
}

// Reserve takes qty units of an item. It fails with InsufficientStock, leaving stock untouched,
// when fewer than qty remain.
func (l *Ledger) Reserve(ctx context.Context, menuItemID string, qty int) (domain.StockLevel, error) {
	if !l.tx.InTx(ctx) {
		return domain.StockLevel{}, ErrNoTransaction
	}
	if qty < 1 {
		return domain.StockLevel{}, domain.Errorf(domain.CodeInvalidInput, "quantity must be a positive integer")
	}
	left, err := l.menu.DecrementStock(ctx, menuItemID, qty)
	if err != nil {
		return domain.StockLevel{}, err
	}
	return domain.StockLevel{MenuItemID: menuItemID, StockQuantity: left}, nil
}

// Release returns qty units of an item. There is no upper bound.
func (l *Ledger) Release(ctx context.Context, menuItemID string, qty int) (domain.StockLevel, error) {
	if !l.tx.InTx(ctx) {
		return domain.StockLevel{}, ErrNoTransaction
	}
	if qty < 1 {
		return domain.StockLevel{}, domain.Errorf(domain.CodeInvalidInput, "quantity must be a positive integer")
	}
	left, err := l.menu.IncrementStock(ctx, menuItemID, qty)
	if err != nil {
		return domain.StockLevel{}, err
	}
	return domain.StockLevel{MenuItemID: menuItemID, StockQuantity: left}, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/YelzhanWeb/canteen/internal/interfaces"
)

type txKey struct{}

type txManager struct {
	db DB
}

func NewTxManager(db DB) interfaces.TxManager {
	return &txManager{db: db}
}

// WithTx runs fn in a transaction carried by ctx. A nested call joins the outer transaction.
func (m *txManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapError(err))
	}
	return nil
}

func (m *txManager) InTx(ctx context.Context) bool {
	return txFromContext(ctx) != nil
}

func txFromContext(ctx context.Context) Tx {
	tx, _ := ctx.Value(txKey{}).(Tx)
	return tx
}

// executor picks the transaction in ctx, falling back to the pool.
func executor(ctx context.Context, db DB) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db
}

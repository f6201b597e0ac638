package postgres

import (
	"errors"

	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
	codeForeignKeyViolation = "23503"
	codeInvalidText         = "22P02"
)

// mapError turns storage failures into domain errors; anything unrecognized is returned as is.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Wrap(domain.CodeNotFound, err, "not found")
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		if pgErr.ConstraintName == "payments_order_id_key" {
			return domain.Wrap(domain.CodePaymentExists, err, domain.ErrPaymentExists.Message)
		}
		return domain.Wrap(domain.CodeConflict, err, "resource already exists")
	case codeCheckViolation:
		if pgErr.ConstraintName == "menu_items_stock_non_negative" {
			return domain.Wrap(domain.CodeInsufficientStock, err, domain.ErrInsufficientStock.Message)
		}
		return domain.Wrap(domain.CodeInvalidInput, err, "value out of range")
	case codeInvalidText:
		return domain.Wrap(domain.CodeNotFound, err, "not found")
	case codeForeignKeyViolation:
		return domain.Wrap(domain.CodeInvalidInput, err, "referenced record does not exist")
	}
	return err
}

func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeInvalidText
}

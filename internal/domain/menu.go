package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type MenuItemStatus string

const (
	MenuItemAvailable   MenuItemStatus = "AVAILABLE"
	MenuItemUnavailable MenuItemStatus = "UNAVAILABLE"
)

// MenuItem is the catalog entity; this service only reads it and moves its stock.
type MenuItem struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	StockQuantity   int             `json:"stockQuantity"`
	Status          MenuItemStatus  `json:"status"`
	PreparationTime int             `json:"preparationTime"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (m *MenuItem) IsAvailable() bool {
	return m.Status == MenuItemAvailable
}

// StockLevel is the stock of one item after a reservation or release.
type StockLevel struct {
	MenuItemID    string `json:"menuItemId"`
	StockQuantity int    `json:"stockQuantity"`
}

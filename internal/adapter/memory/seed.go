package memory

import (
	"time"

	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/shopspring/decimal"
)

// SeedMenu loads the demo catalog that the Postgres seed migration installs.
func (s *Store) SeedMenu(now time.Time) {
	items := []domain.MenuItem{
		{ID: "6f1c1b3e-0d7a-4d2e-9a61-1f0a4f7c0001", Name: "Jollof Rice with Chicken", Price: decimal.RequireFromString("25.00"), StockQuantity: 40, Status: domain.MenuItemAvailable, PreparationTime: 15},
		{ID: "6f1c1b3e-0d7a-4d2e-9a61-1f0a4f7c0002", Name: "Banku with Tilapia", Price: decimal.RequireFromString("35.00"), StockQuantity: 20, Status: domain.MenuItemAvailable, PreparationTime: 20},
		{ID: "6f1c1b3e-0d7a-4d2e-9a61-1f0a4f7c0003", Name: "Vegetable Salad", Price: decimal.RequireFromString("12.50"), StockQuantity: 30, Status: domain.MenuItemAvailable, PreparationTime: 5},
		{ID: "6f1c1b3e-0d7a-4d2e-9a61-1f0a4f7c0004", Name: "Fresh Orange Juice", Price: decimal.RequireFromString("8.00"), StockQuantity: 50, Status: domain.MenuItemAvailable, PreparationTime: 2},
		{ID: "6f1c1b3e-0d7a-4d2e-9a61-1f0a4f7c0005", Name: "Waakye Special", Price: decimal.RequireFromString("20.00"), StockQuantity: 0, Status: domain.MenuItemUnavailable, PreparationTime: 10},
	}
	for _, item := range items {
		item.UpdatedAt = now
		s.PutMenuItem(item)
	}
}

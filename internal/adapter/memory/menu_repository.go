package memory

import (
	"context"

	"github.com/YelzhanWeb/canteen/internal/domain"
)

type menuRepository struct {
	s *Store
}

func (r *menuRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*domain.MenuItem, error) {
	defer r.s.lock(ctx)()
	out := make(map[string]*domain.MenuItem, len(ids))
	for _, id := range ids {
		if m, ok := r.s.st.menu[id]; ok {
			c := *m
			out[id] = &c
		}
	}
	return out, nil
}

func (r *menuRepository) DecrementStock(ctx context.Context, id string, qty int) (int, error) {
	defer r.s.lock(ctx)()
	m, ok := r.s.st.menu[id]
	if !ok {
		return 0, domain.Errorf(domain.CodeNotFound, "menu item %s not found", id)
	}
	if m.StockQuantity < qty {
		return 0, domain.Errorf(domain.CodeInsufficientStock, "insufficient stock for menu item %s", id)
	}
	m.StockQuantity -= qty
	m.UpdatedAt = r.s.clock.Now()
	return m.StockQuantity, nil
}

func (r *menuRepository) IncrementStock(ctx context.Context, id string, qty int) (int, error) {
	defer r.s.lock(ctx)()
	m, ok := r.s.st.menu[id]
	if !ok {
		return 0, domain.Errorf(domain.CodeNotFound, "menu item %s not found", id)
	}
	m.StockQuantity += qty
	m.UpdatedAt = r.s.clock.Now()
	return m.StockQuantity, nil
}

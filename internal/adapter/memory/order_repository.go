package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/YelzhanWeb/canteen/internal/domain"
)

type orderRepository struct {
	s *Store
}

func (r *orderRepository) NextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	defer r.s.lock(ctx)()
	r.s.st.orderSeq++
	return fmt.Sprintf("ORD-%s-%06d", now.UTC().Format("20060102"), r.s.st.orderSeq), nil
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.st.orders[order.ID]; ok {
		return domain.Errorf(domain.CodeConflict, "order %s already exists", order.ID)
	}
	for _, o := range r.s.st.orders {
		if o.Number == order.Number {
			return domain.Errorf(domain.CodeConflict, "order number %s already exists", order.Number)
		}
	}
	r.s.st.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	defer r.s.lock(ctx)()
	o, ok := r.s.st.orders[id]
	if !ok {
		return nil, domain.Errorf(domain.CodeNotFound, "order %s not found", id)
	}
	return cloneOrder(o), nil
}

func (r *orderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	defer r.s.lock(ctx)()

	start, end, byDay := filter.DayRange()
	out := []*domain.Order{}
	for _, o := range r.s.st.orders {
		if filter.CustomerID != "" && o.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		if byDay && (o.CreatedAt.Before(start) || !o.CreatedAt.Before(end)) {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, order *domain.Order, from domain.Status) error {
	defer r.s.lock(ctx)()
	stored, ok := r.s.st.orders[order.ID]
	if !ok {
		return domain.Errorf(domain.CodeNotFound, "order %s not found", order.ID)
	}
	if stored.Status != from {
		return domain.Errorf(domain.CodeInvalidTransition, "order %s is no longer %s", order.ID, from)
	}
	stored.Status = order.Status
	stored.ActualReadyTime = order.ActualReadyTime
	stored.CompletedAt = order.CompletedAt
	stored.UpdatedAt = order.UpdatedAt
	return nil
}

func (r *orderRepository) LogStatus(ctx context.Context, entry *domain.StatusLog) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.st.orders[entry.OrderID]; !ok {
		return domain.Errorf(domain.CodeInvalidInput, "order %s does not exist", entry.OrderID)
	}
	r.s.st.logSeq++
	entry.ID = r.s.st.logSeq
	e := *entry
	r.s.st.logs = append(r.s.st.logs, &e)
	return nil
}

func (r *orderRepository) GetStatusHistory(ctx context.Context, orderID string) ([]*domain.StatusLog, error) {
	defer r.s.lock(ctx)()
	out := []*domain.StatusLog{}
	for _, l := range r.s.st.logs {
		if l.OrderID == orderID {
			e := *l
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r *orderRepository) ListActive(ctx context.Context, limit int) ([]*domain.Order, error) {
	defer r.s.lock(ctx)()
	all := make([]*domain.Order, 0, len(r.s.st.orders))
	for _, o := range r.s.st.orders {
		all = append(all, cloneOrder(o))
	}
	return page(domain.RankQueue(all), limit, 0), nil
}

func (r *orderRepository) CountAhead(ctx context.Context, order *domain.Order) (int, error) {
	defer r.s.lock(ctx)()
	n := 0
	for _, o := range r.s.st.orders {
		if o.ID != order.ID && domain.Ahead(o, order) {
			n++
		}
	}
	return n, nil
}

func (r *orderRepository) ListStaleReady(ctx context.Context, cutoff time.Time) ([]*domain.Order, error) {
	defer r.s.lock(ctx)()
	out := []*domain.Order{}
	for _, o := range r.s.st.orders {
		if o.Status == domain.StatusReady && o.ActualReadyTime != nil && o.ActualReadyTime.Before(cutoff) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ActualReadyTime.Before(*out[j].ActualReadyTime)
	})
	return out, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

package memory

import (
	"context"
	"sort"

	"github.com/YelzhanWeb/canteen/internal/domain"
)

type paymentRepository struct {
	s *Store
}

func (r *paymentRepository) ExistsForOrder(ctx context.Context, orderID string) (bool, error) {
	defer r.s.lock(ctx)()
	for _, p := range r.s.st.payments {
		if p.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.st.orders[payment.OrderID]; !ok {
		return domain.Errorf(domain.CodeInvalidInput, "order %s does not exist", payment.OrderID)
	}
	for _, p := range r.s.st.payments {
		if p.OrderID == payment.OrderID {
			return domain.ErrPaymentExists
		}
		if p.TransactionID == payment.TransactionID {
			return domain.Errorf(domain.CodeConflict, "transaction %s already exists", payment.TransactionID)
		}
	}
	p := *payment
	r.s.st.payments[p.ID] = &p
	return nil
}

func (r *paymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	defer r.s.lock(ctx)()
	stored, ok := r.s.st.payments[payment.ID]
	if !ok {
		return domain.Errorf(domain.CodeNotFound, "payment %s not found", payment.ID)
	}
	stored.Status = payment.Status
	stored.ExternalTransactionID = payment.ExternalTransactionID
	stored.FailureReason = payment.FailureReason
	stored.CompletedAt = payment.CompletedAt
	stored.UpdatedAt = payment.UpdatedAt
	return nil
}

func (r *paymentRepository) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.st.payments[id]
	if !ok {
		return nil, domain.Errorf(domain.CodeNotFound, "payment %s not found", id)
	}
	c := *p
	return &c, nil
}

func (r *paymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	defer r.s.lock(ctx)()
	for _, p := range r.s.st.payments {
		if p.TransactionID == transactionID {
			c := *p
			return &c, nil
		}
	}
	return nil, domain.Errorf(domain.CodeNotFound, "payment %s not found", transactionID)
}

func (r *paymentRepository) List(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, error) {
	defer r.s.lock(ctx)()
	out := []*domain.Payment{}
	for _, p := range r.s.st.payments {
		if filter.CustomerID != "" {
			o, ok := r.s.st.orders[p.OrderID]
			if !ok || o.CustomerID != filter.CustomerID {
				continue
			}
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.Method != nil && p.Method != *filter.Method {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, filter.Limit, filter.Offset), nil
}

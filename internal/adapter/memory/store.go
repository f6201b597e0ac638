// Package memory keeps the whole datastore in process. It honours the same repository and
// transaction contracts as the Postgres adapter: one writer at a time, and a failed
// transaction leaves no trace.
package memory

import (
	"context"
	"sync"

	"github.com/YelzhanWeb/canteen/internal/clock"
	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
)

type txKey struct{}

type state struct {
	menu     map[string]*domain.MenuItem
	orders   map[string]*domain.Order
	logs     []*domain.StatusLog
	payments map[string]*domain.Payment
	audit    []*domain.AuditRecord
	orderSeq int64
	logSeq   int64
}

type Store struct {
	mu    sync.Mutex
	st    state
	clock clock.Clock
}

func NewStore() *Store {
	return NewStoreWithClock(clock.NewSystem())
}

// NewStoreWithClock stamps stock changes with clk.
func NewStoreWithClock(clk clock.Clock) *Store {
	return &Store{clock: clk, st: state{
		menu:     map[string]*domain.MenuItem{},
		orders:   map[string]*domain.Order{},
		payments: map[string]*domain.Payment{},
	}}
}

func (s *Store) Orders() interfaces.OrderRepository     { return &orderRepository{s: s} }
func (s *Store) Menu() interfaces.MenuRepository        { return &menuRepository{s: s} }
func (s *Store) Payments() interfaces.PaymentRepository { return &paymentRepository{s: s} }
func (s *Store) Audit() interfaces.AuditSink            { return &auditSink{s: s} }
func (s *Store) TxManager() interfaces.TxManager        { return &txManager{s: s} }

// PutMenuItem inserts or replaces a catalog item.
func (s *Store) PutMenuItem(item domain.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.menu[item.ID] = &item
}

// MenuItem returns a copy of the stored item.
func (s *Store) MenuItem(id string) (domain.MenuItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.st.menu[id]
	if !ok {
		return domain.MenuItem{}, false
	}
	return *m, true
}

// AuditRecords returns every record appended so far.
func (s *Store) AuditRecords() []domain.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditRecord, len(s.st.audit))
	for i, r := range s.st.audit {
		out[i] = *r
	}
	return out
}

// PaymentCount returns how many payments are stored.
func (s *Store) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.payments)
}

// lock takes the store lock unless ctx already runs inside a transaction of s.
func (s *Store) lock(ctx context.Context) func() {
	if owner, _ := ctx.Value(txKey{}).(*Store); owner == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type txManager struct {
	s *Store
}

func (m *txManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.InTx(ctx) {
		return fn(ctx)
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	snapshot := m.s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, m.s)); err != nil {
		m.s.st = snapshot
		return err
	}
	return nil
}

func (m *txManager) InTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == m.s
}

func (st state) clone() state {
	out := state{
		menu:     make(map[string]*domain.MenuItem, len(st.menu)),
		orders:   make(map[string]*domain.Order, len(st.orders)),
		logs:     append([]*domain.StatusLog(nil), st.logs...),
		payments: make(map[string]*domain.Payment, len(st.payments)),
		audit:    append([]*domain.AuditRecord(nil), st.audit...),
		orderSeq: st.orderSeq,
		logSeq:   st.logSeq,
	}
	for k, v := range st.menu {
		m := *v
		out.menu[k] = &m
	}
	for k, v := range st.orders {
		out.orders[k] = cloneOrder(v)
	}
	for k, v := range st.payments {
		p := *v
		out.payments[k] = &p
	}
	return out
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	return &c
}

package queue

import (
	"context"
	"time"

	"github.com/YelzhanWeb/canteen/internal/adapter/logger"
	"github.com/YelzhanWeb/canteen/internal/app/broadcast"
	"github.com/YelzhanWeb/canteen/internal/clock"
	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
)

const (
	DefaultLimit        = 50
	MaxLimit            = 200
	DefaultReadyTimeout = 30 * time.Minute
)

type Options struct {
	DefaultLimit int
	// ReadyTimeout is how long a READY order waits for pickup before the reaper completes it.
	ReadyTimeout time.Duration
}

// Service is the read side of the kitchen queue plus the stale-order reaper.
// Positions are derived on every call and never stored.
type Service struct {
	orders      interfaces.OrderRepository
	lifecycle   interfaces.OrderLifecycle
	tx          interfaces.TxManager
	broadcaster interfaces.Broadcaster
	audit       interfaces.AuditRecorder
	metrics     interfaces.Metrics
	clock       clock.Clock
	logger      logger.Logger
	opts        Options
}

type Deps struct {
	Orders      interfaces.OrderRepository
	Lifecycle   interfaces.OrderLifecycle
	Tx          interfaces.TxManager
	Broadcaster interfaces.Broadcaster
	Audit       interfaces.AuditRecorder
	Metrics     interfaces.Metrics
	Clock       clock.Clock
	Logger      logger.Logger
}

func NewService(d Deps, opts Options) *Service {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}
	return &Service{
		orders:      d.Orders,
		lifecycle:   d.Lifecycle,
		tx:          d.Tx,
		broadcaster: d.Broadcaster,
		audit:       d.Audit,
		metrics:     d.Metrics,
		clock:       d.Clock,
		logger:      d.Logger,
		opts:        opts,
	}
}

func (s *Service) Status(ctx context.Context, limit int) (*domain.QueueSnapshot, error) {
	switch {
	case limit <= 0:
		limit = s.opts.DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	orders, err := s.orders.ListActive(ctx, limit)
	if err != nil {
		return nil, err
	}
	snap := domain.BuildSnapshot(orders, s.clock.Now())
	return &snap, nil
}

func (s *Service) Position(ctx context.Context, orderID string) (*domain.QueuePosition, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	ahead := 0
	if order.Status.IsActive() {
		if ahead, err = s.orders.CountAhead(ctx, order); err != nil {
			return nil, err
		}
	}
	pos := domain.PositionOf(order, ahead, s.clock.Now())
	return &pos, nil
}

// Reap completes READY orders nobody picked up within ReadyTimeout. Each order is moved in its
// own transaction through the regular status write, so a concurrent manual update wins and the
// order is skipped.
func (s *Service) Reap(ctx context.Context) (*interfaces.ReapResult, error) {
	reqID := logger.RequestID(ctx)
	cutoff := s.clock.Now().Add(-s.opts.ReadyTimeout)

	stale, err := s.orders.ListStaleReady(ctx, cutoff)
	if err != nil {
		logger.Failure(s.logger, "reap_failed", "Failed to list stale orders", reqID, nil, err)
		return nil, err
	}

	result := &interfaces.ReapResult{OrderIDs: []string{}}
	var reaped []*domain.Order
	for _, order := range stale {
		err := s.tx.WithTx(ctx, func(ctx context.Context) error {
			return s.lifecycle.ApplyTransition(ctx, order, domain.StatusCompleted, domain.SystemActor.ID,
				strPtr("Auto-completed after pickup timeout"))
		})
		if err != nil {
			if domain.CodeOf(err) == domain.CodeInvalidTransition {
				s.logger.Debug("reap_skipped", "Order changed concurrently", reqID,
					map[string]interface{}{"order_id": order.ID})
				continue
			}
			logger.Failure(s.logger, "reap_failed", "Failed to complete stale order", reqID,
				map[string]interface{}{"order_id": order.ID}, err)
			s.audit.Record(ctx, domain.SystemActor, domain.AuditQueueReap, err, map[string]any{"order_id": order.ID})
			continue
		}
		reaped = append(reaped, order)
		result.OrderIDs = append(result.OrderIDs, order.ID)
	}
	result.Reaped = len(reaped)

	if result.Reaped == 0 {
		return result, nil
	}

	fields := map[string]any{
		"reaped":    result.Reaped,
		"order_ids": result.OrderIDs,
		"cutoff":    cutoff,
	}
	s.metrics.OrdersReaped(result.Reaped)
	s.logger.Info("orders_reaped", "Stale ready orders completed", reqID, fields)
	s.audit.Record(ctx, domain.SystemActor, domain.AuditQueueReap, nil, fields)

	for _, order := range reaped {
		s.lifecycle.EmitStatusChange(ctx, order)
	}
	s.broadcaster.Emit(ctx, domain.EventQueueUpdated,
		domain.QueueUpdatedPayload{Reason: "pickup_timeout", OrderIDs: result.OrderIDs},
		broadcast.RoleChannels(broadcast.StaffRoles...)...)

	return result, nil
}

// RunReaper calls Reap every interval until ctx is done.
func (s *Service) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("reaper_started", "Queue reaper started", "", map[string]interface{}{
		"interval":      interval.String(),
		"ready_timeout": s.opts.ReadyTimeout.String(),
	})

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reaper_stopped", "Queue reaper stopped", "", nil)
			return
		case <-ticker.C:
			if _, err := s.Reap(ctx); err != nil {
				s.logger.Error("reap_failed", "Reap sweep failed", "", nil, err)
			}
		}
	}
}

func strPtr(s string) *string { return &s }

package audit

import (
	"context"
	"errors"
	"time"

	"github.com/YelzhanWeb/canteen/internal/adapter/logger"
	"github.com/YelzhanWeb/canteen/internal/clock"
	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
	"github.com/google/uuid"
)

const writeTimeout = 5 * time.Second

// Recorder turns operation outcomes into audit records. Sink failures are logged only,
// an audit problem never fails the operation it describes.
type Recorder struct {
	sink   interfaces.AuditSink
	clock  clock.Clock
	logger logger.Logger
}

func NewRecorder(sink interfaces.AuditSink, clk clock.Clock, logger logger.Logger) *Recorder {
	return &Recorder{sink: sink, clock: clk, logger: logger}
}

func (r *Recorder) Record(ctx context.Context, actor domain.Actor, action string, err error, fields map[string]any) {
	rec := &domain.AuditRecord{
		ID:        uuid.NewString(),
		Level:     "info",
		Action:    action,
		ActorID:   actor.ID,
		Outcome:   domain.AuditSuccess,
		Context:   make(map[string]any, len(fields)+3),
		CreatedAt: r.clock.Now(),
	}
	for k, v := range fields {
		rec.Context[k] = v
	}
	rec.Context["actor_role"] = actor.Role
	if id := logger.RequestID(ctx); id != "" {
		rec.Context["request_id"] = id
	}

	if err != nil {
		rec.Level = "error"
		rec.Outcome = domain.AuditFailure
		if code := domain.CodeOf(err); code != "" {
			rec.Context["error_code"] = code
			rec.Context["error"] = domain.MessageOf(err)
		} else {
			rec.Context["error"] = "internal error"
		}
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if werr := r.sink.Append(writeCtx, rec); werr != nil {
		r.logger.Error("audit_write_failed", "Failed to write audit record", logger.RequestID(ctx),
			map[string]interface{}{"action": action, "audit_id": rec.ID}, werr)
	}
}

// MultiSink appends every record to all sinks, attempting each even when one fails.
type MultiSink []interfaces.AuditSink

func (m MultiSink) Append(ctx context.Context, rec *domain.AuditRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

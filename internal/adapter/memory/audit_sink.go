package memory

import (
	"context"

	"github.com/YelzhanWeb/canteen/internal/domain"
)

type auditSink struct {
	s *Store
}

func (a *auditSink) Append(ctx context.Context, rec *domain.AuditRecord) error {
	defer a.s.lock(ctx)()
	r := *rec
	a.s.st.audit = append(a.s.st.audit, &r)
	return nil
}

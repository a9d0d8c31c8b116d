package queries

import (
	"context"

	"vmbook/internal/audit"
	"vmbook/internal/pkg/errs"

	"github.com/google/uuid"
)

const defaultAuditLimit = 100

type AuditReadStore interface {
	ListRecent(ctx context.Context, limit int32, bookingID *uuid.UUID) ([]*audit.Entry, error)
}

type AuditQueries interface {
	ListRecent(ctx context.Context, limit int32, bookingID *uuid.UUID) ([]*audit.Entry, error)
}

type auditQueriesImpl struct {
	store AuditReadStore
}

func NewAuditQueries(store AuditReadStore) AuditQueries {
	return &auditQueriesImpl{store: store}
}

func (q *auditQueriesImpl) ListRecent(ctx context.Context, limit int32, bookingID *uuid.UUID) ([]*audit.Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultAuditLimit
	}
	entries, err := q.store.ListRecent(ctx, limit, bookingID)
	if err != nil {
		return nil, errs.Wrap(err, "failed to list audit entries")
	}
	return entries, nil
}

package queries

import (
	"context"
	"fmt"

	"vmbook/internal/domain/user"
	"vmbook/internal/infra"
	"vmbook/internal/pkg/errs"

	"github.com/google/uuid"
)

type BookingReadStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*BookingView, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*BookingView, error)
	FindAll(ctx context.Context) ([]*BookingView, error)
	FindBlocking(ctx context.Context) ([]*BookingView, error)
}

type BookingQueries interface {
	GetByID(ctx context.Context, id, requesterID uuid.UUID, role user.Role) (*BookingView, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]*BookingView, error)
	ListAll(ctx context.Context) ([]*BookingView, error)
	Availability(ctx context.Context, role user.Role) ([]*CalendarBlock, error)
}

type bookingQueriesImpl struct {
	store BookingReadStore
}

func NewBookingQueries(store BookingReadStore) BookingQueries {
	return &bookingQueriesImpl{store: store}
}

func (q *bookingQueriesImpl) GetByID(ctx context.Context, id, requesterID uuid.UUID, role user.Role) (*BookingView, error) {
	view, err := q.store.FindByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.ErrBookingNotFound
		}
		return nil, errs.Wrap(err, "failed to find booking")
	}

	// Owners and admins only; leak nothing about other users' bookings.
	if view.UserID != requesterID && !role.IsAdmin() {
		return nil, errs.ErrBookingNotFound
	}
	return view, nil
}

func (q *bookingQueriesImpl) ListMine(ctx context.Context, userID uuid.UUID) ([]*BookingView, error) {
	views, err := q.store.FindByUserID(ctx, userID)
	if err != nil {
		return nil, errs.Wrap(err, "failed to list user bookings")
	}
	return views, nil
}

func (q *bookingQueriesImpl) ListAll(ctx context.Context) ([]*BookingView, error) {
	views, err := q.store.FindAll(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "failed to list bookings")
	}
	return views, nil
}

// Availability builds the calendar feed. Admins see every booking with owner
// and status; other users see approved/running windows as anonymous blocks.
func (q *bookingQueriesImpl) Availability(ctx context.Context, role user.Role) ([]*CalendarBlock, error) {
	var (
		views []*BookingView
		err   error
	)
	if role.IsAdmin() {
		views, err = q.store.FindAll(ctx)
	} else {
		views, err = q.store.FindBlocking(ctx)
	}
	if err != nil {
		return nil, errs.Wrap(err, "failed to build availability feed")
	}

	blocks := make([]*CalendarBlock, len(views))
	for i, v := range views {
		title := "Unavailable"
		if role.IsAdmin() {
			title = fmt.Sprintf("%s (%s)", v.Username, v.Status)
		}
		blocks[i] = &CalendarBlock{
			ID:      v.ID,
			Title:   title,
			StartAt: v.StartAt,
			EndAt:   v.EndAt,
			Status:  v.Status,
		}
	}
	return blocks, nil
}

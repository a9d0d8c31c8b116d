//go:build unit || integration

package builder

import (
	"time"

	dombooking "vmbook/internal/domain/booking"
	reqdto "vmbook/internal/handler/dto/request"
	"vmbook/internal/pkg/clock"
	"vmbook/internal/usecase/queries"
	"vmbook/internal/workflow"

	"github.com/google/uuid"
)

type BookingBuilder struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Username    string
	StartAt     time.Time
	EndAt       time.Time
	Status      dombooking.Status
	MinDuration time.Duration
	MaxDuration time.Duration
	Now         time.Time
}

func NewBookingBuilder() *BookingBuilder {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &BookingBuilder{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Username:    "student1",
		StartAt:     now.Add(24 * time.Hour),
		EndAt:       now.Add(26 * time.Hour),
		Status:      dombooking.StatusPending,
		MinDuration: 30 * time.Minute,
		MaxDuration: 6 * time.Hour,
		Now:         now,
	}
}

func (b *BookingBuilder) With(mutate func(*BookingBuilder)) *BookingBuilder {
	mutate(b)
	return b
}

func (b *BookingBuilder) Services() *dombooking.Services {
	return &dombooking.Services{
		Clock: clock.NewMockClock(b.Now),
		Policy: dombooking.Policy{
			MinDuration: b.MinDuration,
			MaxDuration: b.MaxDuration,
		},
	}
}

// Build methods
func (b *BookingBuilder) BuildDomain() (*dombooking.Booking, error) {
	window, err := dombooking.NewTimeWindow(b.StartAt, b.EndAt)
	if err != nil {
		return nil, err
	}
	return dombooking.NewBooking(b.Services(), b.UserID, window)
}

func (b *BookingBuilder) BuildRunInfo() *workflow.RunInfo {
	return &workflow.RunInfo{
		ID:            b.ID,
		OwnerUsername: b.Username,
		Status:        b.Status,
		StartAt:       b.StartAt,
		EndAt:         b.EndAt,
	}
}

func (b *BookingBuilder) BuildView() *queries.BookingView {
	return &queries.BookingView{
		ID:        b.ID,
		UserID:    b.UserID,
		Username:  b.Username,
		StartAt:   b.StartAt,
		EndAt:     b.EndAt,
		Status:    b.Status.String(),
		CreatedAt: b.Now,
		UpdatedAt: b.Now,
	}
}

func (b *BookingBuilder) BuildCreateRequestDTO() reqdto.CreateBookingRequest {
	return reqdto.CreateBookingRequest{
		StartAt: b.StartAt,
		EndAt:   b.EndAt,
	}
}

// Fluent builder methods
func (b *BookingBuilder) WithWindow(start, end time.Time) *BookingBuilder {
	b.StartAt = start
	b.EndAt = end
	return b
}

func (b *BookingBuilder) WithDuration(d time.Duration) *BookingBuilder {
	b.EndAt = b.StartAt.Add(d)
	return b
}

func (b *BookingBuilder) WithStatus(status dombooking.Status) *BookingBuilder {
	b.Status = status
	return b
}

func (b *BookingBuilder) WithUserID(userID uuid.UUID) *BookingBuilder {
	b.UserID = userID
	return b
}

func (b *BookingBuilder) WithUsername(username string) *BookingBuilder {
	b.Username = username
	return b
}

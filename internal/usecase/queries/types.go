package queries

import (
	"time"

	"github.com/google/uuid"
)

// BookingView is the read model served to the API.
type BookingView struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Username   string
	StartAt    time.Time
	EndAt      time.Time
	Status     string
	VMName     *string
	DiskName   *string
	LastRunAt  *time.Time
	LastStatus *string
	LastError  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CalendarBlock is one entry of the availability feed. Non-admin callers only
// see that a window is taken, not whose booking takes it.
type CalendarBlock struct {
	ID      uuid.UUID
	Title   string
	StartAt time.Time
	EndAt   time.Time
	Status  string
}

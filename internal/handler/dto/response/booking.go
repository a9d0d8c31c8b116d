package response

import (
	"time"

	"vmbook/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

type BookingResponse struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"userId"`
	Username   string     `json:"username"`
	StartAt    time.Time  `json:"startAt"`
	EndAt      time.Time  `json:"endAt"`
	Status     string     `json:"status"`
	VMName     *string    `json:"vmName,omitempty"`
	DiskName   *string    `json:"diskName,omitempty"`
	LastRunAt  *time.Time `json:"lastRunAt,omitempty"`
	LastStatus *string    `json:"lastStatus,omitempty"`
	LastError  *string    `json:"lastError,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type CreateBookingResponse struct {
	Booking   *BookingResponse `json:"booking"`
	Scheduled bool             `json:"scheduled"`
}

type CalendarBlockResponse struct {
	ID      uuid.UUID `json:"id"`
	Title   string    `json:"title"`
	StartAt time.Time `json:"start"`
	EndAt   time.Time `json:"end"`
	Status  string    `json:"status"`
}

func FromBookingView(rm *queries.BookingView) *BookingResponse {
	var resp BookingResponse
	// Field names line up one to one with the read model.
	_ = copier.Copy(&resp, rm)
	return &resp
}

func FromBookingViews(rms []*queries.BookingView) []*BookingResponse {
	resps := make([]*BookingResponse, len(rms))
	for i, rm := range rms {
		resps[i] = FromBookingView(rm)
	}
	return resps
}

func FromCalendarBlock(b *queries.CalendarBlock) *CalendarBlockResponse {
	return &CalendarBlockResponse{
		ID:      b.ID,
		Title:   b.Title,
		StartAt: b.StartAt,
		EndAt:   b.EndAt,
		Status:  b.Status,
	}
}

func FromCalendarBlocks(bs []*queries.CalendarBlock) []*CalendarBlockResponse {
	resps := make([]*CalendarBlockResponse, len(bs))
	for i, b := range bs {
		resps[i] = FromCalendarBlock(b)
	}
	return resps
}

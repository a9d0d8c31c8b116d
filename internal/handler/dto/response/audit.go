package response

import (
	"time"

	"vmbook/internal/audit"

	"github.com/google/uuid"
)

type AuditEntryResponse struct {
	ID        int64          `json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	Level     string         `json:"level"`
	Action    string         `json:"action"`
	BookingID *uuid.UUID     `json:"bookingId,omitempty"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
}

func FromAuditEntry(e *audit.Entry) *AuditEntryResponse {
	return &AuditEntryResponse{
		ID:        e.ID,
		CreatedAt: e.CreatedAt,
		Level:     string(e.Level),
		Action:    e.Action,
		BookingID: e.BookingID,
		Message:   e.Message,
		Context:   e.Context,
	}
}

func FromAuditEntries(es []*audit.Entry) []*AuditEntryResponse {
	resps := make([]*AuditEntryResponse, len(es))
	for i, e := range es {
		resps[i] = FromAuditEntry(e)
	}
	return resps
}

// Package audit defines the append-only operational log written by the
// scheduler and the workflow executor. Writes are best-effort: a failing sink
// must never abort the workflow that produced the entry.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

type Entry struct {
	ID        int64
	CreatedAt time.Time
	Level     Level
	Action    string
	BookingID *uuid.UUID
	Message   string
	Context   map[string]any
}

// Recorder appends one entry. Implementations swallow storage failures after
// logging them locally.
type Recorder interface {
	Record(ctx context.Context, level Level, action, message string, bookingID *uuid.UUID, extra map[string]any)
}

// NopRecorder discards every entry.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Level, string, string, *uuid.UUID, map[string]any) {}

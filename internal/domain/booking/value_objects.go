package booking

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrStartNotBeforeEnd = errors.New("start time must be before end time")
	ErrDurationTooShort  = errors.New("duration below configured minimum")
	ErrDurationTooLong   = errors.New("duration above configured maximum")
)

// TimeWindow is a half-open interval [start, end) in UTC.
type TimeWindow struct {
	start time.Time
	end   time.Time
}

func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	start = start.UTC()
	end = end.UTC()
	if !start.Before(end) {
		return TimeWindow{}, ErrStartNotBeforeEnd
	}
	return TimeWindow{start: start, end: end}, nil
}

func (w TimeWindow) Start() time.Time {
	return w.start
}

func (w TimeWindow) End() time.Time {
	return w.end
}

func (w TimeWindow) Duration() time.Duration {
	return w.end.Sub(w.start)
}

// Overlaps implements the half-open interval test: two windows conflict when
// each starts before the other ends.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return other.end.After(w.start) && other.start.Before(w.end)
}

func (w TimeWindow) ToTstzrange() string {
	return fmt.Sprintf("[%s,%s)", w.start.Format(time.RFC3339), w.end.Format(time.RFC3339))
}

// Policy bounds accepted booking durations.
type Policy struct {
	MinDuration time.Duration
	MaxDuration time.Duration
}

func (p Policy) Validate(w TimeWindow) error {
	d := w.Duration()
	if p.MinDuration > 0 && d < p.MinDuration {
		return ErrDurationTooShort
	}
	if p.MaxDuration > 0 && d > p.MaxDuration {
		return ErrDurationTooLong
	}
	return nil
}

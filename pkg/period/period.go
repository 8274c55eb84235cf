package period

import (
	"fmt"
	"time"
)

// Type identifies the calendar granularity a limit applies over.
type Type string

const (
	Daily   Type = "daily"
	Monthly Type = "monthly"
	Yearly  Type = "yearly"
)

// Valid reports whether t is a known period type.
func (t Type) Valid() bool {
	switch t {
	case Daily, Monthly, Yearly:
		return true
	}
	return false
}

// Window is a half-open UTC time range [Start, End).
type Window struct {
	Type  Type
	Start time.Time
	End   time.Time
}

// Resolve returns the window of the given type containing asOf.
// It is a pure function of its arguments; no hidden clock state.
func Resolve(t Type, asOf time.Time) Window {
	u := asOf.UTC()
	switch t {
	case Daily:
		start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
		return Window{Type: Daily, Start: start, End: start.AddDate(0, 0, 1)}
	case Yearly:
		start := time.Date(u.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return Window{Type: Yearly, Start: start, End: start.AddDate(1, 0, 0)}
	default: // Monthly is the common case for metered resources
		start := time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Window{Type: Monthly, Start: start, End: start.AddDate(0, 1, 0)}
	}
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts time.Time) bool {
	u := ts.UTC()
	return !u.Before(w.Start) && u.Before(w.End)
}

// Closed reports whether the window has ended as of the given time.
func (w Window) Closed(asOf time.Time) bool {
	return !asOf.UTC().Before(w.End)
}

// Key returns the canonical string form used to address counters,
// e.g. "monthly:2026-08-01". Stable across processes.
func (w Window) Key() string {
	return fmt.Sprintf("%s:%s", w.Type, w.Start.Format("2006-01-02"))
}

// Previous returns the window of the same type immediately before w.
func (w Window) Previous() Window {
	return Resolve(w.Type, w.Start.Add(-time.Second))
}

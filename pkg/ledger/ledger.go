package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scribeworks/quotakit/pkg/period"
	"github.com/scribeworks/quotakit/pkg/plan"
)

// Key addresses exactly one usage counter: one subject, one resource,
// one period window. Counters are created lazily on first increment; an
// old window's counter becomes unreachable once the resolved window
// advances, so rollover needs no reset write.
type Key struct {
	SubjectID uuid.UUID
	Resource  plan.Resource
	Window    period.Window
}

// String returns the canonical storage key,
// e.g. "3f2a…:transcriptions:monthly:2026-08-01".
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.SubjectID, k.Resource, k.Window.Key())
}

// Counter is one usage row. Consumed is monotonically non-decreasing
// within the window; PeakConcurrent is a high-water mark for resources
// where usage means simultaneous in-flight jobs.
type Counter struct {
	SubjectID      uuid.UUID
	Resource       plan.Resource
	PeriodType     period.Type
	PeriodStart    time.Time
	PeriodEnd      time.Time
	Consumed       Quantity
	PeakConcurrent int64
	UpdatedAt      time.Time
}

// Closed reports whether the counter's window has ended as of the given time.
func (c Counter) Closed(asOf time.Time) bool {
	return !asOf.UTC().Before(c.PeriodEnd)
}

// Ledger is the counter store. Increment and SetPeakConcurrent must be
// linearizable per key: a transactional read-modify-write or server-side
// atomic, never an application-level read-then-write. Peek never mutates.
type Ledger interface {
	// Increment atomically adds delta to the counter and returns the new
	// total. It is the only write path for consumption.
	Increment(ctx context.Context, key Key, delta Quantity) (Quantity, error)

	// Peek returns the current consumption without modifying it.
	// A never-written key reads as zero.
	Peek(ctx context.Context, key Key) (Quantity, error)

	// SetPeakConcurrent atomically stores max(current, candidate) and
	// returns the resulting high-water mark.
	SetPeakConcurrent(ctx context.Context, key Key, candidate int64) (int64, error)

	// History returns the subject's counters for a resource and period
	// type with PeriodStart >= since, oldest first. Backends that cannot
	// serve history return ErrHistoryUnavailable.
	History(ctx context.Context, subjectID uuid.UUID, res plan.Resource, t period.Type, since time.Time) ([]Counter, error)
}

// OverageFor computes the billable overage of a closed-period counter
// against the included plan limit: max(0, consumed - included). Money is
// the billing system's business; this only reports unit counts.
func OverageFor(c Counter, included plan.Limit) int64 {
	if included.IsUnlimited() {
		return 0
	}
	over := c.Consumed.Ceil() - included.Value()
	if over < 0 {
		return 0
	}
	return over
}

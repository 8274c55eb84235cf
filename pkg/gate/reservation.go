package gate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scribeworks/quotakit/pkg/ledger"
	"github.com/scribeworks/quotakit/pkg/period"
	"github.com/scribeworks/quotakit/pkg/plan"
)

// slotTable tracks in-flight job reservations per subject. Unlike the
// two-phase check/record protocol, acquisition debits the slot before the
// job starts, so the concurrentJobs limit is a hard cap: true concurrency
// can never exceed it.
type slotTable struct {
	mu     sync.Mutex
	active map[uuid.UUID]int64
}

func newSlotTable() *slotTable {
	return &slotTable{active: make(map[uuid.UUID]int64)}
}

// acquire bumps the subject's in-flight count if the limit allows it and
// returns the new count.
func (t *slotTable) acquire(subjectID uuid.UUID, limit plan.Limit) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.active[subjectID] + 1
	if !limit.Allows(next) {
		return t.active[subjectID], false
	}
	t.active[subjectID] = next
	return next, true
}

func (t *slotTable) release(subjectID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := t.active[subjectID]; n > 1 {
		t.active[subjectID] = n - 1
	} else {
		delete(t.active, subjectID)
	}
}

// Reservation is a held concurrency slot. Release it when the job
// completes; the TTL timer releases abandoned slots so a crashed worker
// cannot leak capacity forever.
type Reservation struct {
	ID        uuid.UUID
	SubjectID uuid.UUID
	Acquired  time.Time

	once  sync.Once
	timer *time.Timer
	table *slotTable
}

// Release returns the slot. Safe to call multiple times and safe to race
// with the TTL timer.
func (r *Reservation) Release() {
	r.once.Do(func() {
		if r.timer != nil {
			r.timer.Stop()
		}
		r.table.release(r.SubjectID)
	})
}

// DefaultReservationTTL bounds how long an unreleased slot is held.
const DefaultReservationTTL = 2 * time.Hour

// AcquireJobSlot reserves a concurrent-job slot for the subject. The
// decision reports denial the same way CheckQuota does; on admit the
// returned reservation must be released when the job finishes. The
// high-water mark is recorded in the ledger so billing and analytics see
// true peak concurrency.
func (s *Service) AcquireJobSlot(ctx context.Context, subjectID uuid.UUID, asOf time.Time) (*Reservation, Decision, error) {
	res := plan.ResourceConcurrentJobs

	eff, err := s.effectiveLimits(ctx, subjectID, asOf)
	if err != nil {
		d, err := s.failClosed(ctx, subjectID, res, err)
		return nil, d, err
	}

	limit := eff.Limits.Get(res)
	if limit.IsDisabled() {
		return nil, Decision{
			Allowed:    false,
			Reason:     ReasonFeatureDisabled,
			Resource:   res,
			Limit:      limit,
			Suggestion: s.upgradeSuggestion(res, 1),
		}, nil
	}

	count, ok := s.slots.acquire(subjectID, limit)
	if !ok {
		window := period.Resolve(period.Monthly, asOf)
		return nil, Decision{
			Allowed:    false,
			Reason:     ReasonQuotaExceeded,
			Resource:   res,
			Limit:      limit,
			Remaining:  0,
			PeriodEnd:  window.End,
			Suggestion: s.denialSuggestion(&WindowStatus{Resource: res, Consumed: ledger.QuantityFromInt(count), PeriodEnd: window.End}, ledger.QuantityFromInt(1)),
		}, nil
	}

	// Record the high-water mark; a failure here releases the slot and
	// fails closed so concurrency never goes unmetered.
	key := ledger.Key{SubjectID: subjectID, Resource: res, Window: period.Resolve(period.Monthly, asOf)}
	if _, err := s.ledger.SetPeakConcurrent(ctx, key, count); err != nil {
		s.slots.release(subjectID)
		d, err := s.failClosed(ctx, subjectID, res, err)
		return nil, d, err
	}

	r := &Reservation{
		ID:        uuid.New(),
		SubjectID: subjectID,
		Acquired:  asOf.UTC(),
		table:     s.slots,
	}
	r.timer = time.AfterFunc(DefaultReservationTTL, r.Release)

	remaining := ledger.QuantityFromInt(-1)
	if !limit.IsUnlimited() {
		remaining = ledger.QuantityFromInt(limit.Value() - count)
	}

	return r, Decision{
		Allowed:   true,
		Resource:  res,
		Limit:     limit,
		Remaining: remaining,
	}, nil
}

// ActiveJobs reports the subject's currently reserved slot count.
func (s *Service) ActiveJobs(subjectID uuid.UUID) int64 {
	s.slots.mu.Lock()
	defer s.slots.mu.Unlock()
	return s.slots.active[subjectID]
}

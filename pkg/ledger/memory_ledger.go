package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scribeworks/quotakit/pkg/period"
	"github.com/scribeworks/quotakit/pkg/plan"
)

// MemoryLedger implements Ledger with in-process storage. Suitable for
// tests and single-node deployments; durable backends should be used when
// correctness must survive restarts or horizontal scaling.
type MemoryLedger struct {
	mu       sync.Mutex
	counters map[string]*Counter

	retention       time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

// MemoryLedgerOption configures a MemoryLedger.
type MemoryLedgerOption func(*MemoryLedger)

// WithCleanupInterval sets how often closed-period counters are swept.
// Set to 0 to disable the background sweep.
func WithCleanupInterval(interval time.Duration) MemoryLedgerOption {
	return func(ml *MemoryLedger) {
		ml.cleanupInterval = interval
	}
}

// WithRetention sets how long closed-period counters are kept for history
// queries before the sweep reclaims them.
func WithRetention(retention time.Duration) MemoryLedgerOption {
	return func(ml *MemoryLedger) {
		ml.retention = retention
	}
}

// NewMemoryLedger creates an in-memory ledger with best-effort cleanup of
// long-closed periods.
func NewMemoryLedger(opts ...MemoryLedgerOption) *MemoryLedger {
	ml := &MemoryLedger{
		counters:        make(map[string]*Counter),
		retention:       90 * 24 * time.Hour,
		cleanupInterval: time.Hour,
		stopCleanup:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ml)
	}

	if ml.cleanupInterval > 0 {
		go ml.cleanup()
	}

	return ml
}

// Increment atomically adds delta and returns the new total.
func (ml *MemoryLedger) Increment(ctx context.Context, key Key, delta Quantity) (Quantity, error) {
	if delta < 0 {
		return 0, ErrNegativeDelta
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()

	c := ml.counter(key)
	c.Consumed += delta
	c.UpdatedAt = time.Now().UTC()
	return c.Consumed, nil
}

// Peek returns the current consumption without modifying it.
func (ml *MemoryLedger) Peek(ctx context.Context, key Key) (Quantity, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if c, exists := ml.counters[key.String()]; exists {
		return c.Consumed, nil
	}
	return 0, nil
}

// SetPeakConcurrent stores max(current, candidate) atomically.
func (ml *MemoryLedger) SetPeakConcurrent(ctx context.Context, key Key, candidate int64) (int64, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	c := ml.counter(key)
	if candidate > c.PeakConcurrent {
		c.PeakConcurrent = candidate
		c.UpdatedAt = time.Now().UTC()
	}
	return c.PeakConcurrent, nil
}

// History returns counters for the subject/resource/period type with
// PeriodStart >= since, oldest first.
func (ml *MemoryLedger) History(ctx context.Context, subjectID uuid.UUID, res plan.Resource, t period.Type, since time.Time) ([]Counter, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	var out []Counter
	for _, c := range ml.counters {
		if c.SubjectID == subjectID && c.Resource == res && c.PeriodType == t && !c.PeriodStart.Before(since) {
			out = append(out, *c)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].PeriodStart.Before(out[j].PeriodStart)
	})
	return out, nil
}

// counter returns the row for key, lazily creating it. Callers must hold mu.
func (ml *MemoryLedger) counter(key Key) *Counter {
	ks := key.String()
	c, exists := ml.counters[ks]
	if !exists {
		c = &Counter{
			SubjectID:   key.SubjectID,
			Resource:    key.Resource,
			PeriodType:  key.Window.Type,
			PeriodStart: key.Window.Start,
			PeriodEnd:   key.Window.End,
		}
		ml.counters[ks] = c
	}
	return c
}

// cleanup sweeps counters whose window closed past the retention horizon.
func (ml *MemoryLedger) cleanup() {
	ticker := time.NewTicker(ml.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ml.removeExpired()
		case <-ml.stopCleanup:
			return
		}
	}
}

func (ml *MemoryLedger) removeExpired() {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	horizon := time.Now().UTC().Add(-ml.retention)
	for key, c := range ml.counters {
		if c.PeriodEnd.Before(horizon) {
			delete(ml.counters, key)
		}
	}
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (ml *MemoryLedger) Close() {
	ml.closeOnce.Do(func() {
		close(ml.stopCleanup)
	})
}

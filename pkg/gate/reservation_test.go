package gate_test

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/quotakit/pkg/gate"
	"github.com/scribeworks/quotakit/pkg/ledger"
	"github.com/scribeworks/quotakit/pkg/period"
	"github.com/scribeworks/quotakit/pkg/plan"
)

func TestService_AcquireJobSlot(t *testing.T) {
	t.Parallel()

	t.Run("hard cap on concurrency", func(t *testing.T) {
		t.Parallel()

		// Free tier allows 2 concurrent jobs.
		f := newFixture(t, "free", nil)
		subjectID := uuid.New()

		r1, d1, err := f.svc.AcquireJobSlot(f.ctx, subjectID, asOf)
		require.NoError(t, err)
		require.True(t, d1.Allowed)
		require.NotNil(t, r1)

		r2, d2, err := f.svc.AcquireJobSlot(f.ctx, subjectID, asOf)
		require.NoError(t, err)
		require.True(t, d2.Allowed)
		assert.Equal(t, ledger.Quantity(0), d2.Remaining)

		// Third slot is denied outright, not overshot.
		r3, d3, err := f.svc.AcquireJobSlot(f.ctx, subjectID, asOf)
		require.NoError(t, err)
		assert.False(t, d3.Allowed)
		assert.Equal(t, gate.ReasonQuotaExceeded, d3.Reason)
		assert.Nil(t, r3)
		assert.Equal(t, int64(2), f.svc.ActiveJobs(subjectID))

		// Releasing frees capacity for the next job.
		r1.Release()
		r4, d4, err := f.svc.AcquireJobSlot(f.ctx, subjectID, asOf)
		require.NoError(t, err)
		assert.True(t, d4.Allowed)

		r2.Release()
		r4.Release()
		assert.Equal(t, int64(0), f.svc.ActiveJobs(subjectID))
	})

	t.Run("release is idempotent", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, "free", nil)
		subjectID := uuid.New()

		r, d, err := f.svc.AcquireJobSlot(f.ctx, subjectID, asOf)
		require.NoError(t, err)
		require.True(t, d.Allowed)

		r.Release()
		r.Release()
		r.Release()
		assert.Equal(t, int64(0), f.svc.ActiveJobs(subjectID))
	})

	t.Run("records the peak high-water mark", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, "free", nil)
		subjectID := uuid.New()

		r1, _, err := f.svc.AcquireJobSlot(f.ctx, subjectID, asOf)
		require.NoError(t, err)
		r2, _, err := f.svc.AcquireJobSlot(f.ctx, subjectID, asOf)
		require.NoError(t, err)
		r1.Release()
		r2.Release()

		history, err := f.ledger.History(f.ctx, subjectID, plan.ResourceConcurrentJobs, period.Monthly, asOf.AddDate(0, -1, 0))
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, int64(2), history[0].PeakConcurrent, "peak survives release")
	})

	t.Run("concurrent acquisition never exceeds the cap", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, "pro", nil) // 5 concurrent jobs
		subjectID := uuid.New()

		const attempts = 40
		var admitted sync.Map
		var wg sync.WaitGroup

		for i := range attempts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r, d, err := f.svc.AcquireJobSlot(f.ctx, subjectID, asOf)
				assert.NoError(t, err)
				if d.Allowed {
					admitted.Store(i, r)
				}
			}()
		}
		wg.Wait()

		count := 0
		admitted.Range(func(_, _ any) bool { count++; return true })
		assert.Equal(t, 5, count)
		assert.Equal(t, int64(5), f.svc.ActiveJobs(subjectID))

		admitted.Range(func(_, v any) bool { v.(*gate.Reservation).Release(); return true })
		assert.Equal(t, int64(0), f.svc.ActiveJobs(subjectID))
	})

	t.Run("slot failure on peak recording fails closed", func(t *testing.T) {
		t.Parallel()

		ml := ledger.NewMemoryLedger(ledger.WithCleanupInterval(0))
		t.Cleanup(ml.Close)
		f := newFixture(t, "free", &flakyLedger{inner: ml, failures: 100})
		subjectID := uuid.New()

		r, d, err := f.svc.AcquireJobSlot(f.ctx, subjectID, asOf)
		assert.ErrorIs(t, err, gate.ErrStorageUnavailable)
		assert.False(t, d.Allowed)
		assert.Nil(t, r)
		assert.Equal(t, int64(0), f.svc.ActiveJobs(subjectID), "failed acquisition leaks no slot")
	})
}

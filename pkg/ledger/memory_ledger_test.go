package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/quotakit/pkg/ledger"
	"github.com/scribeworks/quotakit/pkg/period"
	"github.com/scribeworks/quotakit/pkg/plan"
)

func monthlyKey(subjectID uuid.UUID, res plan.Resource, asOf time.Time) ledger.Key {
	return ledger.Key{
		SubjectID: subjectID,
		Resource:  res,
		Window:    period.Resolve(period.Monthly, asOf),
	}
}

func TestMemoryLedger_Increment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	asOf := time.Date(2026, time.August, 10, 12, 0, 0, 0, time.UTC)

	t.Run("accumulates and returns the new total", func(t *testing.T) {
		t.Parallel()

		ml := ledger.NewMemoryLedger(ledger.WithCleanupInterval(0))
		defer ml.Close()
		key := monthlyKey(uuid.New(), plan.ResourceTranscriptions, asOf)

		total, err := ml.Increment(ctx, key, ledger.QuantityFromInt(3))
		require.NoError(t, err)
		assert.Equal(t, ledger.QuantityFromInt(3), total)

		total, err = ml.Increment(ctx, key, ledger.QuantityFromFloat(1.5))
		require.NoError(t, err)
		assert.Equal(t, ledger.QuantityFromFloat(4.5), total)
	})

	t.Run("rejects negative deltas", func(t *testing.T) {
		t.Parallel()

		ml := ledger.NewMemoryLedger(ledger.WithCleanupInterval(0))
		defer ml.Close()
		key := monthlyKey(uuid.New(), plan.ResourceTranscriptions, asOf)

		_, err := ml.Increment(ctx, key, ledger.QuantityFromInt(-1))
		assert.ErrorIs(t, err, ledger.ErrNegativeDelta)
	})

	t.Run("zero delta creates the counter without consuming", func(t *testing.T) {
		t.Parallel()

		ml := ledger.NewMemoryLedger(ledger.WithCleanupInterval(0))
		defer ml.Close()
		key := monthlyKey(uuid.New(), plan.ResourceExports, asOf)

		total, err := ml.Increment(ctx, key, 0)
		require.NoError(t, err)
		assert.Equal(t, ledger.Quantity(0), total)
	})

	t.Run("concurrent increments never lose updates", func(t *testing.T) {
		t.Parallel()

		ml := ledger.NewMemoryLedger(ledger.WithCleanupInterval(0))
		defer ml.Close()
		key := monthlyKey(uuid.New(), plan.ResourceTranscriptions, asOf)

		const workers = 50
		const perWorker = 20

		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range perWorker {
					_, err := ml.Increment(ctx, key, ledger.QuantityFromInt(1))
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		total, err := ml.Peek(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, ledger.QuantityFromInt(workers*perWorker), total)
	})
}

func TestMemoryLedger_Peek(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	asOf := time.Date(2026, time.August, 10, 12, 0, 0, 0, time.UTC)

	t.Run("unwritten key reads as zero", func(t *testing.T) {
		t.Parallel()

		ml := ledger.NewMemoryLedger(ledger.WithCleanupInterval(0))
		defer ml.Close()

		total, err := ml.Peek(ctx, monthlyKey(uuid.New(), plan.ResourceExports, asOf))
		require.NoError(t, err)
		assert.Equal(t, ledger.Quantity(0), total)
	})

	t.Run("peek does not mutate", func(t *testing.T) {
		t.Parallel()

		ml := ledger.NewMemoryLedger(ledger.WithCleanupInterval(0))
		defer ml.Close()
		key := monthlyKey(uuid.New(), plan.ResourceExports, asOf)

		_, err := ml.Increment(ctx, key, ledger.QuantityFromInt(4))
		require.NoError(t, err)

		for range 5 {
			total, err := ml.Peek(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, ledger.QuantityFromInt(4), total)
		}
	})
}

func TestMemoryLedger_PeriodIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ml := ledger.NewMemoryLedger(ledger.WithCleanupInterval(0))
	defer ml.Close()

	subjectID := uuid.New()
	august := monthlyKey(subjectID, plan.ResourceTranscriptions, time.Date(2026, time.August, 31, 23, 0, 0, 0, time.UTC))
	september := monthlyKey(subjectID, plan.ResourceTranscriptions, time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC))

	_, err := ml.Increment(ctx, august, ledger.QuantityFromInt(99))
	require.NoError(t, err)

	// The new window starts from zero; the old one keeps its total.
	total, err := ml.Peek(ctx, september)
	require.NoError(t, err)
	assert.Equal(t, ledger.Quantity(0), total)

	total, err = ml.Peek(ctx, august)
	require.NoError(t, err)
	assert.Equal(t, ledger.QuantityFromInt(99), total)
}

func TestMemoryLedger_SetPeakConcurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ml := ledger.NewMemoryLedger(ledger.WithCleanupInterval(0))
	defer ml.Close()
	key := monthlyKey(uuid.New(), plan.ResourceConcurrentJobs, time.Now())

	peak, err := ml.SetPeakConcurrent(ctx, key, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), peak)

	// A lower candidate never shrinks the high-water mark.
	peak, err = ml.SetPeakConcurrent(ctx, key, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), peak)

	peak, err = ml.SetPeakConcurrent(ctx, key, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), peak)
}

func TestMemoryLedger_History(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ml := ledger.NewMemoryLedger(ledger.WithCleanupInterval(0))
	defer ml.Close()
	subjectID := uuid.New()

	months := []time.Time{
		time.Date(2026, time.May, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.July, 15, 0, 0, 0, 0, time.UTC),
	}
	for i, m := range months {
		_, err := ml.Increment(ctx, monthlyKey(subjectID, plan.ResourceTranscriptions, m), ledger.QuantityFromInt(int64(i+1)*10))
		require.NoError(t, err)
	}

	// Noise from another subject and resource must not leak in.
	_, err := ml.Increment(ctx, monthlyKey(uuid.New(), plan.ResourceTranscriptions, months[0]), ledger.QuantityFromInt(500))
	require.NoError(t, err)
	_, err = ml.Increment(ctx, monthlyKey(subjectID, plan.ResourceExports, months[0]), ledger.QuantityFromInt(500))
	require.NoError(t, err)

	since := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	history, err := ml.History(ctx, subjectID, plan.ResourceTranscriptions, period.Monthly, since)
	require.NoError(t, err)

	require.Len(t, history, 2)
	assert.Equal(t, ledger.QuantityFromInt(20), history[0].Consumed)
	assert.Equal(t, ledger.QuantityFromInt(30), history[1].Consumed)
	assert.True(t, history[0].PeriodStart.Before(history[1].PeriodStart), "oldest first")
}

func TestOverageFor(t *testing.T) {
	t.Parallel()

	counter := ledger.Counter{Consumed: ledger.QuantityFromFloat(105.3)}

	assert.Equal(t, int64(6), ledger.OverageFor(counter, plan.Bounded(100)), "fractional overage rounds up")
	assert.Equal(t, int64(0), ledger.OverageFor(counter, plan.Bounded(200)))
	assert.Equal(t, int64(0), ledger.OverageFor(counter, plan.Unlimited))
}

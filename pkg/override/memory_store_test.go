package override_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/quotakit/pkg/override"
	"github.com/scribeworks/quotakit/pkg/plan"
)

func TestMemoryStore_Create(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("assigns ID and defaults to pending", func(t *testing.T) {
		t.Parallel()

		ms := override.NewMemoryStore()
		o := &override.Override{
			WorkspaceID:   uuid.New(),
			ContractStart: time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC),
			Limits:        plan.LimitSet{plan.ResourceTranscriptions: plan.Bounded(5000)},
		}

		require.NoError(t, ms.Create(ctx, o))
		assert.NotEqual(t, uuid.Nil, o.ID)
		assert.Equal(t, override.StatusPending, o.Status)

		stored, err := ms.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, o.WorkspaceID, stored.WorkspaceID)
	})

	t.Run("rejects pre-approved creation", func(t *testing.T) {
		t.Parallel()

		ms := override.NewMemoryStore()
		o := &override.Override{
			WorkspaceID:   uuid.New(),
			Status:        override.StatusApproved,
			ContractStart: time.Now(),
		}
		assert.ErrorIs(t, ms.Create(ctx, o), override.ErrInvalidStatus)
	})

	t.Run("rejects inverted contract window", func(t *testing.T) {
		t.Parallel()

		ms := override.NewMemoryStore()
		start := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
		end := start.Add(-time.Hour)
		o := &override.Override{
			WorkspaceID:   uuid.New(),
			ContractStart: start,
			ContractEnd:   &end,
		}
		assert.ErrorIs(t, ms.Create(ctx, o), override.ErrInvalidContractWindow)
	})
}

func TestMemoryStore_SetStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	newPending := func(t *testing.T, ms *override.MemoryStore) *override.Override {
		t.Helper()
		o := &override.Override{
			WorkspaceID:   uuid.New(),
			ContractStart: time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC),
		}
		require.NoError(t, ms.Create(ctx, o))
		return o
	}

	t.Run("approve stamps ApprovedAt", func(t *testing.T) {
		t.Parallel()

		ms := override.NewMemoryStore()
		o := newPending(t, ms)
		at := time.Date(2026, time.August, 2, 9, 0, 0, 0, time.UTC)

		require.NoError(t, ms.SetStatus(ctx, o.ID, override.StatusApproved, at))

		stored, err := ms.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, override.StatusApproved, stored.Status)
		require.NotNil(t, stored.ApprovedAt)
		assert.Equal(t, at, *stored.ApprovedAt)
	})

	t.Run("decided overrides cannot transition again", func(t *testing.T) {
		t.Parallel()

		ms := override.NewMemoryStore()
		o := newPending(t, ms)
		require.NoError(t, ms.SetStatus(ctx, o.ID, override.StatusRejected, time.Now()))

		err := ms.SetStatus(ctx, o.ID, override.StatusApproved, time.Now())
		assert.ErrorIs(t, err, override.ErrInvalidTransition)
	})

	t.Run("cannot transition to pending", func(t *testing.T) {
		t.Parallel()

		ms := override.NewMemoryStore()
		o := newPending(t, ms)
		err := ms.SetStatus(ctx, o.ID, override.StatusPending, time.Now())
		assert.ErrorIs(t, err, override.ErrInvalidStatus)
	})

	t.Run("missing override", func(t *testing.T) {
		t.Parallel()

		ms := override.NewMemoryStore()
		err := ms.SetStatus(ctx, uuid.New(), override.StatusApproved, time.Now())
		assert.ErrorIs(t, err, override.ErrOverrideNotFound)
	})
}

func TestOverride_ActiveAt(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)

	t.Run("approved inside window", func(t *testing.T) {
		t.Parallel()

		o := override.Override{Status: override.StatusApproved, ContractStart: start, ContractEnd: &end}
		assert.True(t, o.ActiveAt(start))
		assert.True(t, o.ActiveAt(end.Add(-time.Second)))
	})

	t.Run("window is half open", func(t *testing.T) {
		t.Parallel()

		o := override.Override{Status: override.StatusApproved, ContractStart: start, ContractEnd: &end}
		assert.False(t, o.ActiveAt(end))
		assert.False(t, o.ActiveAt(start.Add(-time.Second)))
	})

	t.Run("pending never active", func(t *testing.T) {
		t.Parallel()

		o := override.Override{Status: override.StatusPending, ContractStart: start}
		assert.False(t, o.ActiveAt(start.Add(time.Hour)))
	})

	t.Run("open ended contract", func(t *testing.T) {
		t.Parallel()

		o := override.Override{Status: override.StatusApproved, ContractStart: start}
		assert.True(t, o.ActiveAt(start.AddDate(10, 0, 0)))
	})
}

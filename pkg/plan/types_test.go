package plan_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/scribeworks/quotakit/pkg/plan"
)

func TestLimit(t *testing.T) {
	t.Parallel()

	t.Run("zero value is disabled", func(t *testing.T) {
		t.Parallel()

		var l plan.Limit
		assert.True(t, l.IsDisabled())
		assert.False(t, l.IsUnlimited())
		assert.False(t, l.Allows(1))
	})

	t.Run("unlimited allows any total", func(t *testing.T) {
		t.Parallel()

		assert.True(t, plan.Unlimited.Allows(0))
		assert.True(t, plan.Unlimited.Allows(1<<40))
	})

	t.Run("bounded allows up to the cap inclusive", func(t *testing.T) {
		t.Parallel()

		l := plan.Bounded(10)
		assert.True(t, l.Allows(10))
		assert.False(t, l.Allows(11))
	})

	t.Run("bounded collapses non-positive caps to disabled", func(t *testing.T) {
		t.Parallel()

		assert.True(t, plan.Bounded(0).IsDisabled())
		assert.True(t, plan.Bounded(-5).IsDisabled())
	})

	t.Run("sentinel round trip", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, plan.Unlimited, plan.FromSentinel(-1))
		assert.Equal(t, plan.Unlimited, plan.FromSentinel(-99))
		assert.Equal(t, plan.Disabled, plan.FromSentinel(0))
		assert.Equal(t, plan.Bounded(42), plan.FromSentinel(42))
	})

	t.Run("string form", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "unlimited", plan.Unlimited.String())
		assert.Equal(t, "disabled", plan.Disabled.String())
		assert.Equal(t, "25", plan.Bounded(25).String())
	})
}

func TestLimit_JSON(t *testing.T) {
	t.Parallel()

	t.Run("marshals to the integer sentinel", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(map[string]plan.Limit{
			"a": plan.Unlimited,
			"b": plan.Disabled,
			"c": plan.Bounded(7),
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":-1,"b":0,"c":7}`, string(data))
	})

	t.Run("unmarshals from the integer sentinel", func(t *testing.T) {
		t.Parallel()

		var l plan.Limit
		require.NoError(t, json.Unmarshal([]byte("-1"), &l))
		assert.True(t, l.IsUnlimited())

		require.NoError(t, json.Unmarshal([]byte("150"), &l))
		assert.Equal(t, int64(150), l.Value())
	})

	t.Run("rejects garbage", func(t *testing.T) {
		t.Parallel()

		var l plan.Limit
		assert.Error(t, json.Unmarshal([]byte(`"many"`), &l))
	})
}

func TestLimit_YAML(t *testing.T) {
	t.Parallel()

	var set plan.LimitSet
	err := yaml.Unmarshal([]byte("transcriptions: -1\nexports: 20\nvoiceSynthesis: 0\n"), &set)
	require.NoError(t, err)

	assert.True(t, set.Get(plan.ResourceTranscriptions).IsUnlimited())
	assert.Equal(t, int64(20), set.Get(plan.ResourceExports).Value())
	assert.True(t, set.Get(plan.ResourceVoiceSynthesis).IsDisabled())
}

func TestLimitSet_Get(t *testing.T) {
	t.Parallel()

	set := plan.LimitSet{plan.ResourceExports: plan.Bounded(5)}

	// Missing entries read as disabled so unknown resources fail closed.
	assert.True(t, set.Get(plan.ResourceTranscriptions).IsDisabled())
	assert.True(t, set.Get(plan.Resource("made-up")).IsDisabled())
	assert.Equal(t, int64(5), set.Get(plan.ResourceExports).Value())
}

func TestLimitSet_AllUnlimited(t *testing.T) {
	t.Parallel()

	t.Run("empty set is not unlimited", func(t *testing.T) {
		t.Parallel()
		assert.False(t, plan.LimitSet{}.AllUnlimited())
	})

	t.Run("one bounded resource breaks it", func(t *testing.T) {
		t.Parallel()

		set := plan.LimitSet{
			plan.ResourceTranscriptions: plan.Unlimited,
			plan.ResourceExports:        plan.Bounded(10),
		}
		assert.False(t, set.AllUnlimited())
	})

	t.Run("all unlimited", func(t *testing.T) {
		t.Parallel()

		set := plan.LimitSet{
			plan.ResourceTranscriptions: plan.Unlimited,
			plan.ResourceExports:        plan.Unlimited,
		}
		assert.True(t, set.AllUnlimited())
	})
}

func TestResource_Valid(t *testing.T) {
	t.Parallel()

	for _, res := range plan.KnownResources {
		assert.True(t, res.Valid(), res)
	}
	assert.False(t, plan.Resource("gpuHours").Valid())
}

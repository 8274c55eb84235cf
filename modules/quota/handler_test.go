package quota_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/quotakit/modules/quota"
	"github.com/scribeworks/quotakit/pkg/gate"
	"github.com/scribeworks/quotakit/pkg/ledger"
	"github.com/scribeworks/quotakit/pkg/override"
	"github.com/scribeworks/quotakit/pkg/period"
	"github.com/scribeworks/quotakit/pkg/plan"
	"github.com/scribeworks/quotakit/pkg/recommend"
)

var frozen = time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC)

func apiCatalog(t *testing.T) *plan.Catalog {
	t.Helper()

	c, err := plan.NewCatalog(context.Background(), plan.NewInMemSource(
		plan.Plan{
			ID:       "free",
			Name:     "Free",
			Interval: plan.BillingIntervalNone,
			Public:   true,
			Limits: plan.LimitSet{
				plan.ResourceTranscriptions: plan.Bounded(10),
				plan.ResourceFilesDaily:     plan.Bounded(10),
				plan.ResourceFilesMonthly:   plan.Bounded(100),
				plan.ResourceVoiceSynthesis: plan.Disabled,
			},
		},
	))
	require.NoError(t, err)
	return c
}

type apiFixture struct {
	srv    http.Handler
	ledger *ledger.MemoryLedger
	recs   *recommend.MemoryStore
}

func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()

	catalog := apiCatalog(t)
	resolver := override.NewResolver(catalog, override.NewMemoryStore())
	ml := ledger.NewMemoryLedger(ledger.WithCleanupInterval(0))
	t.Cleanup(ml.Close)
	recs := recommend.NewMemoryStore()

	svc := gate.New(resolver, ml, catalog)
	h := quota.NewHandler(svc, recs, quota.WithClock(func() time.Time { return frozen }))

	return apiFixture{srv: quota.Router(h), ledger: ml, recs: recs}
}

// do issues a request with the subject's plan resolved to "free".
func (f apiFixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(override.SetPlanIDToContext(req.Context(), "free"))

	rr := httptest.NewRecorder()
	f.srv.ServeHTTP(rr, req)
	return rr
}

// decode unwraps the data payload of the response envelope into v.
func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()

	var env struct {
		Data  json.RawMessage `json:"data"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	if v != nil {
		require.NotNil(t, env.Data)
		require.NoError(t, json.Unmarshal(env.Data, v))
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()

	var env struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	return env.Error.Code
}

func TestHandler_GetQuota(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	subjectID := uuid.New()

	rr := f.do(t, http.MethodGet, "/quota/"+subjectID.String()+"/transcriptions", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var d gate.Decision
	decode(t, rr, &d)
	assert.True(t, d.Allowed)
	assert.Equal(t, plan.ResourceTranscriptions, d.Resource)
	assert.Equal(t, "10", d.Remaining.String())

	// Probing is free: a second probe sees the same headroom.
	rr = f.do(t, http.MethodGet, "/quota/"+subjectID.String()+"/transcriptions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	decode(t, rr, &d)
	assert.Equal(t, "10", d.Remaining.String())
}

func TestHandler_CheckQuota(t *testing.T) {
	t.Parallel()

	t.Run("allowed", func(t *testing.T) {
		t.Parallel()

		f := newAPIFixture(t)
		rr := f.do(t, http.MethodPost, "/quota/"+uuid.NewString()+"/transcriptions/check", `{"requestedQty": 3}`)
		require.Equal(t, http.StatusOK, rr.Code)

		var d gate.Decision
		decode(t, rr, &d)
		assert.True(t, d.Allowed)
	})

	t.Run("denial is a 200, not an error", func(t *testing.T) {
		t.Parallel()

		f := newAPIFixture(t)
		subjectID := uuid.New()

		key := ledger.Key{
			SubjectID: subjectID,
			Resource:  plan.ResourceTranscriptions,
			Window:    period.Resolve(period.Monthly, frozen),
		}
		_, err := f.ledger.Increment(context.Background(), key, ledger.QuantityFromInt(10))
		require.NoError(t, err)

		rr := f.do(t, http.MethodPost, "/quota/"+subjectID.String()+"/transcriptions/check", `{"requestedQty": 1}`)
		require.Equal(t, http.StatusOK, rr.Code)

		var d gate.Decision
		decode(t, rr, &d)
		assert.False(t, d.Allowed)
		assert.Equal(t, gate.ReasonQuotaExceeded, d.Reason)
	})

	t.Run("disabled feature still yields a decision", func(t *testing.T) {
		t.Parallel()

		f := newAPIFixture(t)
		rr := f.do(t, http.MethodPost, "/quota/"+uuid.NewString()+"/voiceSynthesis/check", `{"requestedQty": 1}`)
		require.Equal(t, http.StatusOK, rr.Code)

		var d gate.Decision
		decode(t, rr, &d)
		assert.False(t, d.Allowed)
		assert.Equal(t, gate.ReasonFeatureDisabled, d.Reason)
	})

	t.Run("unknown resource is denied, not rejected", func(t *testing.T) {
		t.Parallel()

		f := newAPIFixture(t)
		rr := f.do(t, http.MethodPost, "/quota/"+uuid.NewString()+"/teleportation/check", `{"requestedQty": 1}`)
		require.Equal(t, http.StatusOK, rr.Code)

		var d gate.Decision
		decode(t, rr, &d)
		assert.False(t, d.Allowed)
		assert.Equal(t, gate.ReasonFeatureDisabled, d.Reason)
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()

		f := newAPIFixture(t)
		rr := f.do(t, http.MethodPost, "/quota/"+uuid.NewString()+"/transcriptions/check", `{"requestedQty": `)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "bad_request", errorCode(t, rr))
	})

	t.Run("negative quantity", func(t *testing.T) {
		t.Parallel()

		f := newAPIFixture(t)
		rr := f.do(t, http.MethodPost, "/quota/"+uuid.NewString()+"/transcriptions/check", `{"requestedQty": -1}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "bad_request", errorCode(t, rr))
	})

	t.Run("bad subject UUID", func(t *testing.T) {
		t.Parallel()

		f := newAPIFixture(t)
		rr := f.do(t, http.MethodPost, "/quota/not-a-uuid/transcriptions/check", `{"requestedQty": 1}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "bad_request", errorCode(t, rr))
	})
}

func TestHandler_RecordUsage(t *testing.T) {
	t.Parallel()

	t.Run("records and returns the running total", func(t *testing.T) {
		t.Parallel()

		f := newAPIFixture(t)
		subjectID := uuid.New()
		target := "/usage/" + subjectID.String() + "/transcriptions/record"

		rr := f.do(t, http.MethodPost, target, `{"actualQty": 2}`)
		require.Equal(t, http.StatusOK, rr.Code)

		var body struct {
			Consumed json.Number `json:"consumed"`
		}
		decode(t, rr, &body)
		assert.Equal(t, "2", body.Consumed.String())

		rr = f.do(t, http.MethodPost, target, `{"actualQty": 1.5}`)
		require.Equal(t, http.StatusOK, rr.Code)
		decode(t, rr, &body)
		assert.Equal(t, "3.50", body.Consumed.String())
	})

	t.Run("recording is never denied past the cap", func(t *testing.T) {
		t.Parallel()

		f := newAPIFixture(t)
		subjectID := uuid.New()
		target := "/usage/" + subjectID.String() + "/transcriptions/record"

		rr := f.do(t, http.MethodPost, target, `{"actualQty": 25}`)
		require.Equal(t, http.StatusOK, rr.Code)

		var body struct {
			Consumed json.Number `json:"consumed"`
		}
		decode(t, rr, &body)
		assert.Equal(t, "25", body.Consumed.String())
	})

	t.Run("negative quantity", func(t *testing.T) {
		t.Parallel()

		f := newAPIFixture(t)
		rr := f.do(t, http.MethodPost, "/usage/"+uuid.NewString()+"/transcriptions/record", `{"actualQty": -2}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "bad_request", errorCode(t, rr))
	})
}

func TestHandler_StorageFault(t *testing.T) {
	t.Parallel()

	catalog := apiCatalog(t)
	resolver := override.NewResolver(catalog, override.NewMemoryStore())
	svc := gate.New(resolver, brokenLedger{}, catalog)
	h := quota.NewHandler(svc, recommend.NewMemoryStore(), quota.WithClock(func() time.Time { return frozen }))
	f := apiFixture{srv: quota.Router(h)}

	rr := f.do(t, http.MethodPost, "/quota/"+uuid.NewString()+"/transcriptions/check", `{"requestedQty": 1}`)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "storage_unavailable", errorCode(t, rr))

	// The fail-closed decision still rides along with the error.
	var d gate.Decision
	decode(t, rr, &d)
	assert.False(t, d.Allowed)
	assert.Equal(t, gate.ReasonStorageUnavailable, d.Reason)
}

func TestHandler_Recommendations(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T, f apiFixture, subjectID uuid.UUID) *recommend.Recommendation {
		t.Helper()
		rec := &recommend.Recommendation{
			SubjectID:         subjectID,
			CurrentPlanID:     "free",
			RecommendedPlanID: "pro",
			Reason:            recommend.ReasonQuotaExceeded,
			Confidence:        0.7,
			Status:            recommend.StatusPending,
			CreatedAt:         frozen.AddDate(0, 0, -1),
			ExpiresAt:         frozen.AddDate(0, 0, 29),
		}
		require.NoError(t, f.recs.Save(context.Background(), rec))
		return rec
	}

	t.Run("fetch marks pending as viewed", func(t *testing.T) {
		t.Parallel()

		f := newAPIFixture(t)
		subjectID := uuid.New()
		seeded := seed(t, f, subjectID)

		rr := f.do(t, http.MethodGet, "/recommendations/"+subjectID.String(), "")
		require.Equal(t, http.StatusOK, rr.Code)

		var rec recommend.Recommendation
		decode(t, rr, &rec)
		assert.Equal(t, seeded.ID, rec.ID)
		assert.Equal(t, "pro", rec.RecommendedPlanID)
		assert.Equal(t, recommend.StatusViewed, rec.Status)

		stored, err := f.recs.CurrentFor(context.Background(), subjectID, frozen)
		require.NoError(t, err)
		assert.Equal(t, recommend.StatusViewed, stored.Status)
	})

	t.Run("no current recommendation", func(t *testing.T) {
		t.Parallel()

		f := newAPIFixture(t)
		rr := f.do(t, http.MethodGet, "/recommendations/"+uuid.NewString(), "")
		require.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "recommendation_not_found", errorCode(t, rr))
	})

	t.Run("accept a viewed recommendation", func(t *testing.T) {
		t.Parallel()

		f := newAPIFixture(t)
		subjectID := uuid.New()
		seeded := seed(t, f, subjectID)
		require.NoError(t, f.recs.UpdateStatus(context.Background(), seeded.ID, recommend.StatusViewed, frozen))

		rr := f.do(t, http.MethodPut, "/recommendations/"+subjectID.String()+"/status", `{"status": "accepted"}`)
		require.Equal(t, http.StatusOK, rr.Code)

		var rec recommend.Recommendation
		decode(t, rr, &rec)
		assert.Equal(t, recommend.StatusAccepted, rec.Status)
	})

	t.Run("invalid transition", func(t *testing.T) {
		t.Parallel()

		f := newAPIFixture(t)
		subjectID := uuid.New()
		seed(t, f, subjectID)

		rr := f.do(t, http.MethodPut, "/recommendations/"+subjectID.String()+"/status", `{"status": "pending"}`)
		require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, "invalid_transition", errorCode(t, rr))
	})
}

// brokenLedger fails every call, simulating an unreachable counter store.
type brokenLedger struct{}

var errLedgerDown = errors.New("ledger down")

func (brokenLedger) Increment(context.Context, ledger.Key, ledger.Quantity) (ledger.Quantity, error) {
	return 0, errLedgerDown
}

func (brokenLedger) Peek(context.Context, ledger.Key) (ledger.Quantity, error) {
	return 0, errLedgerDown
}

func (brokenLedger) SetPeakConcurrent(context.Context, ledger.Key, int64) (int64, error) {
	return 0, errLedgerDown
}

func (brokenLedger) History(context.Context, uuid.UUID, plan.Resource, period.Type, time.Time) ([]ledger.Counter, error) {
	return nil, errLedgerDown
}

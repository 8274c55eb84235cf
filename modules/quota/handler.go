package quota

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/scribeworks/quotakit/pkg/gate"
	"github.com/scribeworks/quotakit/pkg/ledger"
	"github.com/scribeworks/quotakit/pkg/logger"
	"github.com/scribeworks/quotakit/pkg/plan"
	"github.com/scribeworks/quotakit/pkg/recommend"
)

// Handler serves the quota enforcement HTTP surface.
type Handler struct {
	gate  *gate.Service
	recs  recommend.Store
	log   *slog.Logger
	clock func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(clock func() time.Time) Option {
	return func(h *Handler) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHandler creates the HTTP handler for quota checks, usage
// recording, and recommendation delivery. Panics if gate or recs is
// nil since the module cannot function without them.
func NewHandler(g *gate.Service, recs recommend.Store, opts ...Option) *Handler {
	if g == nil {
		panic("quota: gate service is required")
	}
	if recs == nil {
		panic("quota: recommendation store is required")
	}
	h := &Handler{
		gate:  g,
		recs:  recs,
		log:   slog.New(slog.DiscardHandler),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type checkRequest struct {
	RequestedQty float64 `json:"requestedQty"`
}

type recordRequest struct {
	ActualQty float64 `json:"actualQty"`
}

type recordResponse struct {
	Consumed ledger.Quantity `json:"consumed"`
}

type statusRequest struct {
	Status recommend.Status `json:"status"`
}

// getQuota handles GET /quota/{subjectID}/{resource}: a read-only
// probe that never consumes quota.
func (h *Handler) getQuota(w http.ResponseWriter, r *http.Request) {
	subjectID, res, ok := h.pathParams(w, r)
	if !ok {
		return
	}

	decision, err := h.gate.Probe(r.Context(), subjectID, res, h.clock())
	h.writeDecision(w, r, decision, err)
}

// checkQuota handles POST /quota/{subjectID}/{resource}/check: the
// admission check phase. Denial is a 200 with allowed=false; only
// infrastructure faults produce a 503.
func (h *Handler) checkQuota(w http.ResponseWriter, r *http.Request) {
	subjectID, res, ok := h.pathParams(w, r)
	if !ok {
		return
	}

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}
	if req.RequestedQty < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "requestedQty must not be negative")
		return
	}

	decision, err := h.gate.CheckQuota(r.Context(), subjectID, res, ledger.QuantityFromFloat(req.RequestedQty), h.clock())
	h.writeDecision(w, r, decision, err)
}

// recordUsage handles POST /usage/{subjectID}/{resource}/record: the
// post-completion record phase. Never denies.
func (h *Handler) recordUsage(w http.ResponseWriter, r *http.Request) {
	subjectID, res, ok := h.pathParams(w, r)
	if !ok {
		return
	}

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}
	if req.ActualQty < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "actualQty must not be negative")
		return
	}

	consumed, err := h.gate.RecordUsage(r.Context(), subjectID, res, ledger.QuantityFromFloat(req.ActualQty), h.clock())
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to record usage",
			logger.SubjectID(subjectID.String()),
			logger.Resource(string(res)),
			logger.Error(err),
		)
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "usage could not be recorded")
		return
	}

	writeData(w, http.StatusOK, recordResponse{Consumed: consumed})
}

// getRecommendation handles GET /recommendations/{subjectID}. Fetching
// a pending recommendation marks it viewed.
func (h *Handler) getRecommendation(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subjectParam(w, r)
	if !ok {
		return
	}

	now := h.clock()
	rec, err := h.recs.CurrentFor(r.Context(), subjectID, now)
	if err != nil {
		h.writeRecommendationError(w, r, err)
		return
	}

	if rec.Status == recommend.StatusPending {
		if err := h.recs.UpdateStatus(r.Context(), rec.ID, recommend.StatusViewed, now); err == nil {
			rec.Status = recommend.StatusViewed
			rec.UpdatedAt = now.UTC()
		} else {
			h.log.WarnContext(r.Context(), "failed to mark recommendation viewed",
				logger.SubjectID(subjectID.String()),
				logger.Error(err),
			)
		}
	}

	writeData(w, http.StatusOK, rec)
}

// updateRecommendationStatus handles PUT /recommendations/{subjectID}/status.
func (h *Handler) updateRecommendationStatus(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subjectParam(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}

	now := h.clock()
	rec, err := h.recs.CurrentFor(r.Context(), subjectID, now)
	if err != nil {
		h.writeRecommendationError(w, r, err)
		return
	}

	if err := rec.Transition(req.Status, now); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_transition",
			"recommendation cannot move to status "+string(req.Status))
		return
	}
	if err := h.recs.UpdateStatus(r.Context(), rec.ID, req.Status, now); err != nil {
		h.writeRecommendationError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, rec)
}

func (h *Handler) pathParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, plan.Resource, bool) {
	subjectID, ok := h.subjectParam(w, r)
	if !ok {
		return uuid.Nil, "", false
	}
	// Unknown resources are not rejected here: the gate denies them
	// with feature_disabled so callers get a Decision, not a 400.
	return subjectID, plan.Resource(chi.URLParam(r, "resource")), true
}

func (h *Handler) subjectParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	subjectID, err := uuid.Parse(chi.URLParam(r, "subjectID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "subjectID must be a valid UUID")
		return uuid.Nil, false
	}
	return subjectID, true
}

// writeDecision maps a gate verdict to the wire. Ordinary denials stay
// 200 so clients distinguish policy from infrastructure failure.
func (h *Handler) writeDecision(w http.ResponseWriter, r *http.Request, decision gate.Decision, err error) {
	if err != nil {
		h.log.ErrorContext(r.Context(), "quota check degraded",
			logger.SubjectID(chi.URLParam(r, "subjectID")),
			logger.Resource(string(decision.Resource)),
			logger.Error(err),
		)
		writeJSON(w, http.StatusServiceUnavailable, envelope{
			Data:  decision,
			Error: &errorDetail{Code: "storage_unavailable", Message: "usage counters unreachable, denying to stay within plan limits"},
		})
		return
	}
	writeData(w, http.StatusOK, decision)
}

func (h *Handler) writeRecommendationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, recommend.ErrRecommendationNotFound):
		writeError(w, http.StatusNotFound, "recommendation_not_found", "no current recommendation for subject")
	case errors.Is(err, recommend.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, "invalid_transition", err.Error())
	case errors.Is(err, recommend.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "recommendation store unreachable")
	default:
		h.log.ErrorContext(r.Context(), "recommendation request failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected failure")
	}
}

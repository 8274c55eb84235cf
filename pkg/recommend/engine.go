package recommend

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/scribeworks/quotakit/pkg/ledger"
	"github.com/scribeworks/quotakit/pkg/override"
	"github.com/scribeworks/quotakit/pkg/period"
	"github.com/scribeworks/quotakit/pkg/plan"
)

// Config holds the scoring thresholds. These are heuristic business
// constants, deliberately tunable rather than baked in.
type Config struct {
	// HighUtilization triggers an upgrade proposal when trailing
	// utilization reaches this ratio of the cap.
	HighUtilization float64
	// HighPeriods of the last LookbackPeriods closed periods must be
	// high-utilization to trigger.
	HighPeriods     int
	LookbackPeriods int
	// LowUtilization across the whole window marks paid-for headroom
	// that is never used.
	LowUtilization float64
	// UpgradeHeadroom: a proposed bigger plan must fit the observed peak
	// times this factor.
	UpgradeHeadroom float64
	// DowngradeHeadroom: a proposed cheaper plan must still hold the
	// observed peak times this factor.
	DowngradeHeadroom float64
	// MinPeriods of closed history required before any proposal.
	MinPeriods int
	// Expiry is the recommendation horizon.
	Expiry time.Duration
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		HighUtilization:   0.9,
		HighPeriods:       2,
		LookbackPeriods:   3,
		LowUtilization:    0.2,
		UpgradeHeadroom:   1.2,
		DowngradeHeadroom: 1.5,
		MinPeriods:        2,
		Expiry:            30 * 24 * time.Hour,
	}
}

// Engine analyzes trailing usage against the plan catalog and proposes
// better-fitting plans. It runs off the request path and only reads
// closed-period counters; it never blocks, and is never blocked by, quota
// checks.
type Engine struct {
	catalog  *plan.Catalog
	resolver *override.Resolver
	ledger   ledger.Ledger
	store    Store
	cfg      Config
	log      *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithConfig replaces the default thresholds.
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine creates a recommendation engine. All collaborators are
// required; missing ones panic to fail fast during initialization.
func NewEngine(catalog *plan.Catalog, resolver *override.Resolver, led ledger.Ledger, store Store, opts ...EngineOption) *Engine {
	if catalog == nil {
		panic("recommend: plan catalog is required")
	}
	if resolver == nil {
		panic("recommend: resolver is required")
	}
	if led == nil {
		panic("recommend: ledger is required")
	}
	if store == nil {
		panic("recommend: store is required")
	}

	e := &Engine{
		catalog:  catalog,
		resolver: resolver,
		ledger:   led,
		store:    store,
		cfg:      DefaultConfig(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// resourceStats aggregates one resource's closed-period history.
type resourceStats struct {
	limit       plan.Limit
	periods     int
	peak        int64   // highest per-period consumption, whole units
	highPeriods int     // periods at or above HighUtilization, within lookback
	maxUtil     float64 // highest utilization in lookback
	allLow      bool    // every period at or below LowUtilization
}

// Analyze inspects the subject's trailing windowDays of usage and returns
// a stored recommendation, or nil when the subject's plan already fits.
func (e *Engine) Analyze(ctx context.Context, subjectID uuid.UUID, windowDays int) (*Recommendation, error) {
	return e.AnalyzeAt(ctx, subjectID, windowDays, time.Now().UTC())
}

// AnalyzeAt is Analyze with a pinned reference time.
func (e *Engine) AnalyzeAt(ctx context.Context, subjectID uuid.UUID, windowDays int, asOf time.Time) (*Recommendation, error) {
	eff, err := e.resolver.EffectiveLimits(ctx, subjectID, asOf)
	if err != nil {
		return nil, err
	}

	// Top-tier subjects have nowhere to go.
	if eff.Limits.AllUnlimited() {
		return nil, nil
	}

	since := asOf.AddDate(0, 0, -windowDays)
	stats, err := e.collectStats(ctx, subjectID, eff.Limits, since, asOf)
	if err != nil {
		return nil, err
	}

	maxPeriods := 0
	for _, st := range stats {
		if st.periods > maxPeriods {
			maxPeriods = st.periods
		}
	}
	if maxPeriods < e.cfg.MinPeriods {
		return nil, nil // not enough history to say anything useful
	}

	if rec := e.upgradeProposal(eff, stats, maxPeriods); rec != nil {
		return e.persist(ctx, subjectID, rec, asOf)
	}
	if rec := e.downgradeProposal(eff, stats, maxPeriods); rec != nil {
		return e.persist(ctx, subjectID, rec, asOf)
	}
	return nil, nil
}

// collectStats reads closed-period history for every bounded resource.
func (e *Engine) collectStats(ctx context.Context, subjectID uuid.UUID, limits plan.LimitSet, since, asOf time.Time) (map[plan.Resource]resourceStats, error) {
	stats := make(map[plan.Resource]resourceStats)

	for res, limit := range limits {
		// Unlimited resources have utilization ratio 0 by definition;
		// disabled ones have nothing to measure.
		if limit.IsUnlimited() || limit.IsDisabled() {
			continue
		}

		types := period.TypesFor(res)
		if len(types) == 0 {
			continue
		}

		counters, err := e.ledger.History(ctx, subjectID, res, types[0], since)
		if err != nil {
			if errors.Is(err, ledger.ErrHistoryUnavailable) {
				return nil, errors.Join(ErrInsufficientHistory, err)
			}
			return nil, err
		}

		// The running period is not evidence yet; only closed windows count.
		closed := counters[:0:0]
		for _, c := range counters {
			if c.Closed(asOf) {
				closed = append(closed, c)
			}
		}

		st := resourceStats{limit: limit, allLow: true}
		lookbackFrom := len(closed) - e.cfg.LookbackPeriods

		for i, c := range closed {
			st.periods++

			consumed := c.Consumed.Ceil()
			if consumed > st.peak {
				st.peak = consumed
			}

			util := c.Consumed.Float() / float64(limit.Value())
			if util > e.cfg.LowUtilization {
				st.allLow = false
			}
			if i >= lookbackFrom {
				if util >= e.cfg.HighUtilization {
					st.highPeriods++
				}
				if util > st.maxUtil {
					st.maxUtil = util
				}
			}
		}

		if st.periods > 0 {
			stats[res] = st
		}
	}
	return stats, nil
}

// upgradeProposal returns a quota-exceeded recommendation when some
// resource keeps brushing its cap.
func (e *Engine) upgradeProposal(eff override.Effective, stats map[plan.Resource]resourceStats, periodsObserved int) *Recommendation {
	var (
		triggered bool
		worstUtil float64
	)
	demand := make(map[plan.Resource]int64, len(stats))

	for res, st := range stats {
		// Every observed resource constrains the candidate so the
		// upgrade does not fix one cap by shrinking another.
		demand[res] = int64(math.Ceil(float64(st.peak) * e.cfg.UpgradeHeadroom))
		if st.highPeriods >= e.cfg.HighPeriods {
			triggered = true
			if st.maxUtil > worstUtil {
				worstUtil = st.maxUtil
			}
		}
	}
	if !triggered {
		return nil
	}

	candidate, err := e.catalog.CheapestFitting(demand)
	if err != nil || candidate.ID == eff.PlanID {
		return nil
	}

	gap := (worstUtil - e.cfg.HighUtilization) / (1 - e.cfg.HighUtilization)
	return &Recommendation{
		CurrentPlanID:     eff.PlanID,
		RecommendedPlanID: candidate.ID,
		Reason:            ReasonQuotaExceeded,
		Confidence:        e.confidence(periodsObserved, gap),
		ProjectedDelta: plan.Money{
			Amount:   candidate.MonthlyPrice() - eff.Plan.MonthlyPrice(),
			Currency: candidate.Price.Currency,
		},
	}
}

// downgradeProposal returns a cost-optimization recommendation when every
// resource idles below the low-utilization threshold for the full window
// and a cheaper plan still holds the observed peak with headroom.
func (e *Engine) downgradeProposal(eff override.Effective, stats map[plan.Resource]resourceStats, periodsObserved int) *Recommendation {
	if len(stats) == 0 {
		return nil
	}

	var worstUtil float64
	demand := make(map[plan.Resource]int64, len(stats))
	for res, st := range stats {
		if !st.allLow {
			return nil
		}
		demand[res] = int64(math.Ceil(float64(st.peak) * e.cfg.DowngradeHeadroom))
		if st.maxUtil > worstUtil {
			worstUtil = st.maxUtil
		}
	}

	candidate, err := e.catalog.CheapestFitting(demand)
	if err != nil {
		return nil
	}
	if candidate.ID == eff.PlanID || candidate.MonthlyPrice() >= eff.Plan.MonthlyPrice() {
		return nil
	}

	// The gap driving the trigger is how far below the threshold the
	// subject idles.
	gap := (e.cfg.LowUtilization - worstUtil) / e.cfg.LowUtilization
	return &Recommendation{
		CurrentPlanID:     eff.PlanID,
		RecommendedPlanID: candidate.ID,
		Reason:            ReasonCostOptimization,
		Confidence:        e.confidence(periodsObserved, gap),
		ProjectedDelta: plan.Money{
			Amount:   candidate.MonthlyPrice() - eff.Plan.MonthlyPrice(),
			Currency: candidate.Price.Currency,
		},
	}
}

// confidence weighs sample size against the magnitude of the utilization
// gap driving the trigger, clamped to [0, 1].
func (e *Engine) confidence(periodsObserved int, gap float64) float64 {
	sample := float64(periodsObserved) / float64(e.cfg.LookbackPeriods)
	c := 0.5*math.Min(sample, 1) + 0.5*math.Max(math.Min(gap, 1), 0)
	return math.Max(0, math.Min(c, 1))
}

// persist stores the proposal, superseding a materially different open
// recommendation. A fresh analysis landing on the same candidate keeps
// the existing record instead of minting duplicates.
func (e *Engine) persist(ctx context.Context, subjectID uuid.UUID, rec *Recommendation, asOf time.Time) (*Recommendation, error) {
	existing, err := e.store.CurrentFor(ctx, subjectID, asOf)
	if err != nil && !errors.Is(err, ErrRecommendationNotFound) {
		return nil, err
	}

	if existing != nil {
		if existing.RecommendedPlanID == rec.RecommendedPlanID {
			return existing, nil
		}
		if err := e.store.UpdateStatus(ctx, existing.ID, StatusDismissed, asOf); err != nil {
			return nil, err
		}
		e.log.InfoContext(ctx, "superseding recommendation",
			slog.String("subject_id", subjectID.String()),
			slog.String("old_plan", existing.RecommendedPlanID),
			slog.String("new_plan", rec.RecommendedPlanID))
	}

	rec.ID = uuid.New()
	rec.SubjectID = subjectID
	rec.Status = StatusPending
	rec.CreatedAt = asOf.UTC()
	rec.UpdatedAt = asOf.UTC()
	rec.ExpiresAt = asOf.UTC().Add(e.cfg.Expiry)

	if err := e.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/scribeworks/quotakit/pkg/ledger"
	"github.com/scribeworks/quotakit/pkg/override"
	"github.com/scribeworks/quotakit/pkg/period"
	"github.com/scribeworks/quotakit/pkg/plan"
)

// companions maps resources that meter the same underlying event at a
// second granularity. Checking or recording one checks and records the
// other, so a burst of uploads cannot pass the daily cap while silently
// blowing through the monthly one.
var companions = map[plan.Resource][]plan.Resource{
	plan.ResourceFilesDaily:   {plan.ResourceFilesMonthly},
	plan.ResourceFilesMonthly: {plan.ResourceFilesDaily},
}

// Service is the enforcement gate: it decides in real time whether a new
// unit of work may proceed, and records consumption after the work ran.
//
// Check and record are deliberately separate calls. Job size is often only
// known after partial execution (actual transcription minutes), so callers
// check with an estimate and record the actual amount. The pair is not
// atomic: N concurrent checks can all pass before any record lands,
// overshooting by at most the number of in-flight requests. That soft-limit
// overshoot is an accepted trade-off and surfaces in billing, not as an
// aborted job. Hard admission control for concurrency-style resources goes
// through AcquireJobSlot instead.
type Service struct {
	resolver *override.Resolver
	ledger   ledger.Ledger
	catalog  *plan.Catalog
	log      *slog.Logger

	slots *slotTable
}

// Option configures the gate service.
type Option func(*Service)

// WithLogger sets the logger for denial and fault reporting.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates an enforcement gate. All three collaborators are required;
// missing ones panic to fail fast during initialization.
func New(resolver *override.Resolver, led ledger.Ledger, catalog *plan.Catalog, opts ...Option) *Service {
	if resolver == nil {
		panic("gate: resolver is required")
	}
	if led == nil {
		panic("gate: ledger is required")
	}
	if catalog == nil {
		panic("gate: plan catalog is required")
	}

	s := &Service{
		resolver: resolver,
		ledger:   led,
		catalog:  catalog,
		log:      slog.Default(),
		slots:    newSlotTable(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckQuota decides whether requested more units of the resource may be
// consumed by the subject at asOf. Every window the resource is tracked
// under must pass; the denial names the tightest failing window. The gate
// does not increment here: call RecordUsage once the work actually ran.
func (s *Service) CheckQuota(ctx context.Context, subjectID uuid.UUID, res plan.Resource, requested ledger.Quantity, asOf time.Time) (Decision, error) {
	if requested < 0 {
		return Decision{Resource: res}, ErrInvalidQuantity
	}

	if !res.Valid() || len(period.TypesFor(res)) == 0 {
		// Unknown resource is a programming error on the caller's side;
		// fail safe by treating it as a feature the plan lacks.
		return Decision{
			Allowed:    false,
			Reason:     ReasonFeatureDisabled,
			Resource:   res,
			Limit:      plan.Disabled,
			Suggestion: "resource is not available",
		}, nil
	}

	eff, err := s.effectiveLimits(ctx, subjectID, asOf)
	if err != nil {
		return s.failClosed(ctx, subjectID, res, err)
	}

	limit := eff.Limits.Get(res)
	if limit.IsDisabled() {
		return Decision{
			Allowed:    false,
			Reason:     ReasonFeatureDisabled,
			Resource:   res,
			Limit:      limit,
			Suggestion: s.upgradeSuggestion(res, 1),
		}, nil
	}

	if limit.IsUnlimited() {
		return Decision{
			Allowed:   true,
			Resource:  res,
			Limit:     limit,
			Remaining: ledger.QuantityFromInt(-1),
		}, nil
	}

	windows, err := s.windowStatuses(ctx, subjectID, res, eff.Limits, requested, asOf)
	if err != nil {
		return s.failClosed(ctx, subjectID, res, err)
	}

	decision := Decision{
		Allowed:  true,
		Resource: res,
		Limit:    limit,
		Windows:  windows,
	}

	var tightest *WindowStatus
	for i := range windows {
		w := &windows[i]
		if !w.Passed && (tightest == nil || w.Remaining() < tightest.Remaining()) {
			tightest = w
		}
	}

	// Remaining reported against the primary resource's own window.
	decision.Remaining = windows[0].Remaining()
	decision.PeriodEnd = windows[0].PeriodEnd

	if tightest != nil {
		decision.Allowed = false
		decision.Reason = ReasonQuotaExceeded
		decision.Remaining = tightest.Remaining()
		decision.PeriodEnd = tightest.PeriodEnd
		decision.Suggestion = s.denialSuggestion(tightest, requested)
	}

	return decision, nil
}

// RecordUsage adds the actual consumed quantity to every window the
// resource is tracked under and returns the new total for the resource's
// own window. It never rejects on quota: over-consumption relative to the
// checked estimate is tolerated and surfaces in billing.
func (s *Service) RecordUsage(ctx context.Context, subjectID uuid.UUID, res plan.Resource, actual ledger.Quantity, asOf time.Time) (ledger.Quantity, error) {
	if actual < 0 {
		return 0, ErrInvalidQuantity
	}
	if actual == 0 {
		// Cancelled work records nothing but is not an error.
		key := s.keyFor(subjectID, res, asOf)
		return s.peekRetry(ctx, key)
	}

	var primary ledger.Quantity
	for i, target := range append([]plan.Resource{res}, companions[res]...) {
		windows := period.WindowsFor(target, asOf)
		for _, w := range windows {
			total, err := s.incrementRetry(ctx, ledger.Key{SubjectID: subjectID, Resource: target, Window: w}, actual)
			if err != nil {
				return 0, errors.Join(ErrStorageUnavailable, err)
			}
			if i == 0 {
				primary = total
			}
		}
	}
	return primary, nil
}

// Probe is the read-only variant used by UI progress bars: the same logic
// as CheckQuota with a zero requested quantity.
func (s *Service) Probe(ctx context.Context, subjectID uuid.UUID, res plan.Resource, asOf time.Time) (Decision, error) {
	return s.CheckQuota(ctx, subjectID, res, 0, asOf)
}

// windowStatuses peeks consumption in every window the resource and its
// companions are tracked under and tests the admission predicate.
// Companion resources whose limit is Disabled are skipped: the primary
// resource already gates feature availability, and a plan that caps
// uploads daily but not monthly should not deny uploads outright.
func (s *Service) windowStatuses(ctx context.Context, subjectID uuid.UUID, res plan.Resource, limits plan.LimitSet, requested ledger.Quantity, asOf time.Time) ([]WindowStatus, error) {
	var statuses []WindowStatus

	check := func(target plan.Resource, limit plan.Limit) error {
		for _, w := range period.WindowsFor(target, asOf) {
			consumed, err := s.peekRetry(ctx, ledger.Key{SubjectID: subjectID, Resource: target, Window: w})
			if err != nil {
				return err
			}
			statuses = append(statuses, WindowStatus{
				Resource:    target,
				PeriodType:  w.Type,
				PeriodStart: w.Start,
				PeriodEnd:   w.End,
				Limit:       limit,
				Consumed:    consumed,
				Passed:      limit.Allows((consumed + requested).Ceil()),
			})
		}
		return nil
	}

	if err := check(res, limits.Get(res)); err != nil {
		return nil, err
	}
	for _, companion := range companions[res] {
		limit := limits.Get(companion)
		if limit.IsDisabled() {
			continue
		}
		if err := check(companion, limit); err != nil {
			return nil, err
		}
	}
	return statuses, nil
}

// effectiveLimits resolves limits with a single retry on transient faults.
func (s *Service) effectiveLimits(ctx context.Context, subjectID uuid.UUID, asOf time.Time) (override.Effective, error) {
	eff, err := s.resolver.EffectiveLimits(ctx, subjectID, asOf)
	if err == nil {
		return eff, nil
	}
	if errors.Is(err, plan.ErrPlanNotFound) || errors.Is(err, override.ErrPlanIDNotInContext) {
		return override.Effective{}, err // not transient, retry cannot help
	}
	return s.resolver.EffectiveLimits(ctx, subjectID, asOf)
}

// peekRetry reads a counter, retrying once on failure.
func (s *Service) peekRetry(ctx context.Context, key ledger.Key) (ledger.Quantity, error) {
	v, err := s.ledger.Peek(ctx, key)
	if err == nil {
		return v, nil
	}
	return s.ledger.Peek(ctx, key)
}

// incrementRetry increments a counter, retrying once on failure. The
// increment itself is atomic server-side, so the retry cannot double-count
// unless the first attempt succeeded after its response was lost; that
// ambiguity is accepted in favor of never losing a recording.
func (s *Service) incrementRetry(ctx context.Context, key ledger.Key, delta ledger.Quantity) (ledger.Quantity, error) {
	v, err := s.ledger.Increment(ctx, key, delta)
	if err == nil {
		return v, nil
	}
	return s.ledger.Increment(ctx, key, delta)
}

// failClosed denies on infrastructure faults: ambiguity must never admit
// unmetered work. The fault is also surfaced as an error so callers log
// and alert.
func (s *Service) failClosed(ctx context.Context, subjectID uuid.UUID, res plan.Resource, err error) (Decision, error) {
	s.log.ErrorContext(ctx, "quota check failed closed",
		slog.String("subject_id", subjectID.String()),
		slog.String("resource", string(res)),
		slog.Any("error", err))

	return Decision{
		Allowed:    false,
		Reason:     ReasonStorageUnavailable,
		Resource:   res,
		Suggestion: "retry shortly",
	}, errors.Join(ErrStorageUnavailable, err)
}

// keyFor builds the resource's own current-window key.
func (s *Service) keyFor(subjectID uuid.UUID, res plan.Resource, asOf time.Time) ledger.Key {
	windows := period.WindowsFor(res, asOf)
	if len(windows) == 0 {
		windows = []period.Window{period.Resolve(period.Monthly, asOf)}
	}
	return ledger.Key{SubjectID: subjectID, Resource: res, Window: windows[0]}
}

// upgradeSuggestion names the cheapest public plan that accommodates the
// demand, or an empty string when none exists.
func (s *Service) upgradeSuggestion(res plan.Resource, demand int64) string {
	p, err := s.catalog.CheapestFitting(map[plan.Resource]int64{res: demand})
	if err != nil {
		return ""
	}
	return fmt.Sprintf("upgrade to the %s plan", p.Name)
}

// denialSuggestion proposes an upgrade that would fit the failed demand,
// falling back to waiting for the period reset.
func (s *Service) denialSuggestion(w *WindowStatus, requested ledger.Quantity) string {
	demand := (w.Consumed + requested).Ceil()
	if suggestion := s.upgradeSuggestion(w.Resource, demand); suggestion != "" {
		return suggestion
	}
	return fmt.Sprintf("wait until period resets at %s", w.PeriodEnd.Format(time.RFC3339))
}

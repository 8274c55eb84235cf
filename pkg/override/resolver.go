package override

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/scribeworks/quotakit/pkg/plan"
)

// PlanResolver resolves the subscribed base plan ID for a workspace.
type PlanResolver func(ctx context.Context, workspaceID uuid.UUID) (string, error)

type planIDCtxKey struct{}

// SetPlanIDToContext stores the workspace's plan ID in the context.
func SetPlanIDToContext(ctx context.Context, planID string) context.Context {
	return context.WithValue(ctx, planIDCtxKey{}, planID)
}

// GetPlanIDFromContext retrieves the plan ID from the context.
func GetPlanIDFromContext(ctx context.Context) (string, bool) {
	planID, ok := ctx.Value(planIDCtxKey{}).(string)
	return planID, ok
}

// PlanIDContextResolver is the default resolver that reads the plan ID from
// context, letting request middleware decide the plan without a database
// round-trip on every quota check.
func PlanIDContextResolver(ctx context.Context, _ uuid.UUID) (string, error) {
	planID, ok := GetPlanIDFromContext(ctx)
	if !ok {
		return "", ErrPlanIDNotInContext
	}
	return planID, nil
}

// ErrPlanIDNotInContext reports a missing plan ID with the default resolver.
var ErrPlanIDNotInContext = errors.New("override.errors.plan_id_not_in_context")

// Effective is the merged limit view actually enforced for a workspace.
// Derived per lookup, deterministic, never persisted.
type Effective struct {
	PlanID     string
	Plan       plan.Plan
	Limits     plan.LimitSet
	OverrideID *uuid.UUID // set when an approved override contributed
}

// Resolver merges a workspace's approved custom override on top of its
// base plan to produce the effective limit set.
type Resolver struct {
	catalog *plan.Catalog
	planIDs PlanResolver
	store   Store
	log     *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger used for configuration anomaly reports.
func WithLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// WithPlanResolver replaces the default context-based plan ID resolver.
func WithPlanResolver(fn PlanResolver) ResolverOption {
	return func(r *Resolver) {
		if fn != nil {
			r.planIDs = fn
		}
	}
}

// NewResolver creates a Resolver. Catalog and store are required; the plan
// ID resolver defaults to context lookup.
func NewResolver(catalog *plan.Catalog, store Store, opts ...ResolverOption) *Resolver {
	if catalog == nil {
		panic("override: plan catalog is required")
	}
	if store == nil {
		panic("override: override store is required")
	}

	r := &Resolver{
		catalog: catalog,
		planIDs: PlanIDContextResolver,
		store:   store,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EffectiveLimits computes the workspace's enforced limit set at asOf:
// the base plan's limits with the active override's entries on top.
// Deterministic and side-effect-free apart from anomaly logging.
//
// More than one concurrently approved override is a configuration error;
// the most recently approved one wins and the anomaly is logged rather
// than failing the request. A broken override lookup degrades to the base
// plan the same way. Only a missing base plan surfaces as an error.
func (r *Resolver) EffectiveLimits(ctx context.Context, workspaceID uuid.UUID, asOf time.Time) (Effective, error) {
	planID, err := r.planIDs(ctx, workspaceID)
	if err != nil {
		return Effective{}, err
	}

	base, err := r.catalog.Get(planID)
	if err != nil {
		return Effective{}, err
	}

	eff := Effective{
		PlanID: base.ID,
		Plan:   base,
		Limits: base.Limits.Clone(),
	}

	active, err := r.store.ActiveForWorkspace(ctx, workspaceID, asOf)
	if err != nil {
		// Degrade to the base plan rather than blocking admission on a
		// secondary lookup; the gate still enforces base limits.
		r.log.ErrorContext(ctx, "override lookup failed, using base plan",
			slog.String("workspace_id", workspaceID.String()),
			slog.Any("error", err))
		return eff, nil
	}

	if len(active) == 0 {
		return eff, nil
	}

	if len(active) > 1 {
		r.log.WarnContext(ctx, "multiple approved overrides active, using most recently approved",
			slog.String("workspace_id", workspaceID.String()),
			slog.Int("count", len(active)))
	}

	winner := active[0] // store orders by approval recency
	for res, l := range winner.Limits {
		eff.Limits[res] = l
	}
	id := winner.ID
	eff.OverrideID = &id
	return eff, nil
}

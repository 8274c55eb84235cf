// Package override manages negotiated per-workspace plan deviations and
// resolves the effective limit set the enforcement gate actually applies.
//
// An Override carries a sparse resource-to-limit map; resources it omits
// inherit the base plan. Overrides move through an approval workflow
// (pending -> approved | rejected) and are only honored while approved and
// inside their contract window.
//
//	store := override.NewMemoryStore()
//	resolver := override.NewResolver(catalog, store,
//	    override.WithPlanResolver(lookupWorkspacePlan))
//	eff, err := resolver.EffectiveLimits(ctx, workspaceID, time.Now())
//	limit := eff.Limits.Get(plan.ResourceTranscriptions)
//
// Configuration anomalies (several concurrently approved overrides, a
// failed override lookup) degrade to the base plan and are logged; they
// never block admission decisions.
package override

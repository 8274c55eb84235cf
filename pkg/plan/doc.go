// Package plan defines the subscription plan catalog: tiers, their metered
// resource limits, and pricing used by upgrade recommendations.
//
// Limits are a tagged type rather than bare integers so code never does
// arithmetic on the -1/0 sentinels:
//
//	plan.Bounded(200) // hard cap per period
//	plan.Unlimited    // no cap
//	plan.Disabled     // feature not on the plan
//
// The wire and storage form keeps the conventional sentinels (-1, 0, n).
// A LimitSet lookup for an unknown resource returns Disabled, failing
// closed rather than open.
//
// Catalogs load from a Source. NewInMemSource serves tests and embedded
// defaults; NewYAMLSource reads the catalog an operator actually ships:
//
//	catalog, err := plan.NewCatalog(ctx, plan.NewYAMLSource("plans.yaml"))
//	p, err := catalog.Get("starter")
package plan

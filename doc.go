// Package quotakit enforces subscription plan limits for multi-tenant
// workloads: metered admission checks, period-scoped usage counters,
// negotiated per-workspace overrides, and plan change recommendations.
//
// The pipeline is composed from independent packages:
//
//   - pkg/plan      plan catalog, tagged limits, resource names
//   - pkg/period    billing window arithmetic (daily, monthly, yearly)
//   - pkg/ledger    atomic usage counters (memory, Redis, Postgres)
//   - pkg/override  negotiated custom limits with approval workflow
//   - pkg/gate      the admission gate with fail-closed semantics
//   - pkg/recommend usage analysis and plan change proposals
//
// The root package wires them together:
//
//	eng, err := quotakit.New(ctx, quotakit.Config{
//	    PlanSource: plan.NewYAMLSource("plans.yaml"),
//	})
//	if err != nil {
//	    return err
//	}
//	http.ListenAndServe(":8080", eng.Handler())
//
// modules/quota exposes the same pipeline as a mountable chi router
// for applications that already run their own server.
package quotakit

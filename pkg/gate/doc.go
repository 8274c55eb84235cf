// Package gate is the admission-control layer of the quota engine: given a
// subject, a resource and a requested quantity, it consults the effective
// limit set and the usage ledger and returns an admit/deny decision with a
// machine-readable reason and a human-readable suggestion.
//
// The protocol is two-phase. CheckQuota only decides; RecordUsage writes
// the actually consumed quantity after the work ran, which may differ from
// the checked estimate. The two calls are not atomic with each other: a
// burst of concurrent checks can all pass before any recording lands,
// overshooting the cap by at most the number of in-flight requests. That
// bounded overshoot is an accepted soft-limit trade-off, not a bug.
// Resources needing a hard cap on simultaneous work (concurrentJobs) use
// AcquireJobSlot, which debits a reservation before the job starts and
// credits it back on Release or TTL expiry.
//
//	d, err := svc.CheckQuota(ctx, workspaceID, plan.ResourceTranscriptions, ledger.QuantityFromInt(1), time.Now())
//	if err != nil { /* infrastructure fault: deny, log, alert */ }
//	if !d.Allowed { /* d.Reason, d.Suggestion */ }
//	// ... run the job ...
//	_, err = svc.RecordUsage(ctx, workspaceID, plan.ResourceTranscriptions, actualMinutes, time.Now())
//
// Denials are ordinary return values. Only storage faults are errors, and
// on those the gate retries once and then fails closed: deny rather than
// risk unmetered admission.
package gate

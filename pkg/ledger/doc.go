// Package ledger is the usage counter store: one row per subject, resource
// and period window, holding fixed-point consumed quantities and peak
// concurrency high-water marks.
//
// Increment is the single write path for consumption and must be atomic
// per key; every backend here implements it as a server-side or
// lock-guarded read-modify-write so concurrent recordings never lose
// updates. Peek is read-only and idempotent.
//
// Quantities are stored in hundredths of a unit so fractional consumption
// (actual transcription minutes) accumulates without float drift.
//
// Backends:
//
//   - MemoryLedger: in-process, for tests and single-node use.
//   - RedisLedger: INCRBY on centi-unit integers, Lua max for peaks,
//     TTL-based reclamation. No history queries.
//   - PostgresLedger: upsert-increment with ON CONFLICT, GREATEST for
//     peaks, SQL history for the recommendation engine and billing reads.
//
// Closed-period rows are read-only by convention and reclaimed by
// best-effort sweeps, never synchronously on the request path.
package ledger

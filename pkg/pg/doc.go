// Package pg wires up the Postgres connection pool used by the
// durable ledger and override stores.
//
// Connect builds a pgxpool.Pool from an env-tagged Config with retry
// on transient startup failures. Migrate applies goose migrations
// through a database/sql bridge over the same pool. Healthcheck
// exposes a ping closure for health endpoints, and the Is*Error
// helpers classify common pgx failures.
package pg

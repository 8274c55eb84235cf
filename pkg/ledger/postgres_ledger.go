package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scribeworks/quotakit/pkg/period"
	"github.com/scribeworks/quotakit/pkg/plan"
)

// PostgresLedger implements Ledger on the usage_counters table. The
// upsert-increment runs as a single statement, so the row lock makes
// concurrent increments for the same key linearizable without any
// application-level read-then-write.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger creates a Postgres-backed ledger.
// The schema ships in internal/db/migrations.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

const incrementQuery = `
INSERT INTO usage_counters (subject_id, resource, period_type, period_start, period_end, consumed, peak_concurrent, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 0, now())
ON CONFLICT (subject_id, resource, period_type, period_start)
DO UPDATE SET consumed = usage_counters.consumed + EXCLUDED.consumed, updated_at = now()
RETURNING consumed`

// Increment atomically adds delta and returns the new total.
func (pl *PostgresLedger) Increment(ctx context.Context, key Key, delta Quantity) (Quantity, error) {
	if delta < 0 {
		return 0, ErrNegativeDelta
	}

	var consumed int64
	err := pl.pool.QueryRow(ctx, incrementQuery,
		key.SubjectID, string(key.Resource), string(key.Window.Type),
		key.Window.Start, key.Window.End, int64(delta),
	).Scan(&consumed)
	if err != nil {
		return 0, errors.Join(ErrStorageUnavailable, err)
	}
	return Quantity(consumed), nil
}

const peekQuery = `
SELECT consumed FROM usage_counters
WHERE subject_id = $1 AND resource = $2 AND period_type = $3 AND period_start = $4`

// Peek returns the current consumption; a missing row reads as zero.
func (pl *PostgresLedger) Peek(ctx context.Context, key Key) (Quantity, error) {
	var consumed int64
	err := pl.pool.QueryRow(ctx, peekQuery,
		key.SubjectID, string(key.Resource), string(key.Window.Type), key.Window.Start,
	).Scan(&consumed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, errors.Join(ErrStorageUnavailable, err)
	}
	return Quantity(consumed), nil
}

const peakQuery = `
INSERT INTO usage_counters (subject_id, resource, period_type, period_start, period_end, consumed, peak_concurrent, updated_at)
VALUES ($1, $2, $3, $4, $5, 0, $6, now())
ON CONFLICT (subject_id, resource, period_type, period_start)
DO UPDATE SET peak_concurrent = GREATEST(usage_counters.peak_concurrent, EXCLUDED.peak_concurrent), updated_at = now()
RETURNING peak_concurrent`

// SetPeakConcurrent stores max(current, candidate) in the same statement.
func (pl *PostgresLedger) SetPeakConcurrent(ctx context.Context, key Key, candidate int64) (int64, error) {
	var peak int64
	err := pl.pool.QueryRow(ctx, peakQuery,
		key.SubjectID, string(key.Resource), string(key.Window.Type),
		key.Window.Start, key.Window.End, candidate,
	).Scan(&peak)
	if err != nil {
		return 0, errors.Join(ErrStorageUnavailable, err)
	}
	return peak, nil
}

const historyQuery = `
SELECT subject_id, resource, period_type, period_start, period_end, consumed, peak_concurrent, updated_at
FROM usage_counters
WHERE subject_id = $1 AND resource = $2 AND period_type = $3 AND period_start >= $4
ORDER BY period_start ASC`

// History returns counters with PeriodStart >= since, oldest first.
func (pl *PostgresLedger) History(ctx context.Context, subjectID uuid.UUID, res plan.Resource, t period.Type, since time.Time) ([]Counter, error) {
	rows, err := pl.pool.Query(ctx, historyQuery, subjectID, string(res), string(t), since)
	if err != nil {
		return nil, errors.Join(ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []Counter
	for rows.Next() {
		var (
			c          Counter
			resource   string
			periodType string
			consumed   int64
		)
		if err := rows.Scan(&c.SubjectID, &resource, &periodType, &c.PeriodStart, &c.PeriodEnd, &consumed, &c.PeakConcurrent, &c.UpdatedAt); err != nil {
			return nil, errors.Join(ErrStorageUnavailable, err)
		}
		c.Resource = plan.Resource(resource)
		c.PeriodType = period.Type(periodType)
		c.Consumed = Quantity(consumed)
		c.PeriodStart = c.PeriodStart.UTC()
		c.PeriodEnd = c.PeriodEnd.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStorageUnavailable, err)
	}
	return out, nil
}

// Sweep deletes counters whose window closed before the horizon. Intended
// for a best-effort background job, never the request path.
func (pl *PostgresLedger) Sweep(ctx context.Context, horizon time.Time) (int64, error) {
	tag, err := pl.pool.Exec(ctx, `DELETE FROM usage_counters WHERE period_end < $1`, horizon)
	if err != nil {
		return 0, errors.Join(ErrStorageUnavailable, err)
	}
	return tag.RowsAffected(), nil
}

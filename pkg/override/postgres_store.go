package override

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scribeworks/quotakit/pkg/plan"
)

// PostgresStore implements Store on the custom_overrides table.
// The sparse limit map is stored as JSONB in the sentinel integer form.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed override store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const createOverrideQuery = `
INSERT INTO custom_overrides (id, workspace_id, base_plan_id, limits, price_amount, price_currency, contract_start, contract_end, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
RETURNING created_at, updated_at`

// Create saves a new pending override.
func (ps *PostgresStore) Create(ctx context.Context, o *Override) error {
	if o.Status == "" {
		o.Status = StatusPending
	}
	if o.Status != StatusPending {
		return ErrInvalidStatus
	}
	if o.ContractEnd != nil && !o.ContractEnd.After(o.ContractStart) {
		return ErrInvalidContractWindow
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	limitsJSON, err := marshalLimits(o.Limits)
	if err != nil {
		return err
	}

	err = ps.pool.QueryRow(ctx, createOverrideQuery,
		o.ID, o.WorkspaceID, nullableString(o.BasePlanID), limitsJSON,
		o.Price.Amount, o.Price.Currency, o.ContractStart, o.ContractEnd, string(o.Status),
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return errors.Join(ErrStorageUnavailable, err)
	}
	return nil
}

const selectOverride = `
SELECT id, workspace_id, COALESCE(base_plan_id, ''), limits, price_amount, price_currency, contract_start, contract_end, status, approved_at, created_at, updated_at
FROM custom_overrides`

// Get retrieves an override by ID.
func (ps *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Override, error) {
	row := ps.pool.QueryRow(ctx, selectOverride+` WHERE id = $1`, id)
	o, err := scanOverride(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOverrideNotFound
		}
		return nil, errors.Join(ErrStorageUnavailable, err)
	}
	return o, nil
}

// ListForWorkspace returns every override for a workspace, newest first.
func (ps *PostgresStore) ListForWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]Override, error) {
	rows, err := ps.pool.Query(ctx, selectOverride+` WHERE workspace_id = $1 ORDER BY created_at DESC`, workspaceID)
	if err != nil {
		return nil, errors.Join(ErrStorageUnavailable, err)
	}
	defer rows.Close()
	return collectOverrides(rows)
}

// ActiveForWorkspace returns approved overrides active at asOf, most
// recently approved first.
func (ps *PostgresStore) ActiveForWorkspace(ctx context.Context, workspaceID uuid.UUID, asOf time.Time) ([]Override, error) {
	rows, err := ps.pool.Query(ctx, selectOverride+`
WHERE workspace_id = $1 AND status = 'approved'
  AND contract_start <= $2 AND (contract_end IS NULL OR contract_end > $2)
ORDER BY approved_at DESC NULLS LAST`, workspaceID, asOf.UTC())
	if err != nil {
		return nil, errors.Join(ErrStorageUnavailable, err)
	}
	defer rows.Close()
	return collectOverrides(rows)
}

const setStatusQuery = `
UPDATE custom_overrides
SET status = $2, approved_at = CASE WHEN $2 = 'approved' THEN $3 ELSE approved_at END, updated_at = $3
WHERE id = $1 AND status = 'pending'`

// SetStatus performs an approval transition; only pending rows move.
func (ps *PostgresStore) SetStatus(ctx context.Context, id uuid.UUID, status ApprovalStatus, at time.Time) error {
	if status != StatusApproved && status != StatusRejected {
		return ErrInvalidStatus
	}

	tag, err := ps.pool.Exec(ctx, setStatusQuery, id, string(status), at.UTC())
	if err != nil {
		return errors.Join(ErrStorageUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		// Either missing or already decided; disambiguate for the caller.
		if _, err := ps.Get(ctx, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

func scanOverride(row pgx.Row) (*Override, error) {
	var (
		o          Override
		limitsJSON []byte
		status     string
	)
	err := row.Scan(&o.ID, &o.WorkspaceID, &o.BasePlanID, &limitsJSON,
		&o.Price.Amount, &o.Price.Currency, &o.ContractStart, &o.ContractEnd,
		&status, &o.ApprovedAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = ApprovalStatus(status)
	o.ContractStart = o.ContractStart.UTC()
	if o.Limits, err = unmarshalLimits(limitsJSON); err != nil {
		return nil, err
	}
	return &o, nil
}

func collectOverrides(rows pgx.Rows) ([]Override, error) {
	var out []Override
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, errors.Join(ErrStorageUnavailable, err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStorageUnavailable, err)
	}
	return out, nil
}

func marshalLimits(s plan.LimitSet) ([]byte, error) {
	raw := make(map[string]int64, len(s))
	for res, l := range s {
		raw[string(res)] = l.Value()
	}
	return json.Marshal(raw)
}

func unmarshalLimits(data []byte) (plan.LimitSet, error) {
	var raw map[string]int64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(plan.LimitSet, len(raw))
	for res, n := range raw {
		out[plan.Resource(res)] = plan.FromSentinel(n)
	}
	return out, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

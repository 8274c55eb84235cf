package override

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists custom overrides. The admin surface creates pending
// records and flips them approved or rejected; the resolver only reads.
type Store interface {
	// Create saves a new override. New overrides must be pending.
	Create(ctx context.Context, o *Override) error

	// Get retrieves an override by ID.
	// Returns ErrOverrideNotFound if it does not exist.
	Get(ctx context.Context, id uuid.UUID) (*Override, error)

	// ListForWorkspace returns every override for a workspace regardless
	// of status, most recently created first.
	ListForWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]Override, error)

	// ActiveForWorkspace returns approved overrides whose contract window
	// contains asOf. More than one entry is a configuration anomaly the
	// resolver handles; the store just reports what exists.
	ActiveForWorkspace(ctx context.Context, workspaceID uuid.UUID, asOf time.Time) ([]Override, error)

	// SetStatus performs an approval transition (pending -> approved or
	// pending -> rejected). Returns ErrInvalidTransition otherwise.
	SetStatus(ctx context.Context, id uuid.UUID, status ApprovalStatus, at time.Time) error
}

package override

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store with in-process storage for tests and
// single-node deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	overrides map[uuid.UUID]*Override
}

// NewMemoryStore creates an empty in-memory override store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{overrides: make(map[uuid.UUID]*Override)}
}

// Create saves a new override, assigning an ID when absent.
func (ms *MemoryStore) Create(ctx context.Context, o *Override) error {
	if o.Status == "" {
		o.Status = StatusPending
	}
	if o.Status != StatusPending {
		return ErrInvalidStatus
	}
	if o.ContractEnd != nil && !o.ContractEnd.After(o.ContractStart) {
		return ErrInvalidContractWindow
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	cp := *o
	cp.Limits = o.Limits.Clone()
	ms.overrides[o.ID] = &cp
	return nil
}

// Get retrieves an override by ID.
func (ms *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Override, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	o, exists := ms.overrides[id]
	if !exists {
		return nil, ErrOverrideNotFound
	}
	cp := *o
	cp.Limits = o.Limits.Clone()
	return &cp, nil
}

// ListForWorkspace returns every override for a workspace, newest first.
func (ms *MemoryStore) ListForWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]Override, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []Override
	for _, o := range ms.overrides {
		if o.WorkspaceID == workspaceID {
			cp := *o
			cp.Limits = o.Limits.Clone()
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ActiveForWorkspace returns approved overrides active at asOf.
func (ms *MemoryStore) ActiveForWorkspace(ctx context.Context, workspaceID uuid.UUID, asOf time.Time) ([]Override, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []Override
	for _, o := range ms.overrides {
		if o.WorkspaceID == workspaceID && o.ActiveAt(asOf) {
			cp := *o
			cp.Limits = o.Limits.Clone()
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return approvedAt(out[i]).After(approvedAt(out[j]))
	})
	return out, nil
}

// SetStatus performs an approval transition.
func (ms *MemoryStore) SetStatus(ctx context.Context, id uuid.UUID, status ApprovalStatus, at time.Time) error {
	if status != StatusApproved && status != StatusRejected {
		return ErrInvalidStatus
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	o, exists := ms.overrides[id]
	if !exists {
		return ErrOverrideNotFound
	}
	if o.Status != StatusPending {
		return ErrInvalidTransition
	}

	o.Status = status
	o.UpdatedAt = at.UTC()
	if status == StatusApproved {
		approved := at.UTC()
		o.ApprovedAt = &approved
	}
	return nil
}

func approvedAt(o Override) time.Time {
	if o.ApprovedAt != nil {
		return *o.ApprovedAt
	}
	return o.CreatedAt
}

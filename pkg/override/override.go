package override

import (
	"time"

	"github.com/google/uuid"

	"github.com/scribeworks/quotakit/pkg/plan"
)

// ApprovalStatus tracks the review state of a custom override.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

// Valid reports whether s is a known approval status.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Override is a negotiated per-workspace deviation from a base plan:
// a sparse limit map (absent resources inherit the base plan), a custom
// price, and a contract window. Only approved overrides whose contract
// window contains the reference time are honored.
type Override struct {
	ID            uuid.UUID
	WorkspaceID   uuid.UUID
	BasePlanID    string // optional; empty inherits the workspace's subscribed plan
	Limits        plan.LimitSet
	Price         plan.Money
	ContractStart time.Time
	ContractEnd   *time.Time // nil means open-ended
	Status        ApprovalStatus
	ApprovedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ActiveAt reports whether the override is approved and its contract
// window contains asOf.
func (o Override) ActiveAt(asOf time.Time) bool {
	if o.Status != StatusApproved {
		return false
	}
	u := asOf.UTC()
	if u.Before(o.ContractStart) {
		return false
	}
	if o.ContractEnd != nil && !u.Before(*o.ContractEnd) {
		return false
	}
	return true
}

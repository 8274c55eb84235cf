package recommend

import (
	"time"

	"github.com/google/uuid"

	"github.com/scribeworks/quotakit/pkg/plan"
)

// Reason classifies why a plan change is proposed.
type Reason string

const (
	// ReasonQuotaExceeded: trailing utilization keeps brushing the cap;
	// a bigger plan is proposed.
	ReasonQuotaExceeded Reason = "quota_exceeded"
	// ReasonFeatureNeeded: the subject keeps hitting features the plan
	// disables. Reserved for feature-request signals outside the counter
	// analysis.
	ReasonFeatureNeeded Reason = "feature_needed"
	// ReasonCostOptimization: the subject pays for headroom it never
	// uses; a cheaper plan still fits comfortably.
	ReasonCostOptimization Reason = "cost_optimization"
)

// Status is the recommendation lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusViewed    Status = "viewed"
	StatusAccepted  Status = "accepted"
	StatusDismissed Status = "dismissed"
)

// statusTransitions is the allowed lifecycle graph:
// pending -> viewed -> accepted|dismissed, with pending allowed to jump
// straight to a terminal state.
var statusTransitions = map[Status][]Status{
	StatusPending: {StatusViewed, StatusAccepted, StatusDismissed},
	StatusViewed:  {StatusAccepted, StatusDismissed},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Recommendation proposes a plan change for a subject. Created by the
// engine and never mutated afterwards except through status transitions.
type Recommendation struct {
	ID                uuid.UUID  `json:"id"`
	SubjectID         uuid.UUID  `json:"subjectId"`
	CurrentPlanID     string     `json:"currentPlanId"`
	RecommendedPlanID string     `json:"recommendedPlanId"`
	Reason            Reason     `json:"reason"`
	Confidence        float64    `json:"confidence"` // [0, 1]
	ProjectedDelta    plan.Money `json:"projectedDelta"` // monthly cost change, negative for downgrades
	Status            Status     `json:"status"`
	CreatedAt         time.Time  `json:"createdAt"`
	ExpiresAt         time.Time  `json:"expiresAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Expired reports whether the recommendation has passed its horizon.
func (r *Recommendation) Expired(asOf time.Time) bool {
	return !asOf.UTC().Before(r.ExpiresAt)
}

// Transition moves the recommendation to a new lifecycle state.
// Returns ErrInvalidTransition for moves outside the allowed graph.
func (r *Recommendation) Transition(to Status, at time.Time) error {
	if !CanTransition(r.Status, to) {
		return ErrInvalidTransition
	}
	r.Status = to
	r.UpdatedAt = at.UTC()
	return nil
}

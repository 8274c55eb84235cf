package recommend

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists recommendations.
type Store interface {
	// Save creates a new recommendation.
	Save(ctx context.Context, r *Recommendation) error

	// CurrentFor returns the subject's latest open (pending or viewed)
	// non-expired recommendation, or ErrRecommendationNotFound.
	CurrentFor(ctx context.Context, subjectID uuid.UUID, asOf time.Time) (*Recommendation, error)

	// UpdateStatus applies a lifecycle transition.
	UpdateStatus(ctx context.Context, id uuid.UUID, to Status, at time.Time) error
}

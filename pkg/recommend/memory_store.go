package recommend

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store with in-process storage.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[uuid.UUID]*Recommendation
}

// NewMemoryStore creates an empty in-memory recommendation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[uuid.UUID]*Recommendation)}
}

// Save creates a new recommendation, assigning an ID when absent.
func (ms *MemoryStore) Save(ctx context.Context, r *Recommendation) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	cp := *r
	ms.recs[r.ID] = &cp
	return nil
}

// CurrentFor returns the subject's latest open non-expired recommendation.
func (ms *MemoryStore) CurrentFor(ctx context.Context, subjectID uuid.UUID, asOf time.Time) (*Recommendation, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var latest *Recommendation
	for _, r := range ms.recs {
		if r.SubjectID != subjectID || r.Expired(asOf) {
			continue
		}
		if r.Status != StatusPending && r.Status != StatusViewed {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, ErrRecommendationNotFound
	}
	cp := *latest
	return &cp, nil
}

// UpdateStatus applies a lifecycle transition.
func (ms *MemoryStore) UpdateStatus(ctx context.Context, id uuid.UUID, to Status, at time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	r, exists := ms.recs[id]
	if !exists {
		return ErrRecommendationNotFound
	}
	return r.Transition(to, at)
}

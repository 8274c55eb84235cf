package plan

import (
	"context"
	"sync"
)

// inMemSource implements the Source interface using an in-memory plan map.
type inMemSource struct {
	mu    sync.RWMutex
	plans map[string]Plan
}

// NewInMemSource returns an in-memory Source with a deep copy of the given plans.
// Deep copying prevents external modifications from affecting the source's state.
func NewInMemSource(plans ...Plan) Source {
	plansCopy := make(map[string]Plan, len(plans))
	for _, p := range plans {
		p.Limits = p.Limits.Clone()
		plansCopy[p.ID] = p
	}

	return &inMemSource{plans: plansCopy}
}

// Load returns a copy of all available plans from memory.
func (s *inMemSource) Load(ctx context.Context) (map[string]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plansCopy := make(map[string]Plan, len(s.plans))
	for id, p := range s.plans {
		p.Limits = p.Limits.Clone()
		plansCopy[id] = p
	}
	return plansCopy, nil
}

package plan

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Source defines how plans are loaded into the catalog.
type Source interface {
	Load(ctx context.Context) (map[string]Plan, error)
}

// Catalog holds the validated plan set.
// The underlying map is treated as immutable after construction;
// thread-safety depends on that (no runtime modifications).
type Catalog struct {
	plans map[string]Plan
}

// NewCatalog loads and validates plans from the given source.
func NewCatalog(ctx context.Context, src Source) (*Catalog, error) {
	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	if plans == nil {
		plans = make(map[string]Plan)
	}

	if err := validatePlans(plans); err != nil {
		return nil, err
	}

	return &Catalog{plans: plans}, nil
}

// Get returns the plan with the given ID.
func (c *Catalog) Get(planID string) (Plan, error) {
	p, exists := c.plans[planID]
	if !exists {
		return Plan{}, ErrPlanNotFound
	}
	return p, nil
}

// Verify checks that a plan ID is valid.
func (c *Catalog) Verify(planID string) error {
	if _, exists := c.plans[planID]; !exists {
		return ErrPlanNotFound
	}
	return nil
}

// All returns every plan, cheapest first by normalized monthly price.
func (c *Catalog) All() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MonthlyPrice() != out[j].MonthlyPrice() {
			return out[i].MonthlyPrice() < out[j].MonthlyPrice()
		}
		return out[i].ID < out[j].ID // deterministic order for equal prices
	})
	return out
}

// Public returns self-service plans, cheapest first.
func (c *Catalog) Public() []Plan {
	all := c.All()
	out := all[:0]
	for _, p := range all {
		if p.Public {
			out = append(out, p)
		}
	}
	return out
}

// CheapestFitting returns the cheapest public plan whose limits accommodate
// the given per-resource demand. Returns ErrNoPlanFits when nothing does.
func (c *Catalog) CheapestFitting(demand map[Resource]int64) (Plan, error) {
	for _, p := range c.Public() {
		if p.Fits(demand) {
			return p, nil
		}
	}
	return Plan{}, ErrNoPlanFits
}

// validatePlans checks plan configurations for validity.
func validatePlans(plans map[string]Plan) error {
	for planID, p := range plans {
		if p.ID != planID {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan ID mismatch: map key %s != plan.ID %s", planID, p.ID))
		}

		for res := range p.Limits {
			if !res.Valid() {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s declares unknown resource %q", planID, res))
			}
		}

		if p.Price.Amount < 0 {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has negative price: %d", planID, p.Price.Amount))
		}
	}
	return nil
}

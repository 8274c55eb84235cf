package plan

// Plan describes a subscription tier and its resource caps.
// Plans are immutable once referenced by an active subscription;
// commercial changes mint a new plan ID instead of editing in place.
type Plan struct {
	ID       string          `json:"id" yaml:"id"`
	Name     string          `json:"name" yaml:"name"`
	Category Category        `json:"category" yaml:"category"`
	Price    Money           `json:"price" yaml:"price"`
	Interval BillingInterval `json:"interval" yaml:"interval"`
	Limits   LimitSet        `json:"limits" yaml:"limits"`
	Public   bool            `json:"public" yaml:"public"` // available for self-service signup
}

// MonthlyPrice normalizes the plan price to a per-month amount so plans
// on different billing intervals compare on the same axis.
func (p Plan) MonthlyPrice() int64 {
	if p.Interval == BillingIntervalAnnual {
		return p.Price.Amount / 12
	}
	return p.Price.Amount
}

// Fits reports whether the plan's limits accommodate the given per-resource
// demand. Resources absent from the demand map are not checked.
func (p Plan) Fits(demand map[Resource]int64) bool {
	for res, need := range demand {
		if !p.Limits.Get(res).Allows(need) {
			return false
		}
	}
	return true
}

// Change represents a limit delta between two plans for one resource.
type Change struct {
	From Limit `json:"from"`
	To   Limit `json:"to"`
}

// Comparison contains the limit differences between two plans.
type Comparison struct {
	Increased map[Resource]Change
	Decreased map[Resource]Change
}

// HasDecreases reports whether moving to the target plan loses capacity.
func (c *Comparison) HasDecreases() bool {
	return len(c.Decreased) > 0
}

// Compare returns the limit differences between current and target plans.
// Unknown resources on either side count as Disabled, matching LimitSet.Get.
func Compare(current, target *Plan) *Comparison {
	if current == nil || target == nil {
		return nil
	}

	cmp := &Comparison{
		Increased: make(map[Resource]Change),
		Decreased: make(map[Resource]Change),
	}

	for _, res := range KnownResources {
		from := current.Limits.Get(res)
		to := target.Limits.Get(res)
		if from == to {
			continue
		}

		change := Change{From: from, To: to}
		switch {
		case from.IsUnlimited():
			// Leaving unlimited is always a decrease.
			cmp.Decreased[res] = change
		case to.IsUnlimited():
			cmp.Increased[res] = change
		case to.Value() > from.Value():
			cmp.Increased[res] = change
		default:
			cmp.Decreased[res] = change
		}
	}

	return cmp
}

package plan

import "fmt"

// Resource represents a metered capability whose consumption is tracked.
type Resource string

// Metered resources. filesDaily and filesMonthly both count uploads,
// at different window granularities; the gate checks both.
const (
	ResourceTranscriptions   Resource = "transcriptions"
	ResourceFilesDaily       Resource = "filesDaily"
	ResourceFilesMonthly     Resource = "filesMonthly"
	ResourceConcurrentJobs   Resource = "concurrentJobs"
	ResourceVoiceSynthesis   Resource = "voiceSynthesis"
	ResourceExports          Resource = "exports"
	ResourceAudioDurationMin Resource = "audioDurationMinutes"
)

// KnownResources lists every resource the engine meters.
var KnownResources = []Resource{
	ResourceTranscriptions,
	ResourceFilesDaily,
	ResourceFilesMonthly,
	ResourceConcurrentJobs,
	ResourceVoiceSynthesis,
	ResourceExports,
	ResourceAudioDurationMin,
}

// Valid reports whether r is a known metered resource.
func (r Resource) Valid() bool {
	for _, known := range KnownResources {
		if r == known {
			return true
		}
	}
	return false
}

// Limit is a tagged per-period cap. The zero value is Disabled, so a
// lookup miss fails closed. Wire form keeps the conventional sentinels
// (-1 unlimited, 0 disabled, n cap) for SQL and JSON compatibility, but
// code never does arithmetic on the sentinels directly.
type Limit struct {
	n int64
}

// Unlimited places no cap on consumption.
var Unlimited = Limit{n: -1}

// Disabled means the feature is not available on the plan.
var Disabled = Limit{n: 0}

// Bounded returns a hard cap of n units per period.
// Non-positive n collapses to Disabled rather than minting a bogus sentinel.
func Bounded(n int64) Limit {
	if n <= 0 {
		return Disabled
	}
	return Limit{n: n}
}

// FromSentinel converts the stored integer form back into a Limit.
func FromSentinel(n int64) Limit {
	if n < 0 {
		return Unlimited
	}
	return Limit{n: n}
}

func (l Limit) IsUnlimited() bool { return l.n < 0 }
func (l Limit) IsDisabled() bool  { return l.n == 0 }

// Value returns the cap for bounded limits. Zero for Disabled,
// -1 for Unlimited (the sentinel wire form).
func (l Limit) Value() int64 { return l.n }

// Allows reports whether total consumption would stay within the limit.
func (l Limit) Allows(total int64) bool {
	if l.IsUnlimited() {
		return true
	}
	return total <= l.n
}

func (l Limit) String() string {
	switch {
	case l.IsUnlimited():
		return "unlimited"
	case l.IsDisabled():
		return "disabled"
	default:
		return fmt.Sprintf("%d", l.n)
	}
}

// MarshalJSON emits the integer sentinel form.
func (l Limit) MarshalJSON() ([]byte, error) {
	return fmt.Appendf(nil, "%d", l.n), nil
}

// UnmarshalJSON accepts the integer sentinel form.
func (l *Limit) UnmarshalJSON(data []byte) error {
	var n int64
	if _, err := fmt.Sscanf(string(data), "%d", &n); err != nil {
		return fmt.Errorf("plan: invalid limit %q: %w", data, err)
	}
	*l = FromSentinel(n)
	return nil
}

// MarshalYAML emits the integer sentinel form.
func (l Limit) MarshalYAML() (any, error) {
	return l.n, nil
}

// UnmarshalYAML accepts the integer sentinel form.
func (l *Limit) UnmarshalYAML(unmarshal func(any) error) error {
	var n int64
	if err := unmarshal(&n); err != nil {
		return err
	}
	*l = FromSentinel(n)
	return nil
}

// LimitSet maps resources to their effective caps.
type LimitSet map[Resource]Limit

// Get returns the limit for a resource, Disabled when absent.
// Unknown resources fail closed instead of defaulting to unlimited.
func (s LimitSet) Get(r Resource) Limit {
	return s[r] // zero value is Disabled
}

// AllUnlimited reports whether every known resource is uncapped,
// i.e. the subject sits on a top-tier plan.
func (s LimitSet) AllUnlimited() bool {
	if len(s) == 0 {
		return false
	}
	for _, l := range s {
		if !l.IsUnlimited() {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the set.
func (s LimitSet) Clone() LimitSet {
	out := make(LimitSet, len(s))
	for r, l := range s {
		out[r] = l
	}
	return out
}

// Money represents a monetary amount in the smallest currency unit.
// $10.99 USD is Amount: 1099, Currency: "USD".
type Money struct {
	Amount   int64  `json:"amount" yaml:"amount"`
	Currency string `json:"currency" yaml:"currency"`
}

// Category groups plans by target audience.
type Category string

const (
	CategoryPersonal   Category = "personal"
	CategoryBusiness   Category = "business"
	CategoryEnterprise Category = "enterprise"
	CategoryCustom     Category = "custom"
)

// BillingInterval represents the billing frequency for a plan.
type BillingInterval string

const (
	BillingIntervalNone    BillingInterval = "none" // free plans
	BillingIntervalMonthly BillingInterval = "monthly"
	BillingIntervalAnnual  BillingInterval = "annual"
)

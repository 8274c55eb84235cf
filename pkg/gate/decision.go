package gate

import (
	"time"

	"github.com/scribeworks/quotakit/pkg/ledger"
	"github.com/scribeworks/quotakit/pkg/period"
	"github.com/scribeworks/quotakit/pkg/plan"
)

// ReasonCode is the machine-readable cause of a denial.
type ReasonCode string

const (
	// ReasonFeatureDisabled: the plan does not include the resource at
	// all (limit 0). Not retryable; the subject must upgrade. Unknown
	// resources report the same code to fail safe.
	ReasonFeatureDisabled ReasonCode = "feature_disabled"

	// ReasonQuotaExceeded: the period cap would be exceeded. Retryable
	// after the period resets, or via upgrade.
	ReasonQuotaExceeded ReasonCode = "quota_exceeded"

	// ReasonStorageUnavailable: the counter store could not be reached.
	// The gate fails closed rather than risk unmetered admission.
	ReasonStorageUnavailable ReasonCode = "storage_unavailable"
)

// WindowStatus reports one checked window. Resources tracked at two
// granularities produce one entry per window.
type WindowStatus struct {
	Resource    plan.Resource   `json:"resource"`
	PeriodType  period.Type     `json:"periodType"`
	PeriodStart time.Time       `json:"periodStart"`
	PeriodEnd   time.Time       `json:"periodEnd"`
	Limit       plan.Limit      `json:"limit"`
	Consumed    ledger.Quantity `json:"consumed"`
	Passed      bool            `json:"passed"`
}

// Remaining returns the capacity left in the window, never negative.
func (w WindowStatus) Remaining() ledger.Quantity {
	if w.Limit.IsUnlimited() {
		return ledger.QuantityFromInt(-1)
	}
	rem := ledger.QuantityFromInt(w.Limit.Value()) - w.Consumed
	if rem < 0 {
		return 0
	}
	return rem
}

// Decision is the admission verdict. Denial is a normal return value of
// CheckQuota, never an error; only infrastructure faults surface as errors.
type Decision struct {
	Allowed    bool            `json:"allowed"`
	Reason     ReasonCode      `json:"reason,omitempty"`
	Resource   plan.Resource   `json:"resource"`
	Limit      plan.Limit      `json:"limit"`
	Remaining  ledger.Quantity `json:"remaining"` // -1 when unlimited
	PeriodEnd  time.Time       `json:"periodEnd,omitzero"`
	Suggestion string          `json:"suggestion,omitempty"`
	Windows    []WindowStatus  `json:"windows,omitempty"`
}

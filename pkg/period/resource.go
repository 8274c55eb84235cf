package period

import (
	"time"

	"github.com/scribeworks/quotakit/pkg/plan"
)

// resourcePeriods declares the tracking granularity of each metered
// resource. File uploads are tracked under both a daily and a monthly
// window; the enforcement gate checks every declared window independently.
var resourcePeriods = map[plan.Resource][]Type{
	plan.ResourceTranscriptions:   {Monthly},
	plan.ResourceFilesDaily:       {Daily},
	plan.ResourceFilesMonthly:     {Monthly},
	plan.ResourceConcurrentJobs:   {Monthly}, // high-water mark per billing month
	plan.ResourceVoiceSynthesis:   {Monthly},
	plan.ResourceExports:          {Monthly},
	plan.ResourceAudioDurationMin: {Monthly},
}

// TypesFor returns the period granularities a resource is tracked under.
// Unknown resources return nil; the gate treats them as disabled.
func TypesFor(res plan.Resource) []Type {
	return resourcePeriods[res]
}

// WindowsFor resolves every window a resource is tracked under at asOf.
func WindowsFor(res plan.Resource, asOf time.Time) []Window {
	types := TypesFor(res)
	if len(types) == 0 {
		return nil
	}
	windows := make([]Window, 0, len(types))
	for _, t := range types {
		windows = append(windows, Resolve(t, asOf))
	}
	return windows
}

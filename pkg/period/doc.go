// Package period computes the billing windows that usage limits apply over.
//
// Every metered resource is tracked in one or more calendar-aligned UTC
// windows (daily, monthly, yearly). Window resolution is a pure function of
// the reference time, so callers pin time in tests and period rollover needs
// no reset write: once the reference time crosses a boundary the resolved
// window simply changes and a fresh counter key comes into play.
//
//	w := period.Resolve(period.Monthly, time.Now())
//	// w.Start = first of month 00:00 UTC, w.End = first of next month
//
// Resources declare their own granularities via TypesFor; file uploads are
// the notable case tracked at two granularities at once (daily and monthly).
package period

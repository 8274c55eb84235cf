// Package recommend turns trailing usage history into plan-change
// proposals: upgrades when a subject keeps brushing its caps, downgrades
// when it pays for headroom it never touches.
//
// The engine only reads closed-period counters, so it runs on a schedule
// (or on demand) fully decoupled from the admission path. Scoring
// thresholds live in Config and default to:
//
//   - utilization >= 0.9 in 2 of the last 3 periods triggers an upgrade
//     to the cheapest plan fitting the observed peak with 20% headroom;
//   - utilization <= 0.2 across the whole window triggers a downgrade
//     when a cheaper plan still holds 1.5x the observed peak.
//
// Confidence weighs sample size against the utilization gap and is
// clamped to [0, 1]. Subjects on all-unlimited plans, or with fewer than
// two closed periods of history, produce no recommendation.
//
// Recommendations are immutable except for lifecycle transitions
// (pending -> viewed -> accepted | dismissed) and expire after a fixed
// horizon; a materially different fresh proposal dismisses the old one.
package recommend

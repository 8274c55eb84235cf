// Package quota exposes the enforcement gate and recommendation store
// over HTTP.
//
// The surface follows a two-phase metering flow: callers probe or
// check quota before starting work and record actual usage after it
// completes. Denials are ordinary 200 responses with allowed=false;
// 503 is reserved for counter storage failures, where the gate fails
// closed.
//
//	GET  /quota/{subjectID}/{resource}          read-only probe
//	POST /quota/{subjectID}/{resource}/check    admission check
//	POST /usage/{subjectID}/{resource}/record   record actual usage
//	GET  /recommendations/{subjectID}           current plan recommendation
//	PUT  /recommendations/{subjectID}/status    lifecycle transition
package quota

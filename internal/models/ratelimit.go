package models

import "time"

// RateLimitDecision is the outcome of one admission check.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Count     int64
	Remaining int
	ResetAt   time.Time
	// FailedOpen is set when the counter store could not be reached and the call was let through.
	FailedOpen bool
}

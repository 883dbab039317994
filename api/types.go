// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations, DTOs, and constants.

package api

// Outcome is the value a waiting fiber is resumed with.
type Outcome int

const (
	OutcomeReadReady Outcome = 0 // descriptor fired
	OutcomeTimedOut  Outcome = 1 // timer fired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReadReady:
		return "read-ready"
	case OutcomeTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// WaitMetrics provides a standard layout for wait statistics reporting.
type WaitMetrics struct {
	Suspended uint64
	ReadReady uint64
	TimedOut  uint64
	Cancelled uint64
	Errors    uint64
	Pending   int
}

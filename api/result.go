// Package api
// Author: momentics@gmail.com
//
// Fiber engine run results.

package api

// RunStatus is the tagged outcome of driving a fiber forward.
type RunStatus int

const (
	RunYielded RunStatus = iota // fiber suspended again
	RunDone                     // fiber completed or exited early
	RunError                    // fiber failed
)

func (s RunStatus) String() string {
	switch s {
	case RunYielded:
		return "yielded"
	case RunDone:
		return "done"
	case RunError:
		return "error"
	default:
		return "unknown"
	}
}

// RunResult is returned by the fiber engine after each resume.
type RunResult struct {
	Status RunStatus
	Code   int   // exit code for RunDone
	Err    error // cause for RunError
}

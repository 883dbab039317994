// File: api/events.go
// Package api defines core event types for hioload-wait.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Source says which subsystem produced an Event.
type Source uint8

const (
	SourceRead   Source = iota // multiplexer reported read readiness
	SourceTimer                // armed timer expired
	SourcePosted               // zero-delay posted event serviced
)

func (s Source) String() string {
	switch s {
	case SourceRead:
		return "read"
	case SourceTimer:
		return "timer"
	case SourcePosted:
		return "posted"
	default:
		return "unknown"
	}
}

// Event is dispatched by the loop to its EventSink.
type Event struct {
	Tag    uint64 // suspension record identifier
	Source Source
}

// EventSink receives every tagged event the loop services.
type EventSink interface {
	Deliver(ev Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ev Event)

// Deliver calls f(ev).
func (f EventSinkFunc) Deliver(ev Event) { f(ev) }

// File: wait/handle.go
// Author: momentics <momentics@gmail.com>

package wait

import (
	"time"

	"github.com/momentics/hioload-wait/api"
	"github.com/momentics/hioload-wait/host"
)

type handleState uint8

const (
	stateNew handleState = iota
	statePending
	stateFired
	stateCancelled
)

func (s handleState) String() string {
	switch s {
	case stateNew:
		return "new"
	case statePending:
		return "pending"
	case stateFired:
		return "fired"
	case stateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Handle ties one suspended fiber to one watched descriptor and an optional timer.
type Handle struct {
	id uint64
	co *host.CoContext
	fd int

	slot *api.Slot

	hasTimeout bool
	delay      time.Duration
	timerArmed bool
	timer      api.TimerID
	posted     bool
	post       api.PostID

	state   handleState
	outcome api.Outcome
}

// ID is the record identifier events are tagged with.
func (h *Handle) ID() uint64 { return h.id }

// FD is the watched descriptor.
func (h *Handle) FD() int { return h.fd }

// CoContext is the suspended fiber's slot.
func (h *Handle) CoContext() *host.CoContext { return h.co }

// Pending reports whether neither event has fired and the wait was not cancelled.
func (h *Handle) Pending() bool { return h.state == statePending }

// Outcome is valid once the handle has fired.
func (h *Handle) Outcome() api.Outcome { return h.outcome }

// holdsSlot reports whether the descriptor slot is still held.
func (h *Handle) holdsSlot() bool { return h.slot != nil }

// timerPending reports whether a timer or posted event is still outstanding.
func (h *Handle) timerPending() bool { return h.timerArmed || h.posted }

// File: wait/timers.go
// Author: momentics <momentics@gmail.com>

package wait

import (
	"errors"
	"log"
	"time"

	"github.com/momentics/hioload-wait/api"
)

// timers arms the optional deadline of a wait. A zero delay is posted to run on
// the next loop pass; without a posted queue it degrades to a 0ms timer.
type timers struct {
	t        api.Timers
	fastPost bool
	warned   bool
	log      *log.Logger
}

func (tr *timers) schedule(h *Handle, delay time.Duration) error {
	if delay == 0 && tr.fastPost {
		id, err := tr.t.Post(h.id)
		if err == nil {
			h.posted = true
			h.post = id
			return nil
		}
		if !errors.Is(err, api.ErrNotSupported) {
			return err
		}
	}
	if delay == 0 && !tr.warned {
		tr.warned = true
		tr.log.Printf("[wait] zero-timeout wait without posted events, using a 0ms timer; this will hurt performance")
	}
	id, err := tr.t.Arm(delay, h.id)
	if err != nil {
		return err
	}
	h.timerArmed = true
	h.timer = id
	return nil
}

func (tr *timers) cancel(h *Handle) {
	if h.timerArmed {
		tr.t.Disarm(h.timer)
		h.timerArmed = false
	}
	if h.posted {
		tr.t.Unpost(h.post)
		h.posted = false
	}
}

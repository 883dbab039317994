// File: wait/cancel.go
// Author: momentics <momentics@gmail.com>

package wait

import "github.com/momentics/hioload-wait/host"

// cancel is the cleanup hook installed on a suspended fiber's slot. It tears
// down whatever the wait still holds and never resumes the fiber.
func (c *Coordinator) cancel(data any) {
	h, ok := data.(*Handle)
	if !ok || h == nil {
		return
	}
	c.Cancel(h)
}

// Cancel tears down h's registrations. Repeated calls, or calls after the
// wait fired, do nothing.
func (c *Coordinator) Cancel(h *Handle) {
	if h.state != statePending {
		return
	}
	h.state = stateCancelled
	delete(c.handles, h.id)
	c.pending.Add(-1)

	if h.co.PendingData() == any(h) {
		h.co.ClearCleanup()
	}
	c.timers.cancel(h)
	c.desc.release(h)
	c.count(&c.cancelled, "wait.cancelled")
	if c.debug {
		c.log.Printf("[wait] record %d on fd %d cancelled", h.id, h.fd)
	}
}

// Lookup returns the pending handle for a record ID.
func (c *Coordinator) Lookup(id uint64) (*Handle, bool) {
	h, ok := c.handles[id]
	return h, ok
}

// AbortAll aborts every request that still has a pending wait and returns how
// many were aborted. Call it from the loop goroutine or after the loop stopped.
func (c *Coordinator) AbortAll() int {
	reqs := make(map[*host.Request]struct{})
	for _, h := range c.handles {
		reqs[h.co.Request()] = struct{}{}
	}
	for r := range reqs {
		r.Abort()
	}
	for _, h := range c.handles {
		c.Cancel(h)
	}
	return len(reqs)
}

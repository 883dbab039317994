// File: wait/descriptors.go
// Author: momentics <momentics@gmail.com>

package wait

import (
	"fmt"
	"log"

	"github.com/momentics/hioload-wait/api"
)

// descriptors acquires a connection slot for a watched fd and toggles its
// read interest. release is idempotent.
type descriptors struct {
	mux   api.Multiplexer
	slots api.SlotAllocator
	log   *log.Logger
}

func (d *descriptors) register(h *Handle) error {
	s, err := d.slots.Acquire(h.fd)
	if err != nil {
		return api.Wrap(api.ErrCodeResourceExhausted, err, fmt.Sprintf("no free connection slot for fd %d: %v", h.fd, err)).
			WithContext("fd", h.fd)
	}
	if err := d.mux.AddRead(h.fd, h.id); err != nil {
		if rerr := d.slots.Release(s); rerr != nil {
			d.log.Printf("[wait] release slot %d for fd %d: %v", s.Index, h.fd, rerr)
		}
		return fmt.Errorf("watch fd %d: %w", h.fd, err)
	}
	h.slot = s
	return nil
}

func (d *descriptors) release(h *Handle) {
	if h.slot == nil {
		return
	}
	if err := d.mux.DelRead(h.fd); err != nil {
		d.log.Printf("[wait] remove read interest for fd %d: %v", h.fd, err)
	}
	if err := d.slots.Release(h.slot); err != nil {
		d.log.Printf("[wait] release slot %d for fd %d: %v", h.slot.Index, h.fd, err)
	}
	h.slot = nil
}

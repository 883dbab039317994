// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"fmt"

	"github.com/momentics/hioload-wait/api"
)

// SlotPool is a deterministic api.SlotAllocator: it hands out up to Capacity
// slots and fails the next FailNext acquisitions regardless of capacity.
type SlotPool struct {
	Capacity int
	FailNext int

	Acquired int // total successful acquisitions
	Released int // total successful releases

	held map[*api.Slot]bool
	next int
}

var _ api.SlotAllocator = (*SlotPool)(nil)

// NewSlotPool creates a fake pool with the given capacity.
func NewSlotPool(capacity int) *SlotPool {
	return &SlotPool{Capacity: capacity, held: make(map[*api.Slot]bool)}
}

func (p *SlotPool) Acquire(fd int) (*api.Slot, error) {
	if p.FailNext > 0 {
		p.FailNext--
		return nil, fmt.Errorf("fake pool: %w", api.ErrResourceExhausted)
	}
	if len(p.held) >= p.Capacity {
		return nil, fmt.Errorf("fake pool: %w", api.ErrResourceExhausted)
	}
	s := &api.Slot{Index: p.next, Fd: fd}
	p.next++
	p.held[s] = true
	p.Acquired++
	return s, nil
}

func (p *SlotPool) Release(s *api.Slot) error {
	if !p.held[s] {
		return fmt.Errorf("fake pool: %w: slot released twice or foreign", api.ErrInvalidArgument)
	}
	delete(p.held, s)
	p.Released++
	return nil
}

func (p *SlotPool) InUse() int { return len(p.held) }

// File: pool/slotpool.go
// Author: momentics <momentics@gmail.com>
//
// Bounded slot allocator backed by a FIFO free list.

package pool

import (
	"fmt"
	"sync"

	"code.hybscloud.com/iox"
	"github.com/eapache/queue"

	"github.com/momentics/hioload-wait/api"
)

// ErrSlotsExhausted is returned by Acquire when every slot is held.
// It is transient and matches iox.ErrWouldBlock under errors.Is.
var ErrSlotsExhausted = fmt.Errorf("connection slots: %w: %w", api.ErrResourceExhausted, iox.ErrWouldBlock)

// SlotPool is a fixed-capacity slot table. Safe for concurrent use, although the
// wait loop only touches it from its own goroutine.
type SlotPool struct {
	mu    sync.Mutex
	slots []api.Slot
	held  []bool
	free  *queue.Queue // of int (slot index)
}

var _ api.SlotAllocator = (*SlotPool)(nil)

// NewSlotPool creates a table with capacity slots (minimum 1).
func NewSlotPool(capacity int) *SlotPool {
	if capacity <= 0 {
		capacity = 1
	}
	p := &SlotPool{
		slots: make([]api.Slot, capacity),
		held:  make([]bool, capacity),
		free:  queue.New(),
	}
	for i := range p.slots {
		p.slots[i] = api.Slot{Index: i, Fd: -1}
		p.free.Add(i)
	}
	return p
}

// Acquire binds a free slot to fd.
func (p *SlotPool) Acquire(fd int) (*api.Slot, error) {
	if fd < 0 {
		return nil, fmt.Errorf("%w: fd %d", api.ErrInvalidArgument, fd)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.free.Length() == 0 {
		return nil, ErrSlotsExhausted
	}
	i := p.free.Remove().(int)
	p.held[i] = true
	p.slots[i].Fd = fd
	return &p.slots[i], nil
}

// Release returns s to the table. Releasing a free or foreign slot is an error.
func (p *SlotPool) Release(s *api.Slot) error {
	if s == nil {
		return fmt.Errorf("%w: nil slot", api.ErrInvalidArgument)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	i := s.Index
	if i < 0 || i >= len(p.slots) || &p.slots[i] != s {
		return fmt.Errorf("%w: slot %d not owned by this pool", api.ErrInvalidArgument, i)
	}
	if !p.held[i] {
		return fmt.Errorf("%w: slot %d released twice", api.ErrInvalidArgument, i)
	}
	p.held[i] = false
	p.slots[i].Fd = -1
	p.free.Add(i)
	return nil
}

// InUse reports the number of held slots.
func (p *SlotPool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots) - p.free.Length()
}

// Cap reports the table capacity.
func (p *SlotPool) Cap() int {
	return len(p.slots)
}

// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Defines the bounded connection-slot allocator used to wrap watched descriptors.

package api

// Slot is one entry of the bounded connection table wrapping a raw descriptor.
type Slot struct {
	Index int // position in the table
	Fd    int // wrapped descriptor, -1 when free
}

// SlotAllocator hands out connection slots from a bounded table.
type SlotAllocator interface {
	// Acquire returns a free slot bound to fd, or an error wrapping
	// ErrResourceExhausted when the table is full.
	Acquire(fd int) (*Slot, error)

	// Release returns a slot to the table.
	Release(s *Slot) error

	// InUse reports the number of slots currently held.
	InUse() int
}

// File: host/coctx.go
// Author: momentics <momentics@gmail.com>

package host

import "github.com/momentics/hioload-wait/fiber"

// CoContext is the single suspension slot of one fiber. A pending operation
// installs a cleanup hook that tears it down if the fiber is discarded before
// the operation completes.
type CoContext struct {
	Fiber *fiber.Fiber

	req      *Request
	parent   *CoContext
	children []*CoContext

	cleanup func(data any)
	data    any
}

// Request returns the owning request.
func (co *CoContext) Request() *Request { return co.req }

// Parent returns the spawning fiber's slot, nil for the entry fiber.
func (co *CoContext) Parent() *CoContext { return co.parent }

// Children returns fibers spawned by this one.
func (co *CoContext) Children() []*CoContext { return co.children }

// IsEntry reports whether this is the request's entry fiber.
func (co *CoContext) IsEntry() bool { return co.parent == nil }

// SetCleanup binds a pending operation to the slot.
func (co *CoContext) SetCleanup(fn func(data any), data any) {
	co.cleanup = fn
	co.data = data
}

// ClearCleanup marks the pending operation as no longer cancellable.
func (co *CoContext) ClearCleanup() {
	co.cleanup = nil
	co.data = nil
}

// Pending reports whether a cleanup hook is installed.
func (co *CoContext) Pending() bool { return co.cleanup != nil }

// PendingData returns the data bound with SetCleanup.
func (co *CoContext) PendingData() any { return co.data }

// CleanupPending runs and clears the installed hook, if any. Idempotent.
func (co *CoContext) CleanupPending() {
	fn, data := co.cleanup, co.data
	if fn == nil {
		return
	}
	co.cleanup = nil
	co.data = nil
	fn(data)
}

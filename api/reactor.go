// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract read-interest multiplexer used to watch foreign descriptors
// (epoll on Linux, fakes in tests).

package api

// Ready is one readiness notification returned by a Multiplexer poll.
type Ready struct {
	Fd  int    // descriptor that became ready
	Tag uint64 // tag supplied at AddRead time
}

// Multiplexer toggles read-interest registrations for raw descriptors.
type Multiplexer interface {
	// AddRead must start watching fd for read readiness and report it with tag.
	AddRead(fd int, tag uint64) error

	// DelRead must stop watching fd. Removing an unknown fd is an error.
	DelRead(fd int) error
}

// Poller is a Multiplexer that can also be driven by an event loop.
type Poller interface {
	Multiplexer

	// Poll blocks up to timeoutMs (negative blocks forever) and fills out.
	Poll(timeoutMs int, out []Ready) (int, error)

	// Wake interrupts a blocking Poll; safe to call from any goroutine.
	Wake() error

	// Close cleans up the backend.
	Close() error
}

// Package wait
// Author: momentics <momentics@gmail.com>
//
// Suspends a fiber until a descriptor becomes read-ready or an optional timeout
// elapses, then resumes it with an api.Outcome saying which event won.
//
// A wait is tracked by a Handle looked up by its record ID. The first event the
// loop delivers for that ID tears down both registrations and resumes the
// fiber; anything delivered later for the same ID is ignored. If the owning
// request is destroyed first, the cleanup hook bound to the fiber's slot tears
// the registrations down without resuming.
//
// Everything here runs on the event loop goroutine.
package wait

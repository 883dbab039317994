// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-threaded event loop for hioload-wait. One goroutine services, in order,
// externally submitted tasks, expired timers, zero-delay posted events and
// multiplexer readiness. Everything tagged is handed to an api.EventSink.
package concurrency

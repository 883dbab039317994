// Package api
// Author: momentics
//
// Timer contract for one-shot deadlines and zero-delay posted events.

package api

import "time"

// TimerID identifies an armed timer.
type TimerID uint64

// PostID identifies a posted zero-delay event.
type PostID uint64

// Timers abstracts one-shot timer scheduling for the event loop.
// Expiry and posted events are delivered to the loop's EventSink with
// SourceTimer and SourcePosted respectively.
type Timers interface {
	// Arm schedules a one-shot event for tag after delay.
	Arm(delay time.Duration, tag uint64) (TimerID, error)

	// Disarm cancels an armed timer. Reports whether it was still pending.
	Disarm(id TimerID) bool

	// Post queues an event for tag on the next loop pass.
	// Returns ErrNotSupported when the loop has no fast-post queue.
	Post(tag uint64) (PostID, error)

	// Unpost drops a posted event that has not been serviced yet.
	Unpost(id PostID) bool

	// Now returns the loop's cached time.
	Now() time.Time
}

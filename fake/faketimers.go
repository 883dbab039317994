// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"time"

	"github.com/momentics/hioload-wait/api"
)

// Timers is a manual api.Timers: nothing fires until the test says so.
type Timers struct {
	NoPost bool // make Post report api.ErrNotSupported

	Armed  map[api.TimerID]Timer
	Posted map[api.PostID]uint64

	nextTimer api.TimerID
	nextPost  api.PostID
	now       time.Time
}

// Timer is one armed fake timer.
type Timer struct {
	Delay time.Duration
	Tag   uint64
}

var _ api.Timers = (*Timers)(nil)

// NewTimers creates an empty manual timer set.
func NewTimers() *Timers {
	return &Timers{
		Armed:  make(map[api.TimerID]Timer),
		Posted: make(map[api.PostID]uint64),
		now:    time.Unix(0, 0),
	}
}

func (t *Timers) Arm(delay time.Duration, tag uint64) (api.TimerID, error) {
	t.nextTimer++
	t.Armed[t.nextTimer] = Timer{Delay: delay, Tag: tag}
	return t.nextTimer, nil
}

func (t *Timers) Disarm(id api.TimerID) bool {
	if _, ok := t.Armed[id]; !ok {
		return false
	}
	delete(t.Armed, id)
	return true
}

func (t *Timers) Post(tag uint64) (api.PostID, error) {
	if t.NoPost {
		return 0, api.ErrNotSupported
	}
	t.nextPost++
	t.Posted[t.nextPost] = tag
	return t.nextPost, nil
}

func (t *Timers) Unpost(id api.PostID) bool {
	if _, ok := t.Posted[id]; !ok {
		return false
	}
	delete(t.Posted, id)
	return true
}

func (t *Timers) Now() time.Time { return t.now }

// Pending reports armed timers plus posted events.
func (t *Timers) Pending() int {
	return len(t.Armed) + len(t.Posted)
}

// Expire removes every timer and posted event carrying tag and returns the
// events a loop would have delivered for them.
func (t *Timers) Expire(tag uint64) []api.Event {
	var evs []api.Event
	for id, tm := range t.Armed {
		if tm.Tag == tag {
			delete(t.Armed, id)
			evs = append(evs, api.Event{Tag: tag, Source: api.SourceTimer})
		}
	}
	for id, tg := range t.Posted {
		if tg == tag {
			delete(t.Posted, id)
			evs = append(evs, api.Event{Tag: tag, Source: api.SourcePosted})
		}
	}
	return evs
}

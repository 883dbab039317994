// File: adapters/sink_adapter.go
// Package adapters
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// EventSink glue between the event loop and whatever consumes tagged events.

package adapters

import (
	"github.com/momentics/hioload-wait/api"
)

// Counter receives per-source event counts.
type Counter interface {
	Add(key string, delta int64)
}

// SinkAdapter forwards loop events to a target sink and counts them by source
// as "loop.events.<source>".
type SinkAdapter struct {
	target  api.EventSink
	metrics Counter
	keys    [3]string
}

var _ api.EventSink = (*SinkAdapter)(nil)

// NewSinkAdapter wraps target; metrics may be nil.
func NewSinkAdapter(target api.EventSink, metrics Counter) *SinkAdapter {
	s := &SinkAdapter{target: target, metrics: metrics}
	for _, src := range []api.Source{api.SourceRead, api.SourceTimer, api.SourcePosted} {
		s.keys[src] = "loop.events." + src.String()
	}
	return s
}

// Deliver counts ev and hands it to the target.
func (s *SinkAdapter) Deliver(ev api.Event) {
	if s.metrics != nil && int(ev.Source) < len(s.keys) {
		s.metrics.Add(s.keys[ev.Source], 1)
	}
	s.target.Deliver(ev)
}

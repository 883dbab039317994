// File: internal/concurrency/eventloop.go
// Package concurrency implements the single-threaded wait loop.

package concurrency

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"code.hybscloud.com/iox"
	"github.com/eapache/queue"

	"github.com/momentics/hioload-wait/api"
)

const (
	stateIdle int32 = iota
	stateRunning
	stateStopping
	stateStopped
)

// LoopConfig tunes a Loop.
type LoopConfig struct {
	MaxEvents int           // readiness batch size per poll
	FastPost  bool          // enable the zero-delay posted queue
	Tick      time.Duration // longest idle poll; 0 blocks until an event
	Pin       bool          // pin the loop thread to CPU
	CPU       int           // target CPU when Pin is set
	Logger    *log.Logger   // defaults to log.Default()
}

type postEntry struct {
	id  api.PostID
	tag uint64
}

// Loop drives a Poller, a timer heap and a posted-event queue from one goroutine.
// Arm, Disarm, Post, Unpost and Now must be called from the loop goroutine
// (i.e. from inside a delivered event or a submitted task). Submit and Stop
// are safe from any goroutine.
type Loop struct {
	poller api.Poller
	sink   api.EventSink
	log    *log.Logger

	timers     *timerQueue
	fastPost   bool
	posted     *queue.Queue // of postEntry
	postedLive map[api.PostID]uint64
	nextPost   api.PostID

	ingressMu sync.Mutex
	ingress   *queue.Queue // of func()

	ready []api.Ready
	tick  time.Duration
	pin   bool
	cpu   int
	now   time.Time
	state atomic.Int32
	ticks uint64

	// published once per pass for readers off the loop goroutine
	timersGauge atomic.Int64
	postedGauge atomic.Int64
}

var _ api.Timers = (*Loop)(nil)

// NewEventLoop creates a loop over poller. Events are delivered to sink, which
// may be set later with SetSink but before Run.
func NewEventLoop(poller api.Poller, sink api.EventSink, cfg LoopConfig) *Loop {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = 128
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Loop{
		poller:     poller,
		sink:       sink,
		log:        cfg.Logger,
		timers:     newTimerQueue(),
		fastPost:   cfg.FastPost,
		posted:     queue.New(),
		postedLive: make(map[api.PostID]uint64),
		ingress:    queue.New(),
		ready:      make([]api.Ready, cfg.MaxEvents),
		tick:       cfg.Tick,
		pin:        cfg.Pin,
		cpu:        cfg.CPU,
		now:        time.Now(),
	}
}

// SetSink installs the event consumer.
func (l *Loop) SetSink(sink api.EventSink) {
	l.sink = sink
}

// Now returns the time cached at the start of the current loop pass.
func (l *Loop) Now() time.Time {
	return l.now
}

// Arm schedules a one-shot SourceTimer event for tag.
func (l *Loop) Arm(delay time.Duration, tag uint64) (api.TimerID, error) {
	if delay < 0 {
		return 0, fmt.Errorf("%w: negative delay %v", api.ErrInvalidArgument, delay)
	}
	if l.state.Load() == stateStopped {
		return 0, api.ErrLoopClosed
	}
	return l.timers.arm(l.now.Add(delay), tag), nil
}

// Disarm cancels an armed timer.
func (l *Loop) Disarm(id api.TimerID) bool {
	return l.timers.disarm(id)
}

// Post queues a SourcePosted event for tag, serviced on the next loop pass.
func (l *Loop) Post(tag uint64) (api.PostID, error) {
	if !l.fastPost {
		return 0, api.ErrNotSupported
	}
	if l.state.Load() == stateStopped {
		return 0, api.ErrLoopClosed
	}
	l.nextPost++
	id := l.nextPost
	l.posted.Add(postEntry{id: id, tag: tag})
	l.postedLive[id] = tag
	return id, nil
}

// Unpost drops a posted event. The queue entry stays behind as a tombstone.
func (l *Loop) Unpost(id api.PostID) bool {
	if _, ok := l.postedLive[id]; !ok {
		return false
	}
	delete(l.postedLive, id)
	return true
}

// PendingTimers reports armed timers.
func (l *Loop) PendingTimers() int { return l.timers.len() }

// PendingPosted reports live posted events.
func (l *Loop) PendingPosted() int { return len(l.postedLive) }

// Gauges reports armed timers and live posted events as of the last pass.
// Safe from any goroutine.
func (l *Loop) Gauges() (timers, posted int) {
	return int(l.timersGauge.Load()), int(l.postedGauge.Load())
}

// Ticks reports completed loop passes.
func (l *Loop) Ticks() uint64 { return atomic.LoadUint64(&l.ticks) }

// Submit runs task on the loop goroutine during its next pass.
func (l *Loop) Submit(task func()) error {
	if task == nil {
		return fmt.Errorf("%w: nil task", api.ErrInvalidArgument)
	}
	l.ingressMu.Lock()
	if st := l.state.Load(); st == stateStopping || st == stateStopped {
		l.ingressMu.Unlock()
		return api.ErrLoopClosed
	}
	l.ingress.Add(task)
	l.ingressMu.Unlock()
	return l.poller.Wake()
}

// Run drives the loop until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(stateIdle, stateRunning) {
		return fmt.Errorf("event loop: already running or stopped")
	}
	defer l.state.Store(stateStopped)

	if l.pin {
		unpin, err := PinCurrentThread(l.cpu)
		if err != nil {
			l.log.Printf("[loop] running unpinned: %v", err)
		} else {
			defer func() {
				if err := unpin(); err != nil {
					l.log.Printf("[loop] unpin: %v", err)
				}
			}()
		}
	}

	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, l.Stop)
		defer stop()
	}

	for l.state.Load() == stateRunning {
		l.now = time.Now()
		// work queued during this pass waits for the next one
		posted := l.posted.Length()
		limit := l.timers.nextID
		l.runIngress()
		l.expireTimers(limit)
		l.runPosted(posted)

		n, err := l.poller.Poll(l.pollTimeout(), l.ready)
		if err != nil {
			return fmt.Errorf("event loop: %w", err)
		}
		l.now = time.Now()
		for i := 0; i < n; i++ {
			l.deliver(api.Event{Tag: l.ready[i].Tag, Source: api.SourceRead})
		}
		l.publish()
		atomic.AddUint64(&l.ticks, 1)
	}
	// Tasks submitted before Stop still run so callers waiting on them are released.
	l.runIngress()
	l.publish()
	return nil
}

// Stop asks Run to return after the current pass.
func (l *Loop) Stop() {
	if l.state.CompareAndSwap(stateRunning, stateStopping) {
		_ = l.poller.Wake()
		return
	}
	l.state.CompareAndSwap(stateIdle, stateStopped)
}

// Wait blocks until a stopped loop has fully returned from Run.
func (l *Loop) Wait() {
	var bo iox.Backoff
	for l.state.Load() != stateStopped {
		bo.Wait()
	}
}

func (l *Loop) pollTimeout() int {
	if l.posted.Length() > 0 || l.ingressLen() > 0 {
		return 0
	}
	when, ok := l.timers.next()
	if !ok {
		if l.tick > 0 {
			return durationToMillis(l.tick)
		}
		return -1
	}
	d := when.Sub(time.Now())
	if d <= 0 {
		return 0
	}
	if l.tick > 0 && d > l.tick {
		d = l.tick
	}
	return durationToMillis(d)
}

func durationToMillis(d time.Duration) int {
	// Round up so a timer is never polled for early.
	return int((d + time.Millisecond - 1) / time.Millisecond)
}

func (l *Loop) publish() {
	l.timersGauge.Store(int64(l.timers.len()))
	l.postedGauge.Store(int64(len(l.postedLive)))
}

func (l *Loop) ingressLen() int {
	l.ingressMu.Lock()
	defer l.ingressMu.Unlock()
	return l.ingress.Length()
}

func (l *Loop) runIngress() {
	l.ingressMu.Lock()
	n := l.ingress.Length()
	tasks := make([]func(), 0, n)
	for i := 0; i < n; i++ {
		tasks = append(tasks, l.ingress.Remove().(func()))
	}
	l.ingressMu.Unlock()
	for _, task := range tasks {
		l.guard(task)
	}
}

func (l *Loop) expireTimers(limit api.TimerID) {
	for {
		e, ok := l.timers.popExpired(l.now, limit)
		if !ok {
			return
		}
		l.deliver(api.Event{Tag: e.tag, Source: api.SourceTimer})
	}
}

// runPosted services the n events posted before this pass began; anything
// posted during the pass waits for the next one.
func (l *Loop) runPosted(n int) {
	for i := 0; i < n; i++ {
		p := l.posted.Remove().(postEntry)
		if _, live := l.postedLive[p.id]; !live {
			continue
		}
		delete(l.postedLive, p.id)
		l.deliver(api.Event{Tag: p.tag, Source: api.SourcePosted})
	}
}

func (l *Loop) deliver(ev api.Event) {
	if l.sink == nil {
		return
	}
	l.guard(func() { l.sink.Deliver(ev) })
}

// guard keeps the loop alive across handler panics.
func (l *Loop) guard(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Printf("[loop] handler panic recovered: %v", r)
		}
	}()
	fn()
}

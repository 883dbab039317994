// File: wait/coordinator.go
// Author: momentics <momentics@gmail.com>
//
// Suspension entry point and event delivery.

package wait

import (
	"fmt"
	"log"
	"math"
	"sync/atomic"
	"time"

	"fortio.org/safecast"

	"github.com/momentics/hioload-wait/api"
	"github.com/momentics/hioload-wait/fiber"
	"github.com/momentics/hioload-wait/host"
)

// AllowedStages are the stages a fiber may suspend in.
const AllowedStages = host.StageRewrite | host.StageAccess | host.StageContent |
	host.StageTimer | host.StageSSLCert | host.StageSSLSessFetch

// Engine drives fibers. *fiber.Engine implements it.
type Engine interface {
	Start(f *fiber.Fiber, s fiber.Suspender) api.RunResult
	Resume(f *fiber.Fiber, v any, s fiber.Suspender) api.RunResult
}

// Counter receives wait counters, typically a control.MetricsRegistry.
type Counter interface {
	Add(key string, delta int64)
}

// Config wires a Coordinator to its collaborators.
type Config struct {
	Mux    api.Multiplexer
	Slots  api.SlotAllocator
	Timers api.Timers
	Engine Engine

	// FastPost posts zero-timeout waits instead of arming 0ms timers.
	FastPost bool

	Metrics Counter
	Logger  *log.Logger
	Debug   bool
}

// Coordinator owns every pending wait. All methods except Stats must be
// called from the loop goroutine.
type Coordinator struct {
	desc    descriptors
	timers  timers
	engine  Engine
	handles map[uint64]*Handle
	nextID  uint64

	metrics Counter
	log     *log.Logger
	debug   bool

	pending   atomic.Int64
	suspended atomic.Uint64
	readReady atomic.Uint64
	timedOut  atomic.Uint64
	cancelled atomic.Uint64
	errors    atomic.Uint64
}

// NewCoordinator validates cfg and returns a ready coordinator.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Mux == nil || cfg.Slots == nil || cfg.Timers == nil || cfg.Engine == nil {
		return nil, fmt.Errorf("wait: %w: multiplexer, slots, timers and engine are required", api.ErrInvalidArgument)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{
		desc:    descriptors{mux: cfg.Mux, slots: cfg.Slots, log: logger},
		timers:  timers{t: cfg.Timers, fastPost: cfg.FastPost, log: logger},
		engine:  cfg.Engine,
		handles: make(map[uint64]*Handle),
		metrics: cfg.Metrics,
		log:     logger,
		debug:   cfg.Debug,
	}, nil
}

// Suspend registers a wait for the fiber currently running on r. args is the
// descriptor and an optional timeout in seconds. On success the caller must
// yield; on error nothing stays registered.
func (c *Coordinator) Suspend(r *host.Request, args []float64) error {
	n := len(args)
	if n != 1 && n != 2 {
		return c.reject(api.Wrap(api.ErrCodeInvalidArgument, api.ErrArity,
			fmt.Sprintf("attempt to pass %d arguments, but accepted 1 or 2", n)))
	}
	if r == nil {
		return c.reject(api.Wrap(api.ErrCodeInvalidArgument, api.ErrNoRequest, api.ErrNoRequest.Error()))
	}

	fdArg := args[0]
	fd32, err := safecast.Truncate[int32](fdArg)
	if err != nil || fdArg < 0 {
		return c.reject(api.Wrap(api.ErrCodeInvalidArgument, api.ErrInvalidFD, "invalid fd").
			WithContext("fd", fdArg))
	}
	fd := int(fd32)

	var (
		delay      time.Duration
		hasTimeout bool
	)
	if n == 2 {
		ms, ok := secondsToMillis(args[1])
		if !ok {
			return c.reject(api.Wrap(api.ErrCodeInvalidArgument, api.ErrInvalidTimeout, "invalid sleep duration").
				WithContext("timeout", args[1]))
		}
		delay = time.Duration(ms) * time.Millisecond
		hasTimeout = true
	}

	ctx := r.Ctx()
	if ctx == nil {
		return c.reject(api.Wrap(api.ErrCodeInvalidArgument, api.ErrNoRequestCtx, api.ErrNoRequestCtx.Error()))
	}
	if ctx.Stage()&AllowedStages == 0 {
		return c.reject(api.Wrap(api.ErrCodeBadStage, api.ErrBadStage,
			fmt.Sprintf("API disabled in the context of %s", ctx.Stage())))
	}
	co := ctx.Current()
	if co == nil {
		return c.reject(api.Wrap(api.ErrCodeInvalidArgument, api.ErrNoCoCtx, api.ErrNoCoCtx.Error()))
	}

	co.CleanupPending()

	c.nextID++
	h := &Handle{
		id:         c.nextID,
		co:         co,
		fd:         fd,
		hasTimeout: hasTimeout,
		delay:      delay,
	}
	co.SetCleanup(c.cancel, h)

	if err := c.desc.register(h); err != nil {
		co.ClearCleanup()
		return c.reject(err)
	}
	if hasTimeout {
		if err := c.timers.schedule(h, delay); err != nil {
			c.desc.release(h)
			co.ClearCleanup()
			return c.reject(fmt.Errorf("arm timer for fd %d: %w", fd, err))
		}
	}

	h.state = statePending
	c.handles[h.id] = h
	c.pending.Add(1)
	c.count(&c.suspended, "wait.suspended")
	if c.debug {
		c.log.Printf("[wait] request %d suspended on fd %d (record %d, timeout %v %v)",
			r.ID(), fd, h.id, hasTimeout, delay)
	}
	return nil
}

// Deliver handles a loop event tagged with a record ID. Only the first event
// for a pending record has any effect.
func (c *Coordinator) Deliver(ev api.Event) {
	h, ok := c.handles[ev.Tag]
	if !ok || h.state != statePending {
		if c.debug {
			c.log.Printf("[wait] ignoring %s event for record %d", ev.Source, ev.Tag)
		}
		return
	}
	delete(c.handles, h.id)
	c.pending.Add(-1)
	h.state = stateFired

	c.desc.release(h)
	if ev.Source == api.SourceRead {
		c.timers.cancel(h)
		h.outcome = api.OutcomeReadReady
		c.count(&c.readReady, "wait.read_ready")
	} else {
		// the winning timer or post is already consumed by the loop
		h.timerArmed = false
		h.posted = false
		h.outcome = api.OutcomeTimedOut
		c.count(&c.timedOut, "wait.timed_out")
	}

	co := h.co
	co.ClearCleanup()

	r := co.Request()
	ctx := r.Ctx()
	if ctx == nil || r.Finalized() {
		return
	}
	ctx.SetCurrent(co)

	outcome := h.outcome
	if ctx.EnteredContent() {
		c.resume(r, outcome)
	} else {
		ctx.SetResume(func(r *host.Request) host.Code {
			return c.resume(r, outcome)
		})
		r.RunPhases()
	}
	r.Conn().RunPosted()
}

// Start runs co's fiber from the beginning and applies the same completion
// handling as a resume.
func (c *Coordinator) Start(r *host.Request, co *host.CoContext) host.Code {
	ctx := r.Ctx()
	if ctx == nil {
		return host.CodeError
	}
	ctx.SetCurrent(co)
	res := c.engine.Start(co.Fiber, c.suspender(r))
	return c.settle(r, co, res)
}

// Pending returns the number of waits that have neither fired nor been cancelled.
func (c *Coordinator) Pending() int { return int(c.pending.Load()) }

// Stats returns a snapshot of the wait counters. Safe from any goroutine.
func (c *Coordinator) Stats() api.WaitMetrics {
	return api.WaitMetrics{
		Suspended: c.suspended.Load(),
		ReadReady: c.readReady.Load(),
		TimedOut:  c.timedOut.Load(),
		Cancelled: c.cancelled.Load(),
		Errors:    c.errors.Load(),
		Pending:   c.Pending(),
	}
}

func (c *Coordinator) suspender(r *host.Request) fiber.Suspender {
	return fiber.SuspendFunc(func(args []float64) error {
		return c.Suspend(r, args)
	})
}

func (c *Coordinator) reject(err error) error {
	c.count(&c.errors, "wait.errors")
	if c.debug {
		c.log.Printf("[wait] rejected: %v", err)
	}
	return err
}

func (c *Coordinator) count(v *atomic.Uint64, key string) {
	v.Add(1)
	if c.metrics != nil {
		c.metrics.Add(key, 1)
	}
}

// secondsToMillis truncates a timeout in seconds to whole milliseconds. The
// result must also fit a time.Duration.
func secondsToMillis(s float64) (int64, bool) {
	if s < 0 {
		return 0, false
	}
	ms, err := safecast.Truncate[int64](s * 1000)
	if err != nil || ms > math.MaxInt64/int64(time.Millisecond) {
		return 0, false
	}
	return ms, true
}

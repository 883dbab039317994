// File: host/request.go
// Author: momentics <momentics@gmail.com>
//
// Request lifecycle: phase walking, resume continuations, fiber slots and
// finalization.

package host

import (
	"fmt"
	"log"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/kont"
	"code.hybscloud.com/lfq"

	"github.com/momentics/hioload-wait/fiber"
)

// postedCapacity bounds fibers spawned but not yet run on one request.
const postedCapacity = 64

var requestSerial atomix.Uint32

func nextRequestID() uint32 {
	return requestSerial.Add(1)
}

// Handler runs one phase of a request.
type Handler func(r *Request) Code

// Continuation resumes a request that parked inside a phase.
type Continuation func(r *Request) Code

// Phase pairs a stage with its handler.
type Phase struct {
	Stage   Stage
	Handler Handler
}

// Ctx is the per-request fiber context: active slot, resume continuation and
// posted fibers. It is explicit state owned by the request.
type Ctx struct {
	stage          Stage
	enteredContent bool
	cur            *CoContext
	resume         Continuation
	entry          *CoContext
	cos            []*CoContext
	posted         lfq.SPSC[*CoContext]
	nposted        int
	nextFiber      uint64
}

// Stage returns the stage the request is currently in.
func (c *Ctx) Stage() Stage { return c.stage }

// EnteredContent reports whether the content stage has been reached.
func (c *Ctx) EnteredContent() bool { return c.enteredContent }

// Current returns the active suspension slot.
func (c *Ctx) Current() *CoContext { return c.cur }

// SetCurrent makes co the active slot.
func (c *Ctx) SetCurrent(co *CoContext) { c.cur = co }

// SetResume records the continuation the pipeline calls when it reaches the
// parked phase again. nil clears it, so the phase list falls back to each
// phase's own handler.
func (c *Ctx) SetResume(cont Continuation) { c.resume = cont }

// Resume returns the recorded continuation.
func (c *Ctx) Resume() Continuation { return c.resume }

// Entry returns the entry fiber's slot.
func (c *Ctx) Entry() *CoContext { return c.entry }

// Fibers returns all slots created for the request.
func (c *Ctx) Fibers() []*CoContext { return c.cos }

// PopPosted dequeues the next spawned fiber waiting to run.
func (c *Ctx) PopPosted() (*CoContext, bool) {
	if c.nposted == 0 {
		return nil, false
	}
	co, err := c.posted.Dequeue()
	if err != nil {
		return nil, false
	}
	c.nposted--
	return co, true
}

// PostedLen reports spawned fibers not yet run.
func (c *Ctx) PostedLen() int { return c.nposted }

// Request is one unit of work walking the phase list on a connection.
type Request struct {
	id         uint32
	conn       *Conn
	phases     []Phase
	phase      int
	ctx        *Ctx
	finalized  bool
	status     Code
	finalizers []func(*Request)
	log        *log.Logger
}

// NewRequest creates a request with an attached fiber context.
func NewRequest(conn *Conn, phases []Phase, logger *log.Logger) *Request {
	if logger == nil {
		logger = log.Default()
	}
	r := &Request{
		id:     nextRequestID(),
		conn:   conn,
		phases: phases,
		ctx:    &Ctx{},
		log:    logger,
	}
	r.ctx.posted.Init(postedCapacity)
	if len(phases) > 0 {
		r.ctx.stage = phases[0].Stage
	}
	return r
}

func (r *Request) ID() uint32      { return r.id }
func (r *Request) Conn() *Conn     { return r.conn }
func (r *Request) Finalized() bool { return r.finalized }
func (r *Request) Status() Code    { return r.status }

// Ctx returns the fiber context, nil once detached.
func (r *Request) Ctx() *Ctx { return r.ctx }

// DetachCtx drops the fiber context, as when the module never ran on the request.
func (r *Request) DetachCtx() { r.ctx = nil }

// selfDriven stages own the request the way content does: a fiber parked in
// them is resumed directly instead of through the phase list.
const selfDriven = StageContent | StageTimer | StageSSLCert | StageSSLSessFetch

// EnterStage forces the current stage; used by handlers outside the phase list
// such as timers and TLS callbacks.
func (r *Request) EnterStage(s Stage) {
	if r.ctx == nil {
		return
	}
	r.ctx.stage = s
	if selfDriven.Has(s) {
		r.ctx.enteredContent = true
	}
}

// OnFinalize registers fn to run once the request is finalized.
func (r *Request) OnFinalize(fn func(*Request)) {
	r.finalizers = append(r.finalizers, fn)
}

// NewEntry creates the entry fiber slot and makes it current.
func (r *Request) NewEntry(body kont.Eff[fiber.Exit]) *CoContext {
	c := r.ctx
	c.nextFiber++
	co := &CoContext{Fiber: fiber.New(c.nextFiber, body), req: r}
	c.entry = co
	c.cos = append(c.cos, co)
	c.cur = co
	return co
}

// Spawn creates a child fiber of parent and queues it to run after the
// current event has been handled.
func (r *Request) Spawn(parent *CoContext, body kont.Eff[fiber.Exit]) (*CoContext, error) {
	if r.finalized {
		return nil, fmt.Errorf("request %d: already finalized", r.id)
	}
	c := r.ctx
	if c == nil {
		return nil, fmt.Errorf("request %d: no fiber context", r.id)
	}
	c.nextFiber++
	co := &CoContext{Fiber: fiber.New(c.nextFiber, body), req: r, parent: parent}
	if err := c.posted.Enqueue(&co); err != nil {
		return nil, fmt.Errorf("request %d: posted fibers: %w", r.id, err)
	}
	c.nposted++
	if parent != nil {
		parent.children = append(parent.children, co)
	}
	c.cos = append(c.cos, co)
	return co, nil
}

// RunPhases walks the phase list from the current phase. A phase parked on a
// fiber is re-entered through the recorded continuation instead of its handler.
func (r *Request) RunPhases() {
	for !r.finalized && r.phase < len(r.phases) {
		ph := r.phases[r.phase]
		r.EnterStage(ph.Stage)

		var rc Code
		if r.ctx != nil && r.ctx.resume != nil {
			cont := r.ctx.resume
			r.ctx.resume = nil
			rc = cont(r)
		} else {
			rc = ph.Handler(r)
		}

		switch rc {
		case CodeOK, CodeDeclined:
			r.phase++
		case CodeAgain, CodeDone:
			return
		default:
			r.Finalize(rc)
			return
		}
	}
	if !r.finalized && r.phase >= len(r.phases) {
		r.Finalize(CodeOK)
	}
}

// Finalize ends the request with code: every pending fiber operation is torn
// down through its cleanup hook and all fibers are discarded. Idempotent.
func (r *Request) Finalize(code Code) {
	if r.finalized {
		return
	}
	r.finalized = true
	r.status = code
	if c := r.ctx; c != nil {
		for _, co := range c.cos {
			co.CleanupPending()
			co.Fiber.Kill()
		}
		for c.nposted > 0 {
			c.PopPosted()
		}
		c.cur = nil
		c.resume = nil
	}
	for _, fn := range r.finalizers {
		fn(r)
	}
}

// Abort destroys the request while fibers may still be suspended.
func (r *Request) Abort() {
	if r.finalized {
		return
	}
	r.log.Printf("[host] request %d aborted", r.id)
	r.Finalize(CodeAborted)
}

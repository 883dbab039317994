package fiber

import (
	"errors"
	"fmt"
	"log"

	"code.hybscloud.com/kont"

	"github.com/momentics/hioload-wait/api"
)

// ErrNotSuspended is reported when resuming a fiber that is not parked.
var ErrNotSuspended = errors.New("fiber: not suspended")

// State is the lifecycle state of a Fiber.
type State uint8

const (
	StateNew State = iota
	StateSuspended
	StateDead
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateSuspended:
		return "suspended"
	default:
		return "dead"
	}
}

// Fiber is one cooperatively scheduled computation.
type Fiber struct {
	id    uint64
	body  kont.Eff[Exit]
	susp  *kont.Suspension[Exit]
	state State
	exit  Exit
}

// New creates a fiber that will run body when started.
func New(id uint64, body kont.Eff[Exit]) *Fiber {
	return &Fiber{id: id, body: body}
}

func (f *Fiber) ID() uint64   { return f.id }
func (f *Fiber) State() State { return f.state }

// Exit returns the final value of a dead fiber.
func (f *Fiber) Exit() Exit { return f.exit }

// Suspender decides what a Wait effect does. A nil error parks the fiber; an
// error is handed back to the fiber as WaitResult.Err without yielding.
type Suspender interface {
	Suspend(args []float64) error
}

// SuspendFunc adapts a function to Suspender.
type SuspendFunc func(args []float64) error

// Suspend calls f(args).
func (f SuspendFunc) Suspend(args []float64) error { return f(args) }

// Engine steps fibers.
type Engine struct {
	log   *log.Logger
	debug bool
}

// NewEngine creates an engine; logger may be nil.
func NewEngine(logger *log.Logger, debug bool) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{log: logger, debug: debug}
}

// Start runs a new fiber up to its first suspension or completion.
func (e *Engine) Start(f *Fiber, s Suspender) (res api.RunResult) {
	if f.state != StateNew {
		return api.RunResult{Status: api.RunError, Err: fmt.Errorf("fiber %d: already started", f.id)}
	}
	defer e.recoverInto(f, &res)
	result, next := kont.StepExpr(kont.Reify(f.body))
	f.body = nil
	return e.drive(f, s, result, next)
}

// Resume pushes v into a suspended fiber and drives it forward.
func (e *Engine) Resume(f *Fiber, v any, s Suspender) (res api.RunResult) {
	if f.state != StateSuspended || f.susp == nil {
		return api.RunResult{Status: api.RunError, Err: fmt.Errorf("fiber %d: %w", f.id, ErrNotSuspended)}
	}
	defer e.recoverInto(f, &res)
	susp := f.susp
	f.susp = nil
	if o, ok := v.(api.Outcome); ok {
		v = WaitResult{Outcome: o}
	}
	result, next := susp.Resume(v)
	return e.drive(f, s, result, next)
}

// Discard drops a suspended fiber without resuming it.
func (e *Engine) Discard(f *Fiber) {
	f.Kill()
}

// Kill releases a parked computation; the fiber can never run again.
func (f *Fiber) Kill() {
	if f.susp != nil {
		f.susp.Discard()
		f.susp = nil
	}
	f.body = nil
	f.state = StateDead
}

func (e *Engine) drive(f *Fiber, s Suspender, result Exit, next *kont.Suspension[Exit]) api.RunResult {
	for next != nil {
		w, ok := next.Op().(Wait)
		if !ok {
			next.Discard()
			f.state = StateDead
			return api.RunResult{Status: api.RunError, Err: fmt.Errorf("fiber %d: unhandled effect %T", f.id, next.Op())}
		}
		f.susp = next
		f.state = StateSuspended
		err := s.Suspend(w.Args)
		if err == nil {
			if e.debug {
				e.log.Printf("[fiber] %d yielded on wait %v", f.id, w.Args)
			}
			return api.RunResult{Status: api.RunYielded}
		}
		// Rejected before anything was registered: the fiber sees the error inline.
		f.susp = nil
		result, next = next.Resume(WaitResult{Err: err})
	}
	f.state = StateDead
	f.exit = result
	if result.Err != nil {
		return api.RunResult{Status: api.RunError, Code: result.Code, Err: result.Err}
	}
	return api.RunResult{Status: api.RunDone, Code: result.Code}
}

func (e *Engine) recoverInto(f *Fiber, res *api.RunResult) {
	if r := recover(); r != nil {
		f.susp = nil
		f.state = StateDead
		e.log.Printf("[fiber] %d panicked: %v", f.id, r)
		*res = api.RunResult{Status: api.RunError, Err: fmt.Errorf("fiber %d: panic: %v", f.id, r)}
	}
}

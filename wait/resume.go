// File: wait/resume.go
// Author: momentics <momentics@gmail.com>

package wait

import (
	"github.com/momentics/hioload-wait/api"
	"github.com/momentics/hioload-wait/host"
)

// resume pushes outcome into the request's current fiber and interprets the
// result for the pipeline.
func (c *Coordinator) resume(r *host.Request, outcome api.Outcome) host.Code {
	ctx := r.Ctx()
	ctx.SetResume(nil)

	co := ctx.Current()
	if co == nil {
		return host.CodeError
	}
	res := c.engine.Resume(co.Fiber, outcome, c.suspender(r))
	return c.settle(r, co, res)
}

// settle maps a run result to a pipeline code. Only the entry fiber decides
// the request's fate; spawned fibers finishing or failing just hand control to
// the next posted fiber.
func (c *Coordinator) settle(r *host.Request, co *host.CoContext, res api.RunResult) host.Code {
	ctx := r.Ctx()
	switch res.Status {
	case api.RunYielded:
		return c.runPosted(r)

	case api.RunDone:
		if !co.IsEntry() {
			return c.runPosted(r)
		}
		if ctx.EnteredContent() || res.Code != 0 {
			code := host.Code(res.Code)
			r.Finalize(code)
			c.runPosted(r)
			return host.CodeDone
		}
		return host.CodeDeclined

	default:
		c.log.Printf("[wait] request %d fiber %d failed: %v", r.ID(), co.Fiber.ID(), res.Err)
		if !co.IsEntry() {
			return c.runPosted(r)
		}
		if ctx.EnteredContent() {
			r.Finalize(host.CodeInternal)
			return host.CodeDone
		}
		return host.CodeError
	}
}

// runPosted starts every spawned fiber queued on the request until the queue
// is empty or the request is finalized.
func (c *Coordinator) runPosted(r *host.Request) host.Code {
	for !r.Finalized() {
		ctx := r.Ctx()
		if ctx == nil {
			break
		}
		co, ok := ctx.PopPosted()
		if !ok {
			break
		}
		ctx.SetCurrent(co)
		res := c.engine.Start(co.Fiber, c.suspender(r))
		if res.Status == api.RunError {
			c.log.Printf("[wait] request %d posted fiber %d failed: %v", r.ID(), co.Fiber.ID(), res.Err)
		}
	}
	return host.CodeDone
}

// File: adapters/handler_adapter.go
// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Phase handler middleware for the request pipeline.

package adapters

import (
	"log"

	"github.com/momentics/hioload-wait/host"
)

// Middleware wraps a phase handler.
type Middleware func(host.Handler) host.Handler

// Chain applies mw to h so that mw[0] runs outermost.
func Chain(h host.Handler, mw ...Middleware) host.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// LoggingMiddleware logs phase codes that end or park the request.
func LoggingMiddleware(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next host.Handler) host.Handler {
		return func(r *host.Request) host.Code {
			rc := next(r)
			switch rc {
			case host.CodeOK, host.CodeDeclined:
			default:
				stage := host.Stage(0)
				if ctx := r.Ctx(); ctx != nil {
					stage = ctx.Stage()
				}
				logger.Printf("[handler] request %d %s -> %s", r.ID(), stage, rc)
			}
			return rc
		}
	}
}

// RecoveryMiddleware turns a panicking handler into CodeInternal.
func RecoveryMiddleware(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next host.Handler) host.Handler {
		return func(r *host.Request) (rc host.Code) {
			defer func() {
				if p := recover(); p != nil {
					logger.Printf("[handler] panic recovered: %v", p)
					rc = host.CodeInternal
				}
			}()
			return next(r)
		}
	}
}

// MetricsMiddleware increments "handler.processed" for every phase run.
func MetricsMiddleware(metrics Counter) Middleware {
	return func(next host.Handler) host.Handler {
		return func(r *host.Request) host.Code {
			metrics.Add("handler.processed", 1)
			return next(r)
		}
	}
}

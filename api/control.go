// File: api/control.go
// Package api defines the Control contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Control exposes the live configuration, wait counters and debug probes of a
// running waiter.
type Control interface {
	GetConfig() map[string]any
	SetConfig(cfg map[string]any) error
	Stats() map[string]any
	OnReload(fn func())
	RegisterDebugProbe(name string, fn func() any)
	// Add bumps an int64 counter, e.g. "wait.timed_out".
	Add(key string, delta int64)
}

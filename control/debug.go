// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Runtime debug handler and probe reflector for internal inspection.

package control

import (
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/momentics/hioload-wait/api"
)

// DebugProbes holds registered probe functions.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

var _ api.Debug = (*DebugProbes)(nil)

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe inserts a named debug hook.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// DumpState returns output of all probes.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]any, len(dp.probes))
	for k, fn := range dp.probes {
		out[k] = fn()
	}
	return out
}

// EncodeState writes DumpState to w as msgpack.
func (dp *DebugProbes) EncodeState(w io.Writer) error {
	return msgpack.NewEncoder(w).Encode(dp.DumpState())
}

// DecodeState reads a dump written by EncodeState.
func DecodeState(r io.Reader) (map[string]any, error) {
	var out map[string]any
	dec := msgpack.NewDecoder(r)
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-wait/api"
)

// EpollReactor is unavailable on this platform.
type EpollReactor struct{}

// NewPoller returns an error for unsupported platforms.
func NewPoller(maxEvents int) (*EpollReactor, error) {
	return nil, fmt.Errorf("reactor: %w on this platform", api.ErrNotSupported)
}

func (r *EpollReactor) AddRead(fd int, tag uint64) error                { return api.ErrNotSupported }
func (r *EpollReactor) DelRead(fd int) error                             { return api.ErrNotSupported }
func (r *EpollReactor) Watched() int                                     { return 0 }
func (r *EpollReactor) Poll(timeoutMs int, out []api.Ready) (int, error) { return 0, api.ErrNotSupported }
func (r *EpollReactor) Wake() error                                      { return api.ErrNotSupported }
func (r *EpollReactor) Close() error                                     { return nil }

//go:build !linux
// +build !linux

// File: internal/concurrency/pin_other.go
// Author: momentics <momentics@gmail.com>

package concurrency

import "github.com/momentics/hioload-wait/api"

// PinCurrentThread is unsupported on this platform.
func PinCurrentThread(cpu int) (func() error, error) { return nil, api.ErrNotSupported }

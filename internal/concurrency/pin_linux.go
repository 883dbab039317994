//go:build linux
// +build linux

// File: internal/concurrency/pin_linux.go
// Author: momentics <momentics@gmail.com>
//
// CPU pinning for the loop thread via sched_setaffinity.

package concurrency

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-wait/api"
)

// PinCurrentThread locks the calling goroutine to its OS thread and binds
// that thread to cpu, which must be in the thread's current affinity set.
// unpin restores the previous set and unlocks the thread; call it from the
// same goroutine.
func PinCurrentThread(cpu int) (unpin func() error, err error) {
	runtime.LockOSThread()
	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("pin: %w", err)
	}
	if cpu < 0 || !prev.IsSet(cpu) {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("pin: %w: cpu %d not available", api.ErrInvalidArgument, cpu)
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("pin cpu %d: %w", cpu, err)
	}
	return func() error {
		defer runtime.UnlockOSThread()
		return unix.SchedSetaffinity(0, &prev)
	}, nil
}

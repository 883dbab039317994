//go:build linux

package concurrency

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-wait/api"
)

// firstCPU returns the lowest CPU the test process may run on.
func firstCPU(t *testing.T) (int, unix.CPUSet) {
	t.Helper()
	var set unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &set))
	for cpu := 0; cpu < 1024; cpu++ {
		if set.IsSet(cpu) {
			return cpu, set
		}
	}
	t.Fatal("empty affinity set")
	return -1, set
}

func TestPinCurrentThread(t *testing.T) {
	cpu, allowed := firstCPU(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		unpin, err := PinCurrentThread(cpu)
		require.NoError(t, err)

		var set unix.CPUSet
		require.NoError(t, unix.SchedGetaffinity(0, &set))
		require.Equal(t, 1, set.Count())
		require.True(t, set.IsSet(cpu))

		require.NoError(t, unpin())
		require.NoError(t, unix.SchedGetaffinity(0, &set))
		require.Equal(t, allowed, set)
	}()
	<-done
}

func TestPinCurrentThread_RejectsUnknownCPU(t *testing.T) {
	_, err := PinCurrentThread(-1)
	require.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestLoop_PinnedRun(t *testing.T) {
	cpu, _ := firstCPU(t)
	l, _, _ := startLoop(t, LoopConfig{Pin: true, CPU: cpu})
	var set unix.CPUSet
	onLoop(t, l, func() {
		_ = unix.SchedGetaffinity(0, &set)
	})
	require.True(t, set.IsSet(cpu))
	require.Equal(t, 1, set.Count())
}

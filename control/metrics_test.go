package control

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricsRegistry_Add(t *testing.T) {
	mr := NewMetricsRegistry()
	require.True(t, mr.Updated().IsZero())

	mr.Add("wait.suspended", 1)
	mr.Add("wait.suspended", 2)
	mr.Set("wait.label", "x")
	mr.Add("wait.label", 1)

	snap := mr.GetSnapshot()
	require.Equal(t, int64(3), snap["wait.suspended"])
	require.Equal(t, int64(1), snap["wait.label"])
	require.False(t, mr.Updated().IsZero())
}

func TestDebugProbes_EncodeState(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("wait.pending", func() any { return 3 })
	dp.RegisterProbe("loop.state", func() any { return "running" })
	RegisterPlatformProbes(dp)

	var buf bytes.Buffer
	require.NoError(t, dp.EncodeState(&buf))

	got, err := DecodeState(&buf)
	require.NoError(t, err)
	require.EqualValues(t, 3, got["wait.pending"])
	require.Equal(t, "running", got["loop.state"])
	require.Contains(t, got, "platform.cpus")
}

func TestDecodeState_Garbage(t *testing.T) {
	_, err := DecodeState(bytes.NewReader([]byte{0xc1}))
	require.Error(t, err)
}

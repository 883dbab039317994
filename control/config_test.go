package control

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "fdwait.toml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadConfig_Defaults(t *testing.T) {
	p := writeFile(t, t.TempDir(), "")
	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_Overrides(t *testing.T) {
	p := writeFile(t, t.TempDir(), `
[pool]
slots = 4

[timers]
fast_post = false

[loop]
max_events = 32
tick_ms = 5

[debug]
enabled = true
`)
	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Pool.Slots)
	require.False(t, cfg.Timers.FastPost)
	require.Equal(t, 32, cfg.Loop.MaxEvents)
	require.Equal(t, 5, cfg.Loop.TickMs)
	require.True(t, cfg.Debug.Enabled)
}

func TestLoadConfig_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":   "[pool]\nslots = 2\nsize = 3\n",
		"zero slots":    "[pool]\nslots = 0\n",
		"negative tick": "[loop]\ntick_ms = -1\n",
		"huge events":   "[loop]\nmax_events = 9999999999\n",
		"not toml":      "[pool\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, t.TempDir(), body))
			require.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfigStore_SetNotifies(t *testing.T) {
	cs := NewConfigStore()
	calls := 0
	cs.OnReload(func() { calls++ })

	cs.SetConfig(DefaultConfig().Map())
	require.Equal(t, 1, calls)
	v, ok := cs.Get("pool.slots")
	require.True(t, ok)
	require.Equal(t, 1024, v)

	snap := cs.GetSnapshot()
	snap["pool.slots"] = 1
	v, _ = cs.Get("pool.slots")
	require.Equal(t, 1024, v, "snapshot must be a copy")
}

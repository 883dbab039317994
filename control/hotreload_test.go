package control

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchConfig_Reloads(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "[pool]\nslots = 2\n")

	store := NewConfigStore()
	var slots atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- WatchConfig(ctx, p, store, nil, func(c Config) { slots.Store(int64(c.Pool.Slots)) })
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	// the watcher may not be registered yet; keep rewriting until it sees a change
	require.Eventually(t, func() bool {
		_ = os.WriteFile(p, []byte("[pool]\nslots = 7\n"), 0o600)
		return slots.Load() == 7
	}, 3*time.Second, 50*time.Millisecond)

	v, ok := store.Get("pool.slots")
	require.True(t, ok)
	require.Equal(t, 7, v)
}

func TestWatchConfig_KeepsSnapshotOnBadFile(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "[pool]\nslots = 2\n")

	store := NewConfigStore()
	store.SetConfig(map[string]any{"pool.slots": 2})
	var loads atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- WatchConfig(ctx, p, store, nil, func(Config) { loads.Add(1) })
	}()

	time.Sleep(100 * time.Millisecond)
	tmp := p + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte("[pool\n"), 0o600))
	require.NoError(t, os.Rename(tmp, p))
	time.Sleep(200 * time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.Zero(t, loads.Load())
	v, _ := store.Get("pool.slots")
	require.Equal(t, 2, v)
}

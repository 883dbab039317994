// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Typed TOML configuration plus the thread-safe key/value store that carries
// the live snapshot and propagates reloads.

package control

import (
	"fmt"
	"sync"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"
)

// Config is the on-disk configuration.
type Config struct {
	Pool   PoolConfig   `toml:"pool"`
	Timers TimersConfig `toml:"timers"`
	Loop   LoopConfig   `toml:"loop"`
	Debug  DebugConfig  `toml:"debug"`
}

// PoolConfig bounds the connection slots available to waits.
type PoolConfig struct {
	Slots int `toml:"slots"`
}

// TimersConfig controls zero-timeout handling.
type TimersConfig struct {
	FastPost bool `toml:"fast_post"`
}

// LoopConfig tunes the event loop.
type LoopConfig struct {
	MaxEvents int `toml:"max_events"`
	TickMs    int `toml:"tick_ms"`
	CPU       int `toml:"cpu"` // -1 leaves the loop thread unpinned
}

type DebugConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() Config {
	return Config{
		Pool:   PoolConfig{Slots: 1024},
		Timers: TimersConfig{FastPost: true},
		Loop:   LoopConfig{MaxEvents: 256, CPU: -1},
	}
}

// LoadConfig reads path over the defaults. Keys the file does not set keep
// their default value; unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if meta.IsDefined("pool") && !meta.IsDefined("pool", "slots") {
		return Config{}, fmt.Errorf("%s: [pool] without slots", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges.
func (c Config) Validate() error {
	if c.Pool.Slots <= 0 {
		return fmt.Errorf("[pool].slots must be positive, got %d", c.Pool.Slots)
	}
	if c.Loop.MaxEvents <= 0 {
		return fmt.Errorf("[loop].max_events must be positive, got %d", c.Loop.MaxEvents)
	}
	if _, err := safecast.Conv[int32](c.Loop.MaxEvents); err != nil {
		return fmt.Errorf("[loop].max_events: %w", err)
	}
	if c.Loop.CPU < -1 {
		return fmt.Errorf("[loop].cpu must be -1 or a CPU index, got %d", c.Loop.CPU)
	}
	if c.Loop.TickMs < 0 {
		return fmt.Errorf("[loop].tick_ms must not be negative, got %d", c.Loop.TickMs)
	}
	return nil
}

// Map flattens c into dotted keys for a ConfigStore.
func (c Config) Map() map[string]any {
	return map[string]any{
		"pool.slots":       c.Pool.Slots,
		"timers.fast_post": c.Timers.FastPost,
		"loop.max_events":  c.Loop.MaxEvents,
		"loop.tick_ms":     c.Loop.TickMs,
		"loop.cpu":         c.Loop.CPU,
		"debug.enabled":    c.Debug.Enabled,
	}
}

// ConfigStore is a dynamic key/value map with atomic snapshot and listener support.
type ConfigStore struct {
	mu        sync.RWMutex
	config    map[string]any
	listeners []func()
}

// NewConfigStore initializes a new config store with empty data.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		config: make(map[string]any),
	}
}

// GetSnapshot returns a copy of all config values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		out[k] = v
	}
	return out
}

// Get returns one value.
func (cs *ConfigStore) Get(key string) (any, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	v, ok := cs.config[key]
	return v, ok
}

// SetConfig merges new values and notifies listeners once.
func (cs *ConfigStore) SetConfig(newCfg map[string]any) {
	cs.mu.Lock()
	for k, v := range newCfg {
		cs.config[k] = v
	}
	listeners := append([]func(){}, cs.listeners...)
	cs.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

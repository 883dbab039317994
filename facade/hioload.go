// File: facade/hioload.go
// Unified facade layer for hioload-wait.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// This file defines the Waiter struct, which aggregates the event loop, the
// epoll reactor, the slot pool, the fiber engine and the wait coordinator
// behind a single facade. The facade builds requests whose phases run fibers,
// runs the loop, and exposes Control for configuration, metrics and debug
// probes.

package facade

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"code.hybscloud.com/kont"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-wait/adapters"
	"github.com/momentics/hioload-wait/api"
	"github.com/momentics/hioload-wait/control"
	"github.com/momentics/hioload-wait/fiber"
	"github.com/momentics/hioload-wait/host"
	"github.com/momentics/hioload-wait/internal/concurrency"
	"github.com/momentics/hioload-wait/pool"
	"github.com/momentics/hioload-wait/reactor"
	"github.com/momentics/hioload-wait/wait"
)

// Config holds parameters immutable per run.
type Config struct {
	Slots         int           // Connection slots shared by all pending waits
	MaxEvents     int           // Readiness events per poll
	FastPost      bool          // Post zero-timeout waits instead of arming 0ms timers
	Tick          time.Duration // Longest idle poll, 0 to block
	CPU           int           // Pin the loop thread to this CPU, -1 to leave it unpinned
	EnableMetrics bool          // Feed wait and loop counters into Control
	Debug         bool          // Verbose wait and fiber logging
	ConfigPath    string        // TOML file watched for reloads, optional
	Logger        *log.Logger
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		Slots:         1024,
		MaxEvents:     256,
		FastPost:      true,
		CPU:           -1,
		EnableMetrics: true,
	}
}

// ConfigFrom converts a loaded file into a facade config.
func ConfigFrom(c control.Config, path string) *Config {
	return &Config{
		Slots:         c.Pool.Slots,
		MaxEvents:     c.Loop.MaxEvents,
		FastPost:      c.Timers.FastPost,
		Tick:          time.Duration(c.Loop.TickMs) * time.Millisecond,
		CPU:           c.Loop.CPU,
		EnableMetrics: true,
		Debug:         c.Debug.Enabled,
		ConfigPath:    path,
	}
}

// Body builds the fiber a phase runs for a request.
type Body func(r *host.Request) kont.Eff[fiber.Exit]

// Waiter is the main facade type.
type Waiter struct {
	config  *Config
	log     *log.Logger
	poller  *reactor.EpollReactor
	loop    *concurrency.Loop
	slots   *pool.SlotPool
	engine  *fiber.Engine
	coord   *wait.Coordinator
	control *adapters.ControlAdapter
	mw      []adapters.Middleware

	connSeq atomic.Uint64
	ran     atomic.Bool
	done    chan struct{}
	once    sync.Once
}

// Ensure compliance with api.GracefulShutdown.
var _ api.GracefulShutdown = (*Waiter)(nil)

// New constructs a Waiter with the given configuration.
func New(cfg *Config) (*Waiter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Slots <= 0 {
		return nil, fmt.Errorf("facade: %w: slots must be positive", api.ErrInvalidArgument)
	}

	poller, err := reactor.NewPoller(cfg.MaxEvents)
	if err != nil {
		return nil, fmt.Errorf("reactor init failure: %w", err)
	}

	w := &Waiter{
		config:  cfg,
		log:     logger,
		poller:  poller,
		slots:   pool.NewSlotPool(cfg.Slots),
		engine:  fiber.NewEngine(logger, cfg.Debug),
		control: adapters.NewControlAdapter(),
		done:    make(chan struct{}),
	}
	w.loop = concurrency.NewEventLoop(poller, nil, concurrency.LoopConfig{
		MaxEvents: cfg.MaxEvents,
		FastPost:  cfg.FastPost,
		Tick:      cfg.Tick,
		Pin:       cfg.CPU >= 0,
		CPU:       cfg.CPU,
		Logger:    logger,
	})

	var metrics wait.Counter
	var sinkMetrics adapters.Counter
	if cfg.EnableMetrics {
		metrics = w.control
		sinkMetrics = w.control
	}
	w.coord, err = wait.NewCoordinator(wait.Config{
		Mux:      poller,
		Slots:    w.slots,
		Timers:   w.loop,
		Engine:   w.engine,
		FastPost: cfg.FastPost,
		Metrics:  metrics,
		Logger:   logger,
		Debug:    cfg.Debug,
	})
	if err != nil {
		_ = poller.Close()
		return nil, err
	}
	w.loop.SetSink(adapters.NewSinkAdapter(w.coord, sinkMetrics))

	w.mw = []adapters.Middleware{adapters.RecoveryMiddleware(logger)}
	if cfg.Debug {
		w.mw = append([]adapters.Middleware{adapters.LoggingMiddleware(logger)}, w.mw...)
	}
	if cfg.EnableMetrics {
		w.mw = append([]adapters.Middleware{adapters.MetricsMiddleware(w.control)}, w.mw...)
	}

	w.control.SetConfig(map[string]any{
		"pool.slots":       cfg.Slots,
		"timers.fast_post": cfg.FastPost,
		"loop.max_events":  cfg.MaxEvents,
		"loop.tick_ms":     cfg.Tick.Milliseconds(),
		"loop.cpu":         cfg.CPU,
		"debug.enabled":    cfg.Debug,
	})
	w.registerProbes()
	return w, nil
}

func (w *Waiter) registerProbes() {
	w.control.RegisterDebugProbe("wait.pending", func() any { return w.coord.Pending() })
	w.control.RegisterDebugProbe("wait.slots_in_use", func() any { return w.slots.InUse() })
	w.control.RegisterDebugProbe("loop.timers", func() any {
		timers, _ := w.loop.Gauges()
		return timers
	})
	w.control.RegisterDebugProbe("loop.posted", func() any {
		_, posted := w.loop.Gauges()
		return posted
	})
	w.control.RegisterDebugProbe("loop.ticks", func() any { return w.loop.Ticks() })
}

// Run drives the loop until ctx is done or Shutdown is called. When the
// config names a file it is watched and reloads land in Control. Requests
// still waiting when the loop stops are aborted before Run returns.
func (w *Waiter) Run(ctx context.Context) error {
	if !w.ran.CompareAndSwap(false, true) {
		return fmt.Errorf("facade: already running")
	}
	defer close(w.done)
	defer w.closePoller()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		err := w.loop.Run(gctx)
		if n := w.coord.AbortAll(); n > 0 {
			w.log.Printf("[facade] aborted %d requests with pending waits", n)
		}
		return err
	})
	if path := w.config.ConfigPath; path != "" {
		g.Go(func() error {
			return control.WatchConfig(gctx, path, w.control.Store(), w.log, func(c control.Config) {
				w.log.Printf("[facade] %s changed; pool.slots=%d fast_post=%v apply on restart",
					path, c.Pool.Slots, c.Timers.FastPost)
			})
		})
	}
	return g.Wait()
}

// Shutdown stops the loop and releases the reactor. Pending waits are
// aborted. When Run is active Shutdown blocks until it has returned, so it
// must not be called from the loop goroutine.
func (w *Waiter) Shutdown() error {
	w.loop.Stop()
	if w.ran.Load() {
		<-w.done
		return nil
	}
	w.loop.Wait()
	w.closePoller()
	return nil
}

func (w *Waiter) closePoller() {
	w.once.Do(func() {
		if err := w.poller.Close(); err != nil {
			w.log.Printf("[facade] close reactor: %v", err)
		}
	})
}

// Phase returns a pipeline phase that runs body as the request's entry fiber.
func (w *Waiter) Phase(stage host.Stage, body Body) host.Phase {
	h := func(r *host.Request) host.Code {
		co := r.NewEntry(body(r))
		return w.coord.Start(r, co)
	}
	return host.Phase{Stage: stage, Handler: adapters.Chain(h, w.mw...)}
}

// Content is Phase(host.StageContent, body).
func (w *Waiter) Content(body Body) host.Phase {
	return w.Phase(host.StageContent, body)
}

// NewRequest creates a request on a fresh connection. It must be started with
// Start, not run directly.
func (w *Waiter) NewRequest(phases ...host.Phase) *host.Request {
	conn := host.NewConn(w.connSeq.Add(1), w.log)
	return host.NewRequest(conn, phases, w.log)
}

// Start runs r's phases on the loop goroutine.
func (w *Waiter) Start(r *host.Request) error {
	return w.loop.Submit(r.RunPhases)
}

// Abort destroys r on the loop goroutine, cancelling any pending waits.
func (w *Waiter) Abort(r *host.Request) error {
	return w.loop.Submit(r.Abort)
}

// Submit dispatches a task to the loop goroutine.
func (w *Waiter) Submit(task func()) error {
	return w.loop.Submit(task)
}

// WaitStats returns the coordinator counters.
func (w *Waiter) WaitStats() api.WaitMetrics {
	return w.coord.Stats()
}

// Stats returns counters and probe output.
func (w *Waiter) Stats() map[string]any {
	return w.control.Stats()
}

// EncodeState writes the debug probe dump as msgpack.
func (w *Waiter) EncodeState(out io.Writer) error {
	return w.control.EncodeState(out)
}

// GetControl returns the Control interface for dynamic config and metrics.
func (w *Waiter) GetControl() api.Control {
	return w.control
}

//go:build linux

package facade_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"code.hybscloud.com/kont"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-wait/api"
	"github.com/momentics/hioload-wait/control"
	"github.com/momentics/hioload-wait/facade"
	"github.com/momentics/hioload-wait/fiber"
	"github.com/momentics/hioload-wait/host"
)

type resumed struct {
	res  fiber.WaitResult
	at   time.Time
	tick uint64
}

func startWaiter(t *testing.T, mutate func(*facade.Config)) *facade.Waiter {
	t.Helper()
	cfg := facade.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	w, err := facade.New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
		require.NoError(t, w.Shutdown())
	})
	return w
}

func pipe(t *testing.T) (r, w int) {
	t.Helper()
	var p [2]int
	require.NoError(t, unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	t.Cleanup(func() {
		unix.Close(p[0])
		unix.Close(p[1])
	})
	return p[0], p[1]
}

// ticks reads the loop pass counter from the probe dump.
func ticks(w *facade.Waiter) uint64 {
	v, _ := w.Stats()["debug.loop.ticks"].(uint64)
	return v
}

// serve runs one content request whose fiber waits with args and reports the
// result on the returned channel.
func serve(t *testing.T, w *facade.Waiter, args []float64) (*host.Request, <-chan resumed, <-chan host.Code) {
	t.Helper()
	out := make(chan resumed, 4)
	final := make(chan host.Code, 1)
	r := w.NewRequest(w.Content(func(*host.Request) kont.Eff[fiber.Exit] {
		return fiber.WaitThen(args, func(res fiber.WaitResult) kont.Eff[fiber.Exit] {
			out <- resumed{res: res, at: time.Now(), tick: ticks(w)}
			return fiber.Done(0)
		})
	}))
	r.OnFinalize(func(r *host.Request) { final <- r.Status() })
	require.NoError(t, w.Start(r))
	return r, out, final
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatal("timed out")
	}
	var zero T
	return zero
}

func requireNothing[T any](t *testing.T, ch <-chan T, d time.Duration) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected value %v", v)
	case <-time.After(d):
	}
}

func requireDrained(t *testing.T, w *facade.Waiter) {
	t.Helper()
	require.Eventually(t, func() bool {
		s := w.Stats()
		return s["debug.wait.pending"] == 0 && s["debug.wait.slots_in_use"] == 0 && s["debug.loop.timers"] == 0
	}, time.Second, 5*time.Millisecond)
}

func TestWaiter_ReadyBeforeTimeout(t *testing.T) {
	w := startWaiter(t, nil)
	rfd, wfd := pipe(t)

	go func() {
		time.Sleep(10 * time.Millisecond)
		unix.Write(wfd, []byte{1})
	}()
	start := time.Now()
	_, out, final := serve(t, w, []float64{float64(rfd), 1})

	got := recv(t, out)
	require.NoError(t, got.res.Err)
	require.Equal(t, api.OutcomeReadReady, got.res.Outcome)
	require.True(t, got.at.Sub(start) < 900*time.Millisecond)
	require.Equal(t, host.CodeOK, recv(t, final))
	requireNothing(t, out, 50*time.Millisecond)
	requireDrained(t, w)

	st := w.WaitStats()
	require.Equal(t, uint64(1), st.ReadReady)
	require.Zero(t, st.TimedOut)
}

func TestWaiter_TimesOut(t *testing.T) {
	w := startWaiter(t, nil)
	rfd, _ := pipe(t)

	start := time.Now()
	_, out, _ := serve(t, w, []float64{float64(rfd), 0.05})

	got := recv(t, out)
	require.Equal(t, api.OutcomeTimedOut, got.res.Outcome)
	require.True(t, got.at.Sub(start) >= 45*time.Millisecond, "resumed after %v", got.at.Sub(start))
	requireDrained(t, w)
	require.Equal(t, int64(1), w.Stats()["wait.timed_out"])
}

func TestWaiter_ZeroTimeoutResumesOnLaterPass(t *testing.T) {
	for _, fastPost := range []bool{true, false} {
		w := startWaiter(t, func(c *facade.Config) { c.FastPost = fastPost })
		rfd, _ := pipe(t)

		before := make(chan uint64, 1)
		require.NoError(t, w.Submit(func() { before <- ticks(w) }))
		_, out, _ := serve(t, w, []float64{float64(rfd), 0})

		got := recv(t, out)
		require.Equal(t, api.OutcomeTimedOut, got.res.Outcome)
		require.Greater(t, got.tick, recv(t, before), "fast post %v", fastPost)
		requireDrained(t, w)
	}
}

func TestWaiter_AbortCancelsPendingWait(t *testing.T) {
	w := startWaiter(t, nil)
	rfd, wfd := pipe(t)

	r, out, final := serve(t, w, []float64{float64(rfd), 5})
	require.Eventually(t, func() bool { return w.Stats()["debug.wait.pending"] == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Abort(r))
	require.Equal(t, host.CodeAborted, recv(t, final))
	requireDrained(t, w)

	unix.Write(wfd, []byte{1})
	requireNothing(t, out, 50*time.Millisecond)
	require.Equal(t, int64(1), w.Stats()["wait.cancelled"])
}

func TestWaiter_ShutdownAbortsPendingWaits(t *testing.T) {
	w, err := facade.New(nil)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	rfd, _ := pipe(t)
	_, out, final := serve(t, w, []float64{float64(rfd)})
	require.Eventually(t, func() bool { return w.Stats()["debug.wait.pending"] == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Shutdown())
	require.NoError(t, recv(t, done))
	require.Equal(t, host.CodeAborted, recv(t, final))
	requireNothing(t, out, 10*time.Millisecond)

	st := w.WaitStats()
	require.Zero(t, st.Pending)
	require.Equal(t, uint64(1), st.Cancelled)
	require.Equal(t, 0, w.Stats()["debug.wait.slots_in_use"])
}

func TestWaiter_SlotExhaustionReachesFiber(t *testing.T) {
	w := startWaiter(t, func(c *facade.Config) { c.Slots = 1 })
	r1, _ := pipe(t)
	r2, _ := pipe(t)

	_, _, _ = serve(t, w, []float64{float64(r1), 5})
	_, out, _ := serve(t, w, []float64{float64(r2), 5})

	got := recv(t, out)
	require.ErrorIs(t, got.res.Err, api.ErrResourceExhausted)
	require.Equal(t, 1, w.Stats()["debug.wait.slots_in_use"])
}

func TestWaiter_StatsAndStateDump(t *testing.T) {
	w := startWaiter(t, nil)
	rfd, wfd := pipe(t)
	unix.Write(wfd, []byte{1})

	_, out, _ := serve(t, w, []float64{float64(rfd)})
	require.Equal(t, api.OutcomeReadReady, recv(t, out).res.Outcome)

	stats := w.Stats()
	require.Equal(t, int64(1), stats["wait.suspended"])
	require.Equal(t, int64(1), stats["handler.processed"])
	require.Equal(t, int64(1), stats["loop.events.read"])
	require.Equal(t, 1024, w.GetControl().GetConfig()["pool.slots"])

	var buf bytes.Buffer
	require.NoError(t, w.EncodeState(&buf))
	dump, err := control.DecodeState(&buf)
	require.NoError(t, err)
	require.Contains(t, dump, "wait.pending")
	require.Contains(t, dump, "loop.posted")
}

func TestWaiter_AccessPhaseWaitThenContent(t *testing.T) {
	w := startWaiter(t, nil)
	rfd, wfd := pipe(t)

	contentRan := make(chan struct{}, 1)
	final := make(chan host.Code, 1)
	r := w.NewRequest(
		w.Phase(host.StageAccess, func(*host.Request) kont.Eff[fiber.Exit] {
			return fiber.WaitTimeout(rfd, 1, func(fiber.WaitResult) kont.Eff[fiber.Exit] {
				return fiber.Done(0)
			})
		}),
		host.Phase{Stage: host.StageContent, Handler: func(*host.Request) host.Code {
			contentRan <- struct{}{}
			return host.CodeOK
		}},
	)
	r.OnFinalize(func(r *host.Request) { final <- r.Status() })
	require.NoError(t, w.Start(r))

	requireNothing(t, contentRan, 30*time.Millisecond)
	unix.Write(wfd, []byte{1})
	recv(t, contentRan)
	require.Equal(t, host.CodeOK, recv(t, final))
	requireDrained(t, w)
}

func TestWaiter_ShutdownWithoutRun(t *testing.T) {
	w, err := facade.New(nil)
	require.NoError(t, err)
	require.NoError(t, w.Shutdown())
	require.ErrorIs(t, w.Submit(func() {}), api.ErrLoopClosed)
}

package concurrency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-wait/api"
	"github.com/momentics/hioload-wait/fake"
)

type firing struct {
	ev   api.Event
	tick uint64
	at   time.Time
}

func startLoop(t *testing.T, cfg LoopConfig) (*Loop, *fake.Multiplexer, chan firing) {
	t.Helper()
	mux := fake.NewMultiplexer()
	fired := make(chan firing, 16)
	var l *Loop
	l = NewEventLoop(mux, api.EventSinkFunc(func(ev api.Event) {
		fired <- firing{ev: ev, tick: l.Ticks(), at: time.Now()}
	}), cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return l, mux, fired
}

// onLoop runs fn on the loop goroutine and waits for it.
func onLoop(t *testing.T, l *Loop, fn func()) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, l.Submit(func() {
		fn()
		close(done)
	}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop task did not run")
	}
}

func recv(t *testing.T, ch chan firing) firing {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
	return firing{}
}

func TestLoop_TimerExpiry(t *testing.T) {
	l, _, fired := startLoop(t, LoopConfig{})
	start := time.Now()
	onLoop(t, l, func() {
		_, err := l.Arm(20*time.Millisecond, 7)
		require.NoError(t, err)
	})
	f := recv(t, fired)
	require.Equal(t, api.Event{Tag: 7, Source: api.SourceTimer}, f.ev)
	require.GreaterOrEqual(t, f.at.Sub(start), 15*time.Millisecond)
}

func TestLoop_DisarmedTimerNeverFires(t *testing.T) {
	l, _, fired := startLoop(t, LoopConfig{})
	onLoop(t, l, func() {
		id, err := l.Arm(10*time.Millisecond, 1)
		require.NoError(t, err)
		require.True(t, l.Disarm(id))
		require.False(t, l.Disarm(id))
		_, err = l.Arm(30*time.Millisecond, 2)
		require.NoError(t, err)
	})
	f := recv(t, fired)
	require.Equal(t, uint64(2), f.ev.Tag)
}

func TestLoop_PostedRunsOnLaterPass(t *testing.T) {
	l, _, fired := startLoop(t, LoopConfig{FastPost: true})
	var postedAt uint64
	onLoop(t, l, func() {
		postedAt = l.Ticks()
		_, err := l.Post(3)
		require.NoError(t, err)
		require.Equal(t, 1, l.PendingPosted())
	})
	f := recv(t, fired)
	require.Equal(t, api.Event{Tag: 3, Source: api.SourcePosted}, f.ev)
	require.Greater(t, f.tick, postedAt)
}

func TestLoop_UnpostDrops(t *testing.T) {
	l, _, fired := startLoop(t, LoopConfig{FastPost: true})
	onLoop(t, l, func() {
		id, err := l.Post(4)
		require.NoError(t, err)
		require.True(t, l.Unpost(id))
		require.False(t, l.Unpost(id))
		_, err = l.Post(5)
		require.NoError(t, err)
	})
	f := recv(t, fired)
	require.Equal(t, uint64(5), f.ev.Tag)
}

func TestLoop_PostWithoutFastPath(t *testing.T) {
	l, _, _ := startLoop(t, LoopConfig{})
	onLoop(t, l, func() {
		_, err := l.Post(1)
		require.ErrorIs(t, err, api.ErrNotSupported)
	})
}

func TestLoop_ReadReadiness(t *testing.T) {
	l, mux, fired := startLoop(t, LoopConfig{})
	onLoop(t, l, func() {
		require.NoError(t, mux.AddRead(9, 99))
	})
	mux.Fire(9)
	f := recv(t, fired)
	require.Equal(t, api.Event{Tag: 99, Source: api.SourceRead}, f.ev)
}

func TestLoop_SubmitAfterStop(t *testing.T) {
	mux := fake.NewMultiplexer()
	l := NewEventLoop(mux, nil, LoopConfig{})
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()
	onLoop(t, l, func() {})
	l.Stop()
	require.NoError(t, <-done)
	l.Wait()
	require.ErrorIs(t, l.Submit(func() {}), api.ErrLoopClosed)
	_, err := l.Arm(time.Millisecond, 1)
	require.ErrorIs(t, err, api.ErrLoopClosed)
}

func TestLoop_HandlerPanicKeepsLoopAlive(t *testing.T) {
	l, _, _ := startLoop(t, LoopConfig{})
	require.NoError(t, l.Submit(func() { panic("boom") }))
	onLoop(t, l, func() {})
}

func TestLoop_TickBoundsIdlePollAndPublishesGauges(t *testing.T) {
	l, _, _ := startLoop(t, LoopConfig{FastPost: true, Tick: 5 * time.Millisecond})

	onLoop(t, l, func() {
		_, err := l.Arm(time.Hour, 1)
		require.NoError(t, err)
		_, err = l.Post(2)
		require.NoError(t, err)
	})
	require.Eventually(t, func() bool {
		timers, posted := l.Gauges()
		return timers == 1 && posted == 0
	}, time.Second, 5*time.Millisecond)

	// an idle loop still completes passes at the tick rate
	start := l.Ticks()
	require.Eventually(t, func() bool { return l.Ticks() > start+2 }, time.Second, 5*time.Millisecond)
}

package adapters_test

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-wait/adapters"
	"github.com/momentics/hioload-wait/api"
	"github.com/momentics/hioload-wait/host"
)

type counter map[string]int64

func (c counter) Add(key string, delta int64) { c[key] += delta }

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) adapters.Middleware {
		return func(next host.Handler) host.Handler {
			return func(r *host.Request) host.Code {
				order = append(order, name)
				return next(r)
			}
		}
	}
	h := adapters.Chain(func(*host.Request) host.Code {
		order = append(order, "handler")
		return host.CodeOK
	}, mark("outer"), mark("inner"))

	r := host.NewRequest(host.NewConn(1, nil), nil, nil)
	require.Equal(t, host.CodeOK, h(r))
	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRecoveryAndLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	m := counter{}

	h := adapters.Chain(func(*host.Request) host.Code {
		panic("boom")
	}, adapters.MetricsMiddleware(m), adapters.LoggingMiddleware(logger), adapters.RecoveryMiddleware(logger))

	r := host.NewRequest(host.NewConn(1, nil), nil, nil)
	r.EnterStage(host.StageContent)
	require.Equal(t, host.CodeInternal, h(r))
	require.Equal(t, int64(1), m["handler.processed"])
	require.Contains(t, buf.String(), "panic recovered: boom")
	require.Contains(t, buf.String(), "content -> internal")
}

func TestSinkAdapter_CountsBySource(t *testing.T) {
	m := counter{}
	var got []api.Event
	s := adapters.NewSinkAdapter(api.EventSinkFunc(func(ev api.Event) { got = append(got, ev) }), m)

	s.Deliver(api.Event{Tag: 1, Source: api.SourceRead})
	s.Deliver(api.Event{Tag: 2, Source: api.SourcePosted})
	s.Deliver(api.Event{Tag: 3, Source: api.SourcePosted})

	require.Len(t, got, 3)
	require.Equal(t, counter{"loop.events.read": 1, "loop.events.posted": 2}, m)
}

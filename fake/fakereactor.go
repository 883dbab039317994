// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"fmt"
	"sync"
	"time"

	"github.com/momentics/hioload-wait/api"
)

// Multiplexer is an in-memory api.Poller. Tests mark descriptors ready with Fire.
type Multiplexer struct {
	mu      sync.Mutex
	watched map[int]uint64
	ready   []int
	wake    chan struct{}
	adds    int
	dels    int
}

var _ api.Poller = (*Multiplexer)(nil)

// NewMultiplexer creates an empty fake multiplexer.
func NewMultiplexer() *Multiplexer {
	return &Multiplexer{
		watched: make(map[int]uint64),
		wake:    make(chan struct{}, 1),
	}
}

func (m *Multiplexer) AddRead(fd int, tag uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.watched[fd]; ok {
		return fmt.Errorf("%w: fd %d", api.ErrAlreadyExists, fd)
	}
	m.watched[fd] = tag
	m.adds++
	return nil
}

func (m *Multiplexer) DelRead(fd int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.watched[fd]; !ok {
		return fmt.Errorf("%w: fd %d", api.ErrNotFound, fd)
	}
	delete(m.watched, fd)
	m.dels++
	return nil
}

// Watched reports registered descriptors.
func (m *Multiplexer) Watched() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watched)
}

// Counts reports total successful AddRead and DelRead calls.
func (m *Multiplexer) Counts() (adds, dels int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adds, m.dels
}

// Tag returns the tag fd was registered with.
func (m *Multiplexer) Tag(fd int) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tag, ok := m.watched[fd]
	return tag, ok
}

// Fire marks fd readable. Safe from any goroutine.
func (m *Multiplexer) Fire(fd int) {
	m.mu.Lock()
	m.ready = append(m.ready, fd)
	m.mu.Unlock()
	_ = m.Wake()
}

func (m *Multiplexer) Poll(timeoutMs int, out []api.Ready) (int, error) {
	if n := m.collect(out); n > 0 {
		return n, nil
	}
	if timeoutMs != 0 {
		var timeout <-chan time.Time
		if timeoutMs > 0 {
			t := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
			defer t.Stop()
			timeout = t.C
		}
		select {
		case <-m.wake:
		case <-timeout:
		}
	}
	return m.collect(out), nil
}

// collect reports fired descriptors that are still watched; readiness of an
// unwatched descriptor is dropped, like a kernel would after EPOLL_CTL_DEL.
func (m *Multiplexer) collect(out []api.Ready) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	rest := m.ready[:0]
	for _, fd := range m.ready {
		tag, ok := m.watched[fd]
		if !ok {
			continue
		}
		if n == len(out) {
			rest = append(rest, fd)
			continue
		}
		out[n] = api.Ready{Fd: fd, Tag: tag}
		n++
	}
	m.ready = rest
	return n
}

func (m *Multiplexer) Wake() error {
	select {
	case m.wake <- struct{}{}:
	default:
	}
	return nil
}

func (m *Multiplexer) Close() error { return nil }

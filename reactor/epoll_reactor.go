//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"encoding/binary"
	"fmt"

	"fortio.org/safecast"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-wait/api"
)

// wakeTag marks the internal eventfd; it is never reported to callers.
const wakeTag = 0

// EpollReactor implements api.Poller using level-triggered Linux epoll.
// It is owned by a single loop goroutine; only Wake may be called concurrently.
type EpollReactor struct {
	epfd   int
	wakeFd int
	tags   map[int]uint64
	events []unix.EpollEvent
}

var _ api.Poller = (*EpollReactor)(nil)

// NewPoller creates a new epoll instance with an eventfd wakeup channel.
func NewPoller(maxEvents int) (*EpollReactor, error) {
	if maxEvents <= 0 {
		maxEvents = 128
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wfd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	r := &EpollReactor{
		epfd:   epfd,
		wakeFd: wfd,
		tags:   make(map[int]uint64),
		events: make([]unix.EpollEvent, maxEvents),
	}
	if err := r.ctl(unix.EPOLL_CTL_ADD, wfd); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (r *EpollReactor) ctl(op, fd int) error {
	fd32, err := safecast.Conv[int32](fd)
	if err != nil {
		return fmt.Errorf("%w: fd %d: %v", api.ErrInvalidArgument, fd, err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLRDHUP, Fd: fd32}
	if err := unix.EpollCtl(r.epfd, op, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl: %w", err)
	}
	return nil
}

// AddRead adds fd to the epoll interest set for read readiness.
func (r *EpollReactor) AddRead(fd int, tag uint64) error {
	if _, ok := r.tags[fd]; ok || fd == r.wakeFd {
		return fmt.Errorf("%w: fd %d already watched", api.ErrAlreadyExists, fd)
	}
	if err := r.ctl(unix.EPOLL_CTL_ADD, fd); err != nil {
		return err
	}
	r.tags[fd] = tag
	return nil
}

// DelRead removes fd from the epoll interest set.
func (r *EpollReactor) DelRead(fd int) error {
	if _, ok := r.tags[fd]; !ok {
		return fmt.Errorf("%w: fd %d not watched", api.ErrNotFound, fd)
	}
	delete(r.tags, fd)
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		// The descriptor may already be closed by its owner; the kernel dropped it then.
		if err == unix.EBADF || err == unix.ENOENT {
			return nil
		}
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Watched reports the number of descriptors currently registered.
func (r *EpollReactor) Watched() int {
	return len(r.tags)
}

// Poll blocks up to timeoutMs and reports ready descriptors into out.
// Errors and hangups count as read readiness.
func (r *EpollReactor) Poll(timeoutMs int, out []api.Ready) (int, error) {
	if timeoutMs < 0 {
		timeoutMs = -1
	}
	limit := len(r.events)
	if len(out) < limit {
		limit = len(out)
	}
	n, err := unix.EpollWait(r.epfd, r.events[:limit], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil // interrupted by signal, normal
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}

	k := 0
	for i := 0; i < n; i++ {
		fd := int(r.events[i].Fd)
		if fd == r.wakeFd {
			r.drainWake()
			continue
		}
		tag, ok := r.tags[fd]
		if !ok || tag == wakeTag {
			continue
		}
		out[k] = api.Ready{Fd: fd, Tag: tag}
		k++
	}
	return k, nil
}

// Wake interrupts a blocking Poll. Safe for concurrent use.
func (r *EpollReactor) Wake() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(r.wakeFd, buf[:])
	if err == unix.EAGAIN {
		return nil // counter saturated, a wakeup is already pending
	}
	return err
}

func (r *EpollReactor) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(r.wakeFd, buf[:])
}

// Close releases the epoll and eventfd descriptors.
func (r *EpollReactor) Close() error {
	err := unix.Close(r.wakeFd)
	if cerr := unix.Close(r.epfd); err == nil {
		err = cerr
	}
	return err
}

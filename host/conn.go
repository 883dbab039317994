// File: host/conn.go
// Author: momentics <momentics@gmail.com>

package host

import (
	"log"

	"github.com/eapache/queue"
)

// Conn is the client connection requests run on. Work posted against it runs
// when RunPosted is called after an event has been handled.
type Conn struct {
	id     uint64
	posted *queue.Queue // of func()
	log    *log.Logger
}

// NewConn creates a connection; logger may be nil.
func NewConn(id uint64, logger *log.Logger) *Conn {
	if logger == nil {
		logger = log.Default()
	}
	return &Conn{id: id, posted: queue.New(), log: logger}
}

func (c *Conn) ID() uint64 { return c.id }

// Post queues fn to run on the next RunPosted.
func (c *Conn) Post(fn func()) {
	if fn != nil {
		c.posted.Add(fn)
	}
}

// Posted reports queued work items.
func (c *Conn) Posted() int { return c.posted.Length() }

// RunPosted drains the posted work, including items posted while draining.
func (c *Conn) RunPosted() {
	for c.posted.Length() > 0 {
		fn := c.posted.Remove().(func())
		fn()
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Livegate Contributors

package core

import (
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultEventBuffer is the per-connection outbound buffer size. A subscriber
// that falls this far behind is treated as broken and evicted.
const DefaultEventBuffer = 64

// Delivery errors. Both cause eviction from the registry; neither is ever
// surfaced to the publisher.
var (
	ErrConnClosed  = errors.New("connection closed")
	ErrConnStalled = errors.New("connection buffer full")
)

// Conn is one long-lived subscriber connection. It is created by a transport
// adapter on connect and owned by the Lifecycle manager until close. Events
// are consumed from Events() by the transport's write loop.
type Conn struct {
	id    ulid.ULID
	topic string

	events chan Event
	done   chan struct{}
	once   sync.Once

	mu           sync.Mutex
	lastActivity time.Time
}

// NewConn creates a connection handle for a topic subscription.
func NewConn(topic string) *Conn {
	return &Conn{
		id:           NewULID(),
		topic:        topic,
		events:       make(chan Event, DefaultEventBuffer),
		done:         make(chan struct{}),
		lastActivity: time.Now(),
	}
}

// ID returns the unique connection id.
func (c *Conn) ID() ulid.ULID { return c.id }

// Topic returns the topic this connection subscribes to. A connection
// subscribes to exactly one topic for its whole lifetime.
func (c *Conn) Topic() string { return c.topic }

// Events returns the channel the transport's write loop consumes.
func (c *Conn) Events() <-chan Event { return c.events }

// Done is closed when the connection enters its terminal state.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Closed reports whether the connection has been closed.
func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// LastActivity returns the time of the most recent successful delivery.
func (c *Conn) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Send queues an event for the transport to write. It never blocks: a closed
// connection returns ErrConnClosed and a full buffer returns ErrConnStalled,
// so one dead or slow subscriber cannot stall a broadcast.
func (c *Conn) Send(ev Event) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.events <- ev:
		c.mu.Lock()
		c.lastActivity = time.Now()
		c.mu.Unlock()
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrConnStalled
	}
}

// Close moves the connection to its terminal state. Transports watching
// Done() observe the close and tear down; a later OnDisconnect is a no-op.
// Safe to call more than once.
func (c *Conn) Close() {
	c.transitionClosed()
}

// transitionClosed moves the connection to its terminal state and reports
// whether this call performed the transition. Every later call returns false,
// which is how OnDisconnect stays exactly-once under double-close races.
func (c *Conn) transitionClosed() bool {
	first := false
	c.once.Do(func() {
		close(c.done)
		first = true
	})
	return first
}

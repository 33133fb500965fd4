// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Livegate Contributors

package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/livegate/livegate/pkg/errutil"
)

// Lifecycle defaults.
const (
	DefaultBacklogLimit      = 50
	DefaultHeartbeatInterval = 30 * time.Second
)

// Lifecycle manages a connection from transport-level connect to close:
// registration, backlog replay, heartbeats, and exactly-once teardown.
type Lifecycle struct {
	registry  *Registry
	store     RecordStore
	backlog   int
	heartbeat time.Duration
}

// LifecycleOption configures a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithBacklogLimit sets how many recent records are replayed on connect.
func WithBacklogLimit(n int) LifecycleOption {
	return func(l *Lifecycle) { l.backlog = n }
}

// WithHeartbeatInterval sets the keepalive interval.
func WithHeartbeatInterval(d time.Duration) LifecycleOption {
	return func(l *Lifecycle) { l.heartbeat = d }
}

// NewLifecycle creates a lifecycle manager bound to a registry and store.
func NewLifecycle(registry *Registry, store RecordStore, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		registry:  registry,
		store:     store,
		backlog:   DefaultBacklogLimit,
		heartbeat: DefaultHeartbeatInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// HeartbeatInterval returns the configured keepalive interval.
func (l *Lifecycle) HeartbeatInterval() time.Duration { return l.heartbeat }

// OnConnect registers the connection, acknowledges it, and replays the
// backlog oldest-first. A backlog query failure degrades the connection
// (acknowledged, no history) instead of closing it: delivery of new events
// is worth more than completeness of old ones.
func (l *Lifecycle) OnConnect(ctx context.Context, conn *Conn) error {
	l.registry.Subscribe(conn)

	if err := conn.Send(ConnectedEvent()); err != nil {
		l.OnDisconnect(conn)
		return oops.Code("CONNECT_ACK_FAILED").
			With("conn_id", conn.ID().String()).
			With("topic", conn.Topic()).
			Wrap(err)
	}

	records, err := l.store.Recent(ctx, conn.Topic(), l.backlog)
	if err != nil {
		errutil.LogError(slog.Default(), "backlog unavailable, connection opens degraded",
			oops.Code("BACKLOG_UNAVAILABLE").
				With("conn_id", conn.ID().String()).
				With("topic", conn.Topic()).
				Wrap(err))
		return nil
	}

	for _, record := range records {
		if err := conn.Send(RecordEvent(record)); err != nil {
			// Buffer exhausted or connection died mid-replay. The client
			// recovers the rest on its next connect.
			slog.Warn("backlog replay truncated",
				"conn_id", conn.ID().String(),
				"topic", conn.Topic(),
				"error", err,
			)
			return nil
		}
	}
	return nil
}

// StartHeartbeat emits a heartbeat event on a fixed interval until the
// connection closes. The ticker is released on every exit path; the goroutine
// is traceable to exactly one connection and stops with it, so repeated
// connect/disconnect cycles accumulate no timers.
func (l *Lifecycle) StartHeartbeat(conn *Conn) {
	go func() {
		ticker := time.NewTicker(l.heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-conn.Done():
				return
			case <-ticker.C:
				// A full buffer is transient: the transport may drain it
				// before the next tick, so the keepalive keeps trying and
				// only a closed connection stops it.
				if err := conn.Send(HeartbeatEvent()); errors.Is(err, ErrConnClosed) {
					return
				}
			}
		}
	}()
}

// OnDisconnect tears the connection down: stops heartbeats and removes the
// registry entry. Runs exactly once per connection no matter whether the
// close was client-initiated, server-initiated, or error-triggered; later
// calls are no-ops.
func (l *Lifecycle) OnDisconnect(conn *Conn) {
	if !conn.transitionClosed() {
		return
	}
	l.registry.Unsubscribe(conn)
	slog.Debug("connection closed",
		"conn_id", conn.ID().String(),
		"topic", conn.Topic(),
	)
}

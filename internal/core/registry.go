// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Livegate Contributors

package core

import (
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/livegate/livegate/pkg/errutil"
)

// Registry maps topics to their current subscriber connections. It is the
// only shared mutable state in the gateway: constructed once at service
// start and passed to the transports, never recreated.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]map[*Conn]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		topics: make(map[string]map[*Conn]struct{}),
	}
}

// Subscribe adds a connection to its topic's subscriber set. Topic entries
// are created lazily on first subscription. Idempotent.
func (r *Registry) Subscribe(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.topics[conn.Topic()]
	if !ok {
		subs = make(map[*Conn]struct{})
		r.topics[conn.Topic()] = subs
	}
	subs[conn] = struct{}{}
}

// Unsubscribe removes a connection from its topic's set. Empty sets are
// garbage-collected so idle topics hold no registry state. No-op when the
// connection was never subscribed.
func (r *Registry) Unsubscribe(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.topics[conn.Topic()]
	if !ok {
		return
	}
	delete(subs, conn)
	if len(subs) == 0 {
		delete(r.topics, conn.Topic())
	}
}

// Broadcast delivers an event to every current subscriber of a topic and
// returns the number of connections notified. Delivery iterates a
// point-in-time snapshot of the subscriber set, so membership changes racing
// the broadcast neither panic nor deliver to a half-removed connection.
// A failed delivery evicts that subscriber and closes its connection, so the
// transport observes Done() and releases the stream; the loop continues and a
// single broken connection never aborts the broadcast.
func (r *Registry) Broadcast(topic string, ev Event) int {
	r.mu.RLock()
	snapshot := make([]*Conn, 0, len(r.topics[topic]))
	for conn := range r.topics[topic] {
		snapshot = append(snapshot, conn)
	}
	r.mu.RUnlock()

	notified := 0
	for _, conn := range snapshot {
		if err := conn.Send(ev); err != nil {
			errutil.LogError(slog.Default(), "delivery failed, evicting subscriber",
				oops.Code("DELIVERY_FAILED").
					With("conn_id", conn.ID().String()).
					With("topic", topic).
					Wrap(err))
			conn.Close()
			r.Unsubscribe(conn)
			continue
		}
		notified++
	}
	return notified
}

// Subscribers returns the current subscriber count for a topic.
func (r *Registry) Subscribers(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

// Topics returns the number of topics with at least one subscriber.
func (r *Registry) Topics() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}

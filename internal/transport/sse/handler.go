// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Livegate Contributors

// Package sse provides the server-sent-event transport adapter.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/livegate/livegate/internal/core"
	"github.com/livegate/livegate/pkg/errutil"
)

const transportName = "sse"

// Handler binds the fan-out engine to event-stream HTTP endpoints.
type Handler struct {
	lifecycle *core.Lifecycle
	publisher *core.Publisher
}

// NewHandler creates the SSE transport adapter.
func NewHandler(lifecycle *core.Lifecycle, publisher *core.Publisher) *Handler {
	return &Handler{
		lifecycle: lifecycle,
		publisher: publisher,
	}
}

// RegisterRoutes attaches the per-topic subscribe and publish endpoints.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /topics/{topic}/events", h.Subscribe)
	mux.HandleFunc("POST /topics/{topic}/events", h.Publish)
}

// Subscribe keeps the response open as an event stream for one topic:
// an initial "connected" frame, backlog replay oldest-first, then broadcast
// and heartbeat frames until the client goes away.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	topic := r.PathValue("topic")
	if topic == "" {
		http.Error(w, "topic is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	setStreamHeaders(w)
	flusher.Flush()

	conn := core.NewConn(topic)
	core.RecordConnect(transportName)
	defer core.RecordDisconnect(transportName)
	defer h.lifecycle.OnDisconnect(conn)

	if err := h.lifecycle.OnConnect(r.Context(), conn); err != nil {
		errutil.LogError(slog.Default(), "sse connect failed", err)
		return
	}
	h.lifecycle.StartHeartbeat(conn)

	slog.Debug("sse subscriber connected",
		"conn_id", conn.ID().String(),
		"topic", topic,
	)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-conn.Done():
			// Closed server-side, typically after eviction. Ending the
			// response lets the client reconnect and recover via backlog.
			return
		case ev := <-conn.Events():
			if err := writeFrame(w, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Publish accepts a JSON draft, runs the publish path, and echoes the stored
// record back as a one-event stream that closes immediately. The echo is the
// writer's own copy; subscribers get theirs through the broadcast.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	topic := r.PathValue("topic")
	if topic == "" {
		http.Error(w, "topic is required", http.StatusBadRequest)
		return
	}

	var draft core.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	stored, err := h.publisher.Publish(r.Context(), topic, draft)
	if err != nil {
		if core.IsMalformed(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		errutil.LogError(slog.Default(), "publish failed", err)
		http.Error(w, "failed to store record", http.StatusInternalServerError)
		return
	}

	setStreamHeaders(w)
	if err := writeFrame(w, core.RecordEvent(stored)); err != nil {
		errutil.LogError(slog.Default(), "publish echo failed", err)
	}
}

// setStreamHeaders marks the response as a standard event stream.
func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// writeFrame emits one event-stream frame: a "data: " prefixed payload
// terminated by a blank line.
func writeFrame(w http.ResponseWriter, ev core.Event) error {
	payload, err := ev.Frame()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return nil
}

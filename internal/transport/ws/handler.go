// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Livegate Contributors

// Package ws provides the WebSocket transport adapter: one duplex channel
// carrying inbound publishes and outbound fan-out for a single topic.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/livegate/livegate/internal/auth"
	"github.com/livegate/livegate/internal/core"
	"github.com/livegate/livegate/pkg/errutil"
)

const transportName = "ws"

// Write and read deadlines for dead-peer detection.
const (
	writeWait = 5 * time.Second
	readWait  = 60 * time.Second
)

// Handler binds the fan-out engine to WebSocket endpoints. Connections must
// present a signed token at handshake time; verification failure rejects the
// request before the upgrade, so no registry entry ever exists for it.
type Handler struct {
	lifecycle *core.Lifecycle
	publisher *core.Publisher
	verifier  *auth.Verifier
	upgrader  websocket.Upgrader
}

// NewHandler creates the WebSocket transport adapter.
func NewHandler(lifecycle *core.Lifecycle, publisher *core.Publisher, verifier *auth.Verifier) *Handler {
	return &Handler{
		lifecycle: lifecycle,
		publisher: publisher,
		verifier:  verifier,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool {
				// The gateway sits behind the platform's edge; origin policy
				// is enforced there.
				return true
			},
		},
	}
}

// RegisterRoutes attaches the per-topic socket endpoint.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /topics/{topic}/ws", h.Serve)
}

// Serve authenticates the handshake, upgrades, and runs the duplex loops:
// outbound events from the registry, inbound JSON drafts to the publisher.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	topic := r.PathValue("topic")
	if topic == "" {
		http.Error(w, "topic is required", http.StatusBadRequest)
		return
	}

	claims, err := h.verifier.Verify(bearerToken(r))
	if err != nil {
		slog.Warn("ws handshake rejected",
			"topic", topic,
			"remote", r.RemoteAddr,
			"error", err,
		)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "topic", topic, "error", err)
		return
	}
	defer sock.Close() //nolint:errcheck // close is best-effort on all paths

	conn := core.NewConn(topic)
	core.RecordConnect(transportName)
	defer core.RecordDisconnect(transportName)
	defer h.lifecycle.OnDisconnect(conn)

	if err := h.lifecycle.OnConnect(r.Context(), conn); err != nil {
		errutil.LogError(slog.Default(), "ws connect failed", err)
		return
	}
	h.lifecycle.StartHeartbeat(conn)

	slog.Debug("ws subscriber connected",
		"conn_id", conn.ID().String(),
		"topic", topic,
		"subject", claims.Subject,
	)

	// Dead-peer detection: the heartbeat pings below must be answered.
	_ = sock.SetReadDeadline(time.Now().Add(readWait))
	sock.SetPongHandler(func(string) error {
		return sock.SetReadDeadline(time.Now().Add(readWait))
	})

	go h.writeLoop(sock, conn)
	h.readLoop(r, sock, conn, claims)
}

// writeLoop drains the connection's event channel onto the socket. Heartbeat
// events become protocol pings; everything else is a text frame. The loop
// ends on a write error or when the connection closes (eviction included);
// closing the socket unblocks the read loop so Serve's deferred teardown
// runs once.
func (h *Handler) writeLoop(sock *websocket.Conn, conn *core.Conn) {
	defer sock.Close() //nolint:errcheck // close is best-effort on all paths
	for {
		select {
		case <-conn.Done():
			return
		case ev := <-conn.Events():
			_ = sock.SetWriteDeadline(time.Now().Add(writeWait))

			if ev.Type == core.EventHeartbeat {
				if err := sock.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
				continue
			}

			payload, err := ev.Frame()
			if err != nil {
				errutil.LogError(slog.Default(), "ws frame encode failed", err)
				continue
			}
			if err := sock.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

// readLoop parses inbound JSON drafts and routes them to the publish path,
// attributing them to the authenticated principal. It returns when the peer
// goes away, which is what drives teardown.
func (h *Handler) readLoop(r *http.Request, sock *websocket.Conn, conn *core.Conn, claims *auth.Claims) {
	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Debug("ws read error",
					"conn_id", conn.ID().String(),
					"error", err,
				)
			}
			return
		}

		var draft core.Draft
		if err := json.Unmarshal(data, &draft); err != nil {
			slog.Debug("ws inbound frame rejected",
				"conn_id", conn.ID().String(),
				"error", err,
			)
			continue
		}
		draft.AuthorID = claims.Subject
		draft.Author = claims.Name

		if _, err := h.publisher.Publish(r.Context(), conn.Topic(), draft); err != nil {
			// Publish failures are local to this write; the connection and
			// other subscribers are unaffected.
			errutil.LogError(slog.Default(), "ws publish failed", err)
		}
	}
}

// bearerToken extracts the credential from the Authorization header or the
// token query parameter (browser WebSocket clients cannot set headers).
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, found := strings.CutPrefix(header, "Bearer "); found {
		return token
	}
	return r.URL.Query().Get("token")
}

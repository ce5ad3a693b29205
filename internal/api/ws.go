package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	// wsBuffer bounds per-connection backlog; a client that cannot keep up
	// loses messages rather than stalling the bus callback.
	wsBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The service sits behind trusted infrastructure; origin checks belong
	// to whatever fronts it.
	CheckOrigin: func(*http.Request) bool { return true },
}

// GET /v1/ws/notifications/{user} — live notification stream. Each frame is
// the JSON notification exactly as published to the user's bus subject.
func (h *Handler) notificationSocket(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "live notifications unavailable")
		return
	}
	user := r.PathValue("user")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		slog.Warn("websocket upgrade failed", "user", user, "err", err)
		return
	}
	defer conn.Close()

	frames := make(chan []byte, wsBuffer)
	sub, err := h.bus.SubscribeUser(user, func(body []byte) {
		select {
		case frames <- body:
		default:
			slog.Warn("websocket backlog full, dropping frame", "user", user)
		}
	})
	if err != nil {
		slog.Error("websocket bus subscription failed", "user", user, "err", err)
		return
	}
	defer func() { _ = sub.Unsubscribe() }()

	// Reader loop only notices the client going away; inbound frames are
	// ignored.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	slog.Info("websocket connected", "user", user)
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case body := <-frames:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
				slog.Info("websocket closed", "user", user, "err", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			slog.Info("websocket disconnected", "user", user)
			return
		}
	}
}

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the deadline for a single frame write
	writeWait = 10 * time.Second

	// pongWait is how long a client may stay silent before it is dropped
	pongWait = 60 * time.Second

	// pingInterval must be shorter than pongWait
	pingInterval = 30 * time.Second

	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The map page may be served from a different origin than the API
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS pushes the session snapshot to the browser after every change,
// so async route results show up without polling.
func (h *HTTPHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	snap, err := h.mapService.Snapshot(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	updates, cancel, err := h.mapService.Subscribe(sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}
	defer conn.Close()

	slog.Debug("WebSocket subscriber connected", "session_id", sessionID)

	// Drain client frames so control messages are processed; exit on close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(maxMessageSize)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(snap); err != nil {
		return
	}

	for {
		select {
		case next, ok := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			if err := conn.WriteJSON(next); err != nil {
				slog.Debug("WebSocket write failed", "session_id", sessionID, "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			slog.Debug("WebSocket subscriber disconnected", "session_id", sessionID)
			return
		}
	}
}

// Package hub fans events out to every live real-time connection. It is
// the single pipe between the source adapters and the frontend feed.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nhle/command-center/internal/model"
)

// Conn is the slice of a websocket connection the hub writes to. It is an
// interface so delivery failures can be simulated in tests.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Hub maintains the set of live connections and broadcasts events to all
// of them. Connections carry no persisted identity; a dropped client is
// expected to reconnect and request a fresh initial snapshot.
type Hub struct {
	log *slog.Logger

	mu    sync.Mutex
	conns map[Conn]struct{}
}

// New creates an empty hub.
func New(log *slog.Logger) *Hub {
	return &Hub{
		log:   log,
		conns: make(map[Conn]struct{}),
	}
}

// Register adds a connection to the live set.
func (h *Hub) Register(conn Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	count := len(h.conns)
	h.mu.Unlock()

	h.log.Info("client connected", "active_connections", count)
}

// Unregister removes a connection from the live set.
func (h *Hub) Unregister(conn Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	count := len(h.conns)
	h.mu.Unlock()

	h.log.Info("client disconnected", "active_connections", count)
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast serializes the event once and delivers it to every registered
// connection. A connection whose write fails is closed and permanently
// removed; there is no retry or redelivery.
func (h *Hub) Broadcast(e model.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.log.Error("marshaling event failed", "event", e.Event, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var dead []Conn
	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			dead = append(dead, conn)
		}
	}

	for _, conn := range dead {
		_ = conn.Close()
		delete(h.conns, conn)
	}
	if len(dead) > 0 {
		h.log.Warn("evicted dead connections",
			"evicted", len(dead), "active_connections", len(h.conns))
	}
}

// SendTo delivers an event to a single connection, used for the
// initial_load snapshot that only the newly connected client receives.
func (h *Hub) SendTo(conn Conn, e model.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// SendNotification broadcasts a freshly observed notification.
func (h *Hub) SendNotification(n model.Notification) {
	h.Broadcast(model.NewNotificationEvent(n))
}

// SendUpdate broadcasts a status-only delta for a notification.
func (h *Hub) SendUpdate(u model.NotificationUpdate) {
	h.Broadcast(model.NotificationUpdatedEvent(u))
}

// SendConnectionStatus broadcasts a per-source up/down transition.
func (h *Hub) SendConnectionStatus(source model.Source, account string, connected bool) {
	h.Broadcast(model.ConnectionStatusEvent(source, account, connected))
}

// SendError broadcasts a user-visible error message.
func (h *Hub) SendError(message string) {
	h.Broadcast(model.ErrorEvent(message))
}

package realtime

import (
	"apartment_parking/internal/service"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Conn is the subset of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Relay forwards a push to other API instances when the user is not
// connected to this one.
type Relay interface {
	Publish(userID int, data []byte) error
}

type client struct {
	id   string
	conn Conn
	mu   sync.Mutex // one writer at a time per connection
}

func (c *client) write(data []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub keeps at most one live connection per user.
type Hub struct {
	mu           sync.RWMutex
	clients      map[int]*client
	writeTimeout time.Duration
	relay        Relay
}

func NewHub(writeTimeout time.Duration) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Hub{
		clients:      make(map[int]*client),
		writeTimeout: writeTimeout,
	}
}

// SetRelay enables cross-instance delivery. Call before serving traffic.
func (h *Hub) SetRelay(r Relay) {
	h.relay = r
}

// Register stores conn for userID and returns its connection id. An existing
// connection for the same user is closed and replaced.
func (h *Hub) Register(userID int, conn Conn) string {
	c := &client{id: uuid.NewString(), conn: conn}

	h.mu.Lock()
	old := h.clients[userID]
	h.clients[userID] = c
	total := len(h.clients)
	h.mu.Unlock()

	if old != nil {
		old.conn.Close()
		log.Info().Int("user_id", userID).Str("conn_id", old.id).Msg("websocket connection replaced")
	}
	log.Info().Int("user_id", userID).Str("conn_id", c.id).Int("total", total).Msg("websocket client connected")
	return c.id
}

// Unregister removes the user's connection only if it is still connID, so a
// stale disconnect cannot drop a newer connection.
func (h *Hub) Unregister(userID int, connID string) {
	h.mu.Lock()
	c, ok := h.clients[userID]
	if !ok || c.id != connID {
		h.mu.Unlock()
		return
	}
	delete(h.clients, userID)
	total := len(h.clients)
	h.mu.Unlock()

	c.conn.Close()
	log.Info().Int("user_id", userID).Str("conn_id", connID).Int("total", total).Msg("websocket client disconnected")
}

// Send delivers event to the user's local connection, or hands it to the
// relay when there is none. service.ErrNotConnected means it was dropped.
func (h *Hub) Send(ctx context.Context, userID int, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal push event: %w", err)
	}

	err = h.DeliverLocal(userID, data)
	if errors.Is(err, service.ErrNotConnected) && h.relay != nil {
		if relayErr := h.relay.Publish(userID, data); relayErr != nil {
			return fmt.Errorf("relay push: %w", relayErr)
		}
		return nil
	}
	return err
}

// DeliverLocal writes an encoded event to the user's connection on this instance.
func (h *Hub) DeliverLocal(userID int, data []byte) error {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return service.ErrNotConnected
	}

	if err := c.write(data, h.writeTimeout); err != nil {
		h.Unregister(userID, c.id)
		return fmt.Errorf("write to user %d: %w", userID, err)
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[int]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}

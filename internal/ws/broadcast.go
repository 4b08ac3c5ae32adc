// Package ws serves the engine to remote clients: a JSON API mirroring the
// gateway operations, plus a WebSocket feed that pushes the engine's
// sequenced event envelopes.
package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

// ErrTooManyClients is returned by AddClient once the feed limit is reached.
var ErrTooManyClients = errors.New("too many feed clients")

const sendBuffer = 64

type client struct {
	b    *Broadcaster
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			return
		}
	}
}

// Broadcaster fans engine events out to every connected feed client. It
// implements engine.Sink: Send runs with the engine lock held and never
// blocks, so a client that cannot keep up is disconnected rather than
// stalling the engine.
type Broadcaster struct {
	log        *slog.Logger
	maxClients int

	mu      sync.RWMutex
	clients map[*client]bool
}

// NewBroadcaster builds a broadcaster. maxClients of zero means unlimited.
func NewBroadcaster(maxClients int, log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{
		log:        log,
		maxClients: maxClients,
		clients:    make(map[*client]bool),
	}
}

// AddClient registers a connection and starts its write pump.
func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	c := &client{b: b, conn: conn, send: make(chan []byte, sendBuffer)}

	b.mu.Lock()
	if b.maxClients > 0 && len(b.clients) >= b.maxClients {
		b.mu.Unlock()
		return nil, ErrTooManyClients
	}
	b.clients[c] = true
	b.mu.Unlock()

	go c.writePump()
	return c, nil
}

// RemoveClient unregisters a connection. Closing the send channel lets the
// write pump drain and close the socket.
func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
}

// Send implements engine.Sink.
func (b *Broadcaster) Send(env protocol.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		b.log.Error("envelope marshal failed", "channel", env.Channel, "err", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			b.log.Warn("feed client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}

// ClientCount reports the number of connected feed clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Stop disconnects every client.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	for c := range b.clients {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
}

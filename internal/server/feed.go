package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Peleke/colloquium/internal/logging"
	"github.com/Peleke/colloquium/internal/session"
)

// EventFrame is the envelope for every message pushed over the feed.
type EventFrame struct {
	Type      string `json:"type"`
	Event     string `json:"event"`
	SessionID string `json:"sessionId,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	Seq       int64  `json:"seq"`
	TS        int64  `json:"ts"`
}

// feedClient is one connected WebSocket subscriber. Writes are
// serialized through mu; gorilla connections allow one writer at a time.
type feedClient struct {
	connID string
	socket *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func (c *feedClient) send(frame EventFrame, wait time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.socket.SetWriteDeadline(time.Now().Add(wait))
	return c.socket.WriteJSON(frame)
}

func (c *feedClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.socket.Close()
}

// writeWait bounds a single frame write. Publish must never block the
// engine, so a subscriber that cannot drain within this window is
// dropped rather than waited on.
const writeWait = 5 * time.Second

// Feed fans session lifecycle events out to WebSocket subscribers.
// It is a broadcast-only surface: subscribers never send frames, and a
// slow or broken subscriber is dropped rather than slowing the engine.
type Feed struct {
	mu        sync.RWMutex
	clients   map[string]*feedClient
	seq       atomic.Int64
	writeWait time.Duration
	log       *logging.Logger
}

// NewFeed creates an empty feed.
func NewFeed(log *logging.Logger) *Feed {
	return &Feed{
		clients:   make(map[string]*feedClient),
		writeWait: writeWait,
		log:       log.Sub("feed"),
	}
}

// Publish broadcasts a session event to every subscriber.
func (f *Feed) Publish(evt session.Event) {
	frame := EventFrame{
		Type:      "event",
		Event:     evt.Type,
		SessionID: evt.SessionID,
		Payload:   evt.Payload,
		Seq:       f.seq.Add(1),
		TS:        time.Now().UnixMilli(),
	}

	f.mu.RLock()
	subscribers := make([]*feedClient, 0, len(f.clients))
	for _, c := range f.clients {
		subscribers = append(subscribers, c)
	}
	f.mu.RUnlock()

	for _, c := range subscribers {
		if err := c.send(frame, f.writeWait); err != nil {
			f.log.Warn().Err(err).Str("connId", c.connID).Str("event", evt.Type).Msg("dropping subscriber")
			f.remove(c.connID)
			c.close()
		}
	}
}

func (f *Feed) attach(conn *websocket.Conn) *feedClient {
	c := &feedClient{
		connID: uuid.New().String(),
		socket: conn,
	}
	f.mu.Lock()
	f.clients[c.connID] = c
	f.mu.Unlock()
	f.log.Info().Str("connId", c.connID).Msg("subscriber connected")
	return c
}

func (f *Feed) remove(connID string) {
	f.mu.Lock()
	_, ok := f.clients[connID]
	delete(f.clients, connID)
	f.mu.Unlock()
	if ok {
		f.log.Info().Str("connId", connID).Msg("subscriber disconnected")
	}
}

// Count returns the number of connected subscribers.
func (f *Feed) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// CloseAll disconnects every subscriber.
func (f *Feed) CloseAll() {
	f.mu.Lock()
	clients := f.clients
	f.clients = make(map[string]*feedClient)
	f.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

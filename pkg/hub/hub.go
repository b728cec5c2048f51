// Package hub fans dashboard updates out to websocket clients using a single
// goroutine that owns the client set.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-pizza-agent/internal/log"
)

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	name string

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	count   int
	running atomic.Bool

	// done is closed when Run returns; clients stop talking to the hub then.
	done     chan struct{}
	doneOnce sync.Once

	// last is replayed to clients when they connect.
	lastMu sync.RWMutex
	last   []byte
}

// New creates a hub. name is used in log lines.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	logger := log.Component("hub").With("hub", h.name)
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		h.doneOnce.Do(func() { close(h.done) })
	}()

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.setCount(0)
			return

		case c := <-h.register:
			h.clients[c] = true
			h.setCount(len(h.clients))
			if last := h.Last(); last != nil {
				c.send <- last
			}
			logger.Debug("client connected", "clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.setCount(len(h.clients))
			logger.Debug("client disconnected", "clients", len(h.clients))

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
					logger.Warn("dropped slow client")
				}
			}
			h.setCount(len(h.clients))
		}
	}
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// Broadcast queues data for every client. It never blocks; when the queue is
// full the message is dropped.
func (h *Hub) Broadcast(data []byte) bool {
	h.lastMu.Lock()
	h.last = data
	h.lastMu.Unlock()

	select {
	case h.broadcast <- data:
		return true
	default:
		log.Component("hub").Warn("broadcast queue full, dropping message", "hub", h.name)
		return false
	}
}

// BroadcastJSON encodes v and broadcasts it.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// Last returns the most recently broadcast message, or nil.
func (h *Hub) Last() []byte {
	h.lastMu.RLock()
	defer h.lastMu.RUnlock()
	return h.last
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Package wsbus implements transport.Bus over WebSocket connections: Hub
// is the server-side register/unregister/broadcast hub with one
// read/write pump pair per connection, and ClientBus is the dialing
// counterpart with an automatic reconnect loop.
package wsbus

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/astromechza/cwse/internal/transport"
)

// Upgrader is shared across connections (CORS wide open — this module
// does not specify origin policy).
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

type subscription struct {
	priority int
	handler  transport.Handler
}

// Hub is the server-side transport.Bus implementation: one Hub per
// process, one goroutine pair (readPump/writePump) per connected client.
type Hub struct {
	mu            sync.Mutex
	clients       map[string]*wsClient
	subscriptions map[string][]subscription

	register   chan *wsClient
	unregister chan *wsClient
}

// NewHub constructs an empty Hub and starts its run loop.
func NewHub() *Hub {
	h := &Hub{
		clients:       make(map[string]*wsClient),
		subscriptions: make(map[string][]subscription),
		register:      make(chan *wsClient),
		unregister:    make(chan *wsClient),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			h.mu.Unlock()
			slog.Info("ws client registered", "id", c.id, "total", len(h.clients))
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			h.mu.Unlock()
			slog.Info("ws client unregistered", "id", c.id)
		}
	}
}

// OnClientJoined upgrades an incoming HTTP request to a WebSocket
// connection and starts its read/write pumps.
func (h *Hub) OnClientJoined(w http.ResponseWriter, r *http.Request, clientID string) error {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("wsbus: upgrade: %w", err)
	}
	c := &wsClient{id: clientID, conn: conn, send: make(chan []byte, 256)}
	h.register <- c
	go h.writePump(c)
	go h.readPump(c)
	return nil
}

func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		h.dispatch(transport.ModuleWhiteboard, msg)
	}
}

func (h *Hub) writePump(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (h *Hub) dispatch(moduleID string, payload []byte) {
	h.mu.Lock()
	subs := append([]subscription(nil), h.subscriptions[moduleID]...)
	h.mu.Unlock()

	for _, sub := range subs {
		func(handler transport.Handler) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("wsbus: handler panicked", "panic", r)
				}
			}()
			handler(payload)
		}(sub.handler)
	}
}

// Send implements transport.Bus: fan the payload out to every connected
// client under moduleID (module routing is advisory in this single-module
// deployment — every client receives every Send).
func (h *Hub) Send(_ context.Context, _ string, payload []byte) error {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		select {
		case c.send <- payload:
		default:
			slog.Warn("wsbus: dropping slow client", "id", c.id)
		}
	}
	return nil
}

// SendTo implements transport.Bus: deliver payload to exactly one client.
func (h *Hub) SendTo(_ context.Context, _ string, payload []byte, destClientID string) error {
	h.mu.Lock()
	c, ok := h.clients[destClientID]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("wsbus: no such client %s", destClientID)
	}
	select {
	case c.send <- payload:
	default:
		return fmt.Errorf("wsbus: client %s send buffer full", destClientID)
	}
	return nil
}

// Subscribe implements transport.Bus: register handler for moduleID. In
// this in-process hub, Subscribe is how the server's Router receives
// inbound client payloads — it is not itself wire traffic.
func (h *Hub) Subscribe(moduleID string, priority int, handler transport.Handler) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscriptions[moduleID] = append(h.subscriptions[moduleID], subscription{priority: priority, handler: handler})
	return nil
}

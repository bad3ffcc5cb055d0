package wsbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/astromechza/cwse/internal/transport"
)

// ClientBus is the client-role transport.Bus: it dials a single Hub and
// reconnects with exponential backoff on failure, grounded on the
// teacher's cmd/four/client.connectAndSyncContinuously and on the
// CollabText agent's dependency on github.com/cenkalti/backoff for its own
// reconnect loop.
type ClientBus struct {
	url string

	mu   sync.Mutex
	conn *websocket.Conn

	subMu sync.Mutex
	subs  []subscription
}

// Dial connects to a wsbus.Hub endpoint (ws:// or wss://) and starts the
// background read loop that fans incoming payloads out to subscribers.
func Dial(ctx context.Context, url string) (*ClientBus, error) {
	c := &ClientBus{url: url}
	if err := c.connect(); err != nil {
		return nil, err
	}
	go c.readLoop(ctx)
	return c, nil
}

func (c *ClientBus) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("wsbus: dial: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

func (c *ClientBus) readLoop(ctx context.Context) {
	for {
		if err := c.readUntilError(); err != nil {
			slog.Warn("wsbus: connection lost, reconnecting", "err", err)
		}
		if ctx.Err() != nil {
			return
		}
		boff := backoff.NewExponentialBackOff()
		_ = backoff.Retry(func() error {
			if ctx.Err() != nil {
				return nil
			}
			return c.connect()
		}, boff)
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *ClientBus) readUntilError() error {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return fmt.Errorf("wsbus: not connected")
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(msg)
	}
}

func (c *ClientBus) dispatch(payload []byte) {
	c.subMu.Lock()
	subs := append([]subscription(nil), c.subs...)
	c.subMu.Unlock()
	for _, s := range subs {
		func(h transport.Handler) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("wsbus: client handler panicked", "panic", r)
				}
			}()
			h(payload)
		}(s.handler)
	}
}

// Send implements transport.Bus by writing payload to the server
// connection. moduleID is advisory in this single-module deployment.
func (c *ClientBus) Send(_ context.Context, _ string, payload []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("wsbus: not connected")
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// SendTo is not meaningful from the client role (there is exactly one
// destination: the server); it degrades to Send.
func (c *ClientBus) SendTo(ctx context.Context, moduleID string, payload []byte, _ string) error {
	return c.Send(ctx, moduleID, payload)
}

// Subscribe registers handler to receive every payload the server sends.
func (c *ClientBus) Subscribe(_ string, priority int, handler transport.Handler) error {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subs = append(c.subs, subscription{priority: priority, handler: handler})
	return nil
}

// Close closes the underlying connection.
func (c *ClientBus) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/astromechza/cwse/internal/envelope"
)

// UpdateListener is the client-facing callback: it receives one fully
// deserialized Update per message the bus delivers.
type UpdateListener func(envelope.Update)

// Communicator is the client communicator adapter: it subscribes to the
// bus under ModuleWhiteboard, deserializes incoming payloads into Update
// envelopes, and fans them out to every registered UpdateListener. A
// failing listener is isolated so it cannot prevent others from
// receiving the update.
type Communicator struct {
	bus Bus

	mu        sync.Mutex
	listeners map[string]UpdateListener
}

var (
	singleton     *Communicator
	singletonOnce sync.Once
)

// NewCommunicator constructs a Communicator bound to bus and subscribes
// it immediately.
func NewCommunicator(bus Bus) *Communicator {
	c := &Communicator{bus: bus, listeners: make(map[string]UpdateListener)}
	_ = bus.Subscribe(ModuleWhiteboard, 0, c.onPayload)
	return c
}

// Singleton returns the process-wide Communicator, constructing it
// lazily on first use with bus. Subsequent calls ignore bus and return
// the same instance. Tests should construct their own Communicator with
// NewCommunicator instead of relying on process-wide state.
func Singleton(bus Bus) *Communicator {
	singletonOnce.Do(func() {
		singleton = NewCommunicator(bus)
	})
	return singleton
}

// Subscribe registers listener under id, replacing any previous listener
// registered under the same id.
func (c *Communicator) Subscribe(id string, listener UpdateListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners[id] = listener
}

// Unsubscribe removes the listener registered under id.
func (c *Communicator) Unsubscribe(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listeners, id)
}

// Send serializes env and forwards it to the bus under ModuleWhiteboard.
func (c *Communicator) Send(ctx context.Context, env envelope.Update) error {
	payload, err := envelope.Marshal(env)
	if err != nil {
		return err
	}
	return c.bus.Send(ctx, ModuleWhiteboard, payload)
}

func (c *Communicator) onPayload(payload []byte) {
	env, err := envelope.Unmarshal(payload)
	if err != nil {
		slog.Error("communicator: failed to decode payload", "err", err)
		return
	}

	c.mu.Lock()
	listeners := make([]UpdateListener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, l := range listeners {
		func(listener UpdateListener) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("communicator: listener panicked", "panic", r)
				}
			}()
			listener(env)
		}(l)
	}
}

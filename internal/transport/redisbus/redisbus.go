// Package redisbus implements transport.Bus over Redis pub/sub, grounded
// on the CollabText server's handleConnections relay loop
// (server/main.go): Subscribe/Publish/Channel(). Where wsbus.Hub fans a
// broadcast out to the WebSocket connections on one process, Bus lets
// several server processes share one logical bus: Send publishes on a
// Redis channel and Subscribe hands every message on that channel to the
// registered handler. It does not itself forward messages to WebSocket
// connections.
package redisbus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/astromechza/cwse/internal/transport"
)

// Bus is a transport.Bus backed by a Redis client. moduleID maps directly
// onto a Redis channel name.
type Bus struct {
	rdb *redis.Client
}

// New wraps an existing *redis.Client. Callers own the client's lifecycle.
func New(rdb *redis.Client) *Bus {
	return &Bus{rdb: rdb}
}

// Send publishes payload on the channel named moduleID.
func (b *Bus) Send(ctx context.Context, moduleID string, payload []byte) error {
	if err := b.rdb.Publish(ctx, moduleID, payload).Err(); err != nil {
		return fmt.Errorf("redisbus: publish: %w", err)
	}
	return nil
}

// SendTo has no native per-destination addressing in a pub/sub channel;
// it publishes on a derived "<moduleID>:<destClientID>" channel that the
// destination is expected to also subscribe to.
func (b *Bus) SendTo(ctx context.Context, moduleID string, payload []byte, destClientID string) error {
	return b.Send(ctx, moduleID+":"+destClientID, payload)
}

// Subscribe starts a goroutine relaying every message received on
// moduleID's channel to handler. priority has no effect on a Redis
// channel, which has no native priority queue — multiple subscribers are
// invoked in the order go-redis delivers them.
func (b *Bus) Subscribe(moduleID string, _ int, handler transport.Handler) error {
	pubsub := b.rdb.Subscribe(context.Background(), moduleID)
	ch := pubsub.Channel()
	go func() {
		for msg := range ch {
			handler([]byte(msg.Payload))
		}
	}()
	return nil
}

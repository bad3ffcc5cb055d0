package server

import (
	"context"
	"fmt"

	"github.com/astromechza/cwse/internal/envelope"
	"github.com/astromechza/cwse/internal/transport"
)

// BusBroadcaster adapts a transport.Bus into the Router's Broadcaster
// contract: marshal the envelope, send it under ModuleWhiteboard.
type BusBroadcaster struct {
	Bus transport.Bus
}

// Broadcast implements Broadcaster.
func (b BusBroadcaster) Broadcast(ctx context.Context, env envelope.Update) error {
	payload, err := envelope.Marshal(env)
	if err != nil {
		return fmt.Errorf("broadcaster: marshal: %w", err)
	}
	return b.Bus.Send(ctx, transport.ModuleWhiteboard, payload)
}

// Package transport defines the module-addressed message bus contract
// treated as an external collaborator, specified only by the interface
// it exposes, and ships concrete implementations so that interface is
// actually exercised: a WebSocket hub (internal/transport/wsbus) and a
// Redis pub/sub relay (internal/transport/redisbus).
package transport

import "context"

// Handler receives a raw payload on data arrival.
type Handler func(payload []byte)

// Bus is the wire-transport contract: Send/SendTo/Subscribe, all keyed by
// a module identifier so several independent subsystems (only
// "Whiteboard" is relevant to this module) can share one physical
// connection without cross-talk.
type Bus interface {
	// Send broadcasts payload to every subscriber of moduleID.
	Send(ctx context.Context, moduleID string, payload []byte) error
	// SendTo delivers payload to a single destination client subscribed
	// under moduleID.
	SendTo(ctx context.Context, moduleID string, payload []byte, destClientID string) error
	// Subscribe registers handler to receive payloads sent under
	// moduleID. priority affects delivery order when a bus implementation
	// maintains per-module priority queues; handler ordering is otherwise
	// unspecified.
	Subscribe(moduleID string, priority int, handler Handler) error
}

// ModuleWhiteboard is the module identifier the communicator adapter
// subscribes under.
const ModuleWhiteboard = "Whiteboard"

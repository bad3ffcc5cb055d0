package server

import (
	"context"
	"log/slog"

	"github.com/astromechza/cwse/internal/envelope"
	"github.com/astromechza/cwse/internal/shape"
)

// Broadcaster fans an envelope out to every connected client. It is the
// server-side face of the module-addressed message bus internal/transport
// provides concrete implementations of.
type Broadcaster interface {
	Broadcast(ctx context.Context, env envelope.Update) error
}

// Router demultiplexes inbound envelopes to the StateManager and, on
// success, fans the result out via a Broadcaster.
type Router struct {
	state *StateManager
	out   Broadcaster
}

// NewRouter builds a Router wired to state and out.
func NewRouter(state *StateManager, out Broadcaster) *Router {
	return &Router{state: state, out: out}
}

// HandleUpdate is called once per inbound envelope from a client
// connection. Intentional no-ops and protocol-invariant rejections from
// SaveUpdate are logged (rejections only) and return nil; an unrecognized
// operation flag, checkpoint-store failures and broadcast failures are
// returned.
func (r *Router) HandleUpdate(ctx context.Context, env envelope.Update) error {
	switch env.Operation {
	case envelope.OpCreate, envelope.OpModify, envelope.OpDelete:
		ok, err := r.state.SaveUpdate(env)
		if err != nil {
			slog.Error("rejected update", "op", env.Operation, "err", err)
			return nil
		}
		if !ok {
			return nil
		}
		return r.out.Broadcast(ctx, env)

	case envelope.OpClearState:
		if !hasClearPermission(env.RequesterUserLevel) {
			slog.Warn("rejecting ClearState from insufficient privilege", "user", env.RequesterUserID)
			return nil
		}
		ok, err := r.state.SaveUpdate(env)
		if err != nil {
			slog.Error("rejected ClearState", "err", err)
			return nil
		}
		if !ok {
			return nil
		}
		return r.out.Broadcast(ctx, envelope.Update{
			Operation:       envelope.OpClearState,
			RequesterUserID: env.RequesterUserID,
			Generation:      env.Generation,
		})

	case envelope.OpFetchState:
		out, err := r.state.FetchState(ctx, env.RequesterUserID)
		if err != nil {
			return err
		}
		return r.out.Broadcast(ctx, out)

	case envelope.OpCreateCheckpoint:
		out, err := r.state.SaveCheckpoint(ctx, env.RequesterUserID)
		if err != nil {
			return err
		}
		return r.out.Broadcast(ctx, out)

	case envelope.OpFetchCheckpoint:
		out, err := r.state.FetchCheckpoint(ctx, env.CheckpointNumber, env.RequesterUserID)
		if err != nil {
			return err
		}
		return r.out.Broadcast(ctx, out)

	default:
		return invariantf("unrecognized operation flag %q", env.Operation)
	}
}

// hasClearPermission reports whether level is permitted to issue
// ClearState: only the high user level may.
func hasClearPermission(level shape.UserLevel) bool {
	return level == shape.LevelHigh
}

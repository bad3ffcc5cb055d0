package client

import (
	"github.com/astromechza/cwse/internal/envelope"
	"github.com/astromechza/cwse/internal/shape"
)

// OnMessageReceived is the communicator's entry point into the state
// manager for every inbound Update. It never returns an error for
// intentional drops (own-origin echoes, tombstoned ids); it returns
// ErrSyncRequired when a data op arrives at a generation different from
// the client's own, and the caller should resubscribe.
func (s *StateManager) OnMessageReceived(env envelope.Update) error {
	switch env.Operation {
	case envelope.OpFetchState:
		if env.RequesterUserID != s.currentUser {
			return nil
		}
		s.installSnapshot(env.Shapes, env.Generation, env.CheckpointNumber, env.Operation)
		return nil

	case envelope.OpFetchCheckpoint:
		s.installSnapshot(env.Shapes, env.Generation, env.CheckpointNumber, env.Operation)
		return nil

	case envelope.OpCreateCheckpoint:
		s.mu.Lock()
		s.checkpointsNumber = env.CheckpointNumber
		s.mu.Unlock()
		return nil

	case envelope.OpClearState:
		s.mu.Lock()
		s.gen = env.Generation
		s.nullifyLocked()
		s.notifyLocked([]envelope.UXShape{{Op: envelope.UXDelete, OriginatingOp: envelope.OpClearState}})
		s.mu.Unlock()
		return nil

	case envelope.OpCreate, envelope.OpModify, envelope.OpDelete:
		return s.onRemoteDataOp(env)

	default:
		return invariantf("unrecognized operation flag %q", env.Operation)
	}
}

func (s *StateManager) onRemoteDataOp(env envelope.Update) error {
	if env.RequesterUserID == s.currentUser {
		return nil // our own echo; already applied locally by SaveOperation.
	}
	if len(env.Shapes) != envelope.SingleUpdateSize {
		return invariantf("data op must carry exactly %d shape, got %d", envelope.SingleUpdateSize, len(env.Shapes))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if env.Generation != s.gen {
		return ErrSyncRequired
	}

	target := env.Shapes[0]
	if _, tombstoned := s.tombstones[target.ID]; tombstoned {
		return nil
	}

	var ux []envelope.UXShape
	switch env.Operation {
	case envelope.OpCreate, envelope.OpModify:
		ux = s.applyRemoteCreateOrModifyLocked(target, env.Operation)
	case envelope.OpDelete:
		ux = s.applyRemoteDeleteLocked(target.ID)
	}
	s.notifyLocked(ux)
	return nil
}

// installSnapshot replaces local structures wholesale with shapes, adopts
// gen and checkpointsNumber, and emits a CREATE UXShape per shape —
// shared by the FetchState and FetchCheckpoint handling. After this
// call, gen and shapes equal the server's at the moment the snapshot was
// taken.
func (s *StateManager) installSnapshot(shapes []shape.BoardShape, gen uint64, checkpointsNumber uint64, op envelope.OperationFlag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nullifyLocked()
	s.gen = gen
	s.checkpointsNumber = checkpointsNumber

	ux := make([]envelope.UXShape, 0, len(shapes))
	for _, bs := range shapes {
		c := bs.Clone()
		s.shapes[c.ID] = c
		s.handles[c.ID] = s.pq.Insert(c.ID, c.LastModifiedAt)
		delete(s.tombstones, c.ID)
		ux = append(ux, envelope.UXShape{Op: envelope.UXCreate, Shape: c.Shape, ShapeID: c.ID, CheckpointNumber: checkpointsNumber, OriginatingOp: op})
	}
	s.notifyLocked(ux)
}

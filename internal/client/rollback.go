package client

import (
	"context"

	"github.com/astromechza/cwse/internal/envelope"
	"github.com/astromechza/cwse/internal/shape"
	"github.com/astromechza/cwse/internal/undostack"
)

// DoUndo pops the top of the undo stack, rolls it back, and pushes the
// transposed inverse onto redo. If a rollback yields no UX delta (the
// affected shape was independently deleted by another client), the dead
// entry is discarded and the next one is tried.
func (s *StateManager) DoUndo(ctx context.Context) ([]envelope.UXShape, error) {
	return s.unwind(ctx, s.undo, s.redo)
}

// DoRedo is DoUndo's mirror: pop redo, roll back (which, for a redo entry,
// means replaying the original operation), push the transposed inverse
// onto undo.
func (s *StateManager) DoRedo(ctx context.Context) ([]envelope.UXShape, error) {
	return s.unwind(ctx, s.redo, s.undo)
}

func (s *StateManager) unwind(ctx context.Context, from, to *undostack.Stack) ([]envelope.UXShape, error) {
	for {
		s.mu.Lock()
		entry, ok := from.Pop()
		s.mu.Unlock()
		if !ok {
			return nil, nil
		}

		ux, err := s.rollback(ctx, entry.Before, entry.After)
		if err != nil {
			return nil, err
		}
		if len(ux) == 0 {
			continue // dead history: shape was independently deleted elsewhere; skip and try the next entry.
		}

		s.mu.Lock()
		_ = to.Push(entry.After, entry.Before) // transposed: undo's after becomes redo's before, and vice versa.
		s.mu.Unlock()
		return ux, nil
	}
}

// rollback applies the inverse of (before, after) — Create, Delete, or
// Delete-then-Create for a Modify — piggybacking on the same
// reorder-protocol code path a genuine remote update would use.
func (s *StateManager) rollback(ctx context.Context, before, after *shape.BoardShape) ([]envelope.UXShape, error) {
	switch {
	case before == nil && after != nil:
		// undo-of-Create: synthesize Delete of after.ID.
		return s.sendAndApplyDelete(ctx, after.ID)

	case before != nil && after == nil:
		// undo-of-Delete: synthesize Create of before.
		return s.sendAndApplyCreate(ctx, *before)

	case before != nil && after != nil:
		// undo-of-Modify: synthesize Delete of after, then Create of before.
		uxDel, err := s.sendAndApplyDelete(ctx, after.ID)
		if err != nil {
			return nil, err
		}
		if len(uxDel) == 0 {
			return nil, nil // after.ID already tombstoned elsewhere: skip.
		}
		uxCreate, err := s.sendAndApplyCreate(ctx, *before)
		if err != nil {
			return nil, err
		}
		return append(uxDel, uxCreate...), nil

	default:
		return nil, invariantf("rollback entry cannot have both before and after nil")
	}
}

func (s *StateManager) sendAndApplyDelete(ctx context.Context, id string) ([]envelope.UXShape, error) {
	s.mu.Lock()
	if _, tombstoned := s.tombstones[id]; tombstoned {
		s.mu.Unlock()
		return nil, nil
	}
	ux := s.applyRemoteDeleteLocked(id)
	s.notifyLocked(ux)
	gen := s.gen
	s.mu.Unlock()

	if len(ux) == 0 {
		return nil, nil
	}
	err := s.comm.Send(ctx, envelope.Update{
		Shapes:             []shape.BoardShape{{ID: id}},
		Operation:          envelope.OpDelete,
		RequesterUserID:    s.currentUser,
		RequesterUserLevel: s.userLevel,
		Generation:         gen,
	})
	if err != nil {
		return nil, err
	}
	return ux, nil
}

func (s *StateManager) sendAndApplyCreate(ctx context.Context, bs shape.BoardShape) ([]envelope.UXShape, error) {
	s.mu.Lock()
	ux := s.applyRemoteCreateOrModifyLocked(bs, envelope.OpCreate)
	s.notifyLocked(ux)
	gen := s.gen
	s.mu.Unlock()

	err := s.comm.Send(ctx, envelope.Update{
		Shapes:             []shape.BoardShape{bs},
		Operation:          envelope.OpCreate,
		RequesterUserID:    s.currentUser,
		RequesterUserLevel: s.userLevel,
		Generation:         gen,
	})
	if err != nil {
		return nil, err
	}
	return ux, nil
}

// Package client implements the client replica: local state plus bounded
// undo/redo, reconciled against server broadcasts through the reorder
// protocol and the rollback rules.
package client

import (
	"context"
	"log/slog"
	"sync"

	"github.com/astromechza/cwse/internal/envelope"
	"github.com/astromechza/cwse/internal/shape"
	"github.com/astromechza/cwse/internal/shapeq"
	"github.com/astromechza/cwse/internal/undostack"
)

// UndoRedoStackSize is the bounded capacity of both the undo and redo
// stacks.
const UndoRedoStackSize = 7

// Listener is the UX-side callback invoked with the list of rendering
// deltas produced by one state change.
type Listener func([]envelope.UXShape)

// Sender is the subset of the communicator adapter the state manager
// needs: forwarding a single-shape envelope to the bus.
type Sender interface {
	Send(ctx context.Context, env envelope.Update) error
}

// StateManager is the client's replicated state plus its local undo/redo
// history. A single mutex serializes every mutation, including listener
// callbacks, so registered listeners always observe a coherent,
// non-interleaved sequence of UX deltas.
type StateManager struct {
	mu sync.Mutex

	shapes     map[string]shape.BoardShape
	handles    map[string]*shapeq.Element
	pq         *shapeq.Queue
	tombstones map[string]struct{}
	gen        uint64

	undo *undostack.Stack
	redo *undostack.Stack

	currentUser       string
	userLevel         shape.UserLevel
	listeners         map[string]Listener
	checkpointsNumber uint64

	comm Sender
}

// New constructs a StateManager for currentUser at userLevel, forwarding
// outgoing envelopes through comm. Unlike the communicator, this is an
// owned handle callers construct once and thread through rather than a
// process-wide singleton, so tests can build fresh instances freely.
func New(comm Sender, currentUser string, userLevel shape.UserLevel) *StateManager {
	return &StateManager{
		shapes:     make(map[string]shape.BoardShape),
		handles:    make(map[string]*shapeq.Element),
		pq:         shapeq.New(),
		tombstones: make(map[string]struct{}),
		undo:       undostack.New(UndoRedoStackSize),
		redo:       undostack.New(UndoRedoStackSize),
		currentUser: currentUser,
		userLevel:   userLevel,
		listeners:   make(map[string]Listener),
		comm:        comm,
	}
}

// Subscribe nullifies all local structures (every present id is treated as
// now-deleted), registers listener under id, and sends a FetchState
// request to the server.
func (s *StateManager) Subscribe(ctx context.Context, id string, listener Listener) error {
	s.mu.Lock()
	s.nullifyLocked()
	s.listeners[id] = listener
	s.mu.Unlock()

	return s.comm.Send(ctx, envelope.Update{
		Operation:          envelope.OpFetchState,
		RequesterUserID:    s.currentUser,
		RequesterUserLevel: s.userLevel,
		Generation:         s.gen,
	})
}

// Unsubscribe removes the listener registered under id.
func (s *StateManager) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, id)
}

// nullifyLocked clears shapes/handles/pq, treating every previously
// present id as now tombstoned so any update for it still in flight from
// before the nullify is suppressed rather than resurrected. Caller must
// hold mu.
func (s *StateManager) nullifyLocked() {
	tombstones := make(map[string]struct{}, len(s.tombstones)+len(s.shapes))
	for id := range s.tombstones {
		tombstones[id] = struct{}{}
	}
	for id := range s.shapes {
		tombstones[id] = struct{}{}
	}
	s.shapes = make(map[string]shape.BoardShape)
	s.handles = make(map[string]*shapeq.Element)
	s.pq.Clear()
	s.tombstones = tombstones
}

// SaveOperation applies a user-originated edit locally: bs.RecentOperation
// selects Create, Modify, or Delete. Preconditions: id absent for
// Create; id present and not tombstoned for Modify/Delete. Every
// accepted SaveOperation clears redo (the simpler, standard undo/redo behavior,
// over a narrower rule that spares redo when the save itself originated
// from an undo/redo) and forwards a single-shape envelope carrying the
// client's current gen.
func (s *StateManager) SaveOperation(ctx context.Context, bs shape.BoardShape) (bool, error) {
	s.mu.Lock()

	var before, after *shape.BoardShape
	switch bs.RecentOperation {
	case shape.OpCreate:
		if _, exists := s.shapes[bs.ID]; exists {
			s.mu.Unlock()
			return false, nil
		}
		c := bs.Clone()
		s.shapes[bs.ID] = c
		s.handles[bs.ID] = s.pq.Insert(bs.ID, bs.LastModifiedAt)
		delete(s.tombstones, bs.ID)
		after = &c

	case shape.OpModify:
		if _, tombstoned := s.tombstones[bs.ID]; tombstoned {
			s.mu.Unlock()
			return false, nil
		}
		existing, exists := s.shapes[bs.ID]
		if !exists {
			s.mu.Unlock()
			return false, nil
		}
		b := existing.Clone()
		before = &b
		c := bs.Clone()
		s.shapes[bs.ID] = c
		s.pq.IncreaseTimestamp(s.handles[bs.ID], bs.LastModifiedAt)
		after = &c

	case shape.OpDelete:
		if _, tombstoned := s.tombstones[bs.ID]; tombstoned {
			s.mu.Unlock()
			return false, nil
		}
		existing, exists := s.shapes[bs.ID]
		if !exists {
			s.mu.Unlock()
			return false, nil
		}
		b := existing.Clone()
		before = &b
		s.pq.Delete(s.handles[bs.ID])
		delete(s.handles, bs.ID)
		delete(s.shapes, bs.ID)
		s.tombstones[bs.ID] = struct{}{}

	default:
		s.mu.Unlock()
		return false, invariantf("unsupported operation tag %q for SaveOperation", bs.RecentOperation)
	}

	if err := s.undo.Push(before, after); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.redo.Clear()

	gen := s.gen
	s.mu.Unlock()

	out := bs.Clone()
	err := s.comm.Send(ctx, envelope.Update{
		Shapes:             []shape.BoardShape{out},
		Operation:          envelope.OperationFlag(bs.RecentOperation),
		RequesterUserID:    s.currentUser,
		RequesterUserLevel: s.userLevel,
		Generation:         gen,
	})
	if err != nil {
		slog.Error("client: failed to send operation", "err", err)
		return false, err
	}
	return true, nil
}

// Generation returns the client's current checkpoint generation.
func (s *StateManager) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// CheckpointsNumber returns the last known server checkpoint count.
func (s *StateManager) CheckpointsNumber() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpointsNumber
}

// Snapshot returns deep copies of the live shapes and tombstones, for
// invariant checks in tests.
func (s *StateManager) Snapshot() (shapes map[string]shape.BoardShape, tombstones map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shapes = make(map[string]shape.BoardShape, len(s.shapes))
	for k, v := range s.shapes {
		shapes[k] = v.Clone()
	}
	tombstones = make(map[string]struct{}, len(s.tombstones))
	for k := range s.tombstones {
		tombstones[k] = struct{}{}
	}
	return shapes, tombstones
}

// UndoLen and RedoLen expose the history depth for tests.
func (s *StateManager) UndoLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.undo.Len()
}

func (s *StateManager) RedoLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redo.Len()
}

func (s *StateManager) notifyLocked(ux []envelope.UXShape) {
	if len(ux) == 0 {
		return
	}
	for id, l := range s.listeners {
		func(id string, listener Listener) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("client: listener panicked", "id", id, "panic", r)
				}
			}()
			listener(ux)
		}(id, l)
	}
}

// Package server implements the authoritative replica: the map + queue +
// tombstone set + generation counter, and the checkpoint subsystem that
// snapshots, restores, and clears it.
package server

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/astromechza/cwse/internal/envelope"
	"github.com/astromechza/cwse/internal/shape"
	"github.com/astromechza/cwse/internal/shapeq"
)

// CheckpointStore persists numbered, immutable snapshots of the ordered
// shape list. The storage medium is pluggable; see the sqlite and
// postgres implementations in this package.
type CheckpointStore interface {
	// Save assigns the next monotonically increasing checkpoint number and
	// persists shapes under it, returning that number.
	Save(ctx context.Context, shapes []shape.BoardShape) (uint64, error)
	// Fetch loads the shape list stored under checkpoint number k.
	Fetch(ctx context.Context, k uint64) ([]shape.BoardShape, error)
	// Count returns the number of checkpoints saved so far.
	Count(ctx context.Context) (uint64, error)
	// List returns metadata for every saved checkpoint, ordered by
	// ascending number. It exists for cmd/checkpointviz and does not
	// participate in the client/server protocol.
	List(ctx context.Context) ([]CheckpointMeta, error)
}

// CheckpointMeta is the lightweight per-checkpoint record List returns:
// just enough to label a lineage node without loading its full shape list.
type CheckpointMeta struct {
	Number    uint64
	CreatedAt time.Time
}

// StateManager is the server's authoritative replica. All public methods
// are safe for concurrent use; shapes, handles, pq, tombstones, and gen
// are locked as a single unit, never per-entry.
type StateManager struct {
	mu sync.Mutex

	shapes     map[string]shape.BoardShape
	handles    map[string]*shapeq.Element
	pq         *shapeq.Queue
	tombstones map[string]struct{}
	gen        uint64

	checkpoints CheckpointStore
}

// New returns a StateManager with empty state at generation 0.
func New(checkpoints CheckpointStore) *StateManager {
	return &StateManager{
		shapes:      make(map[string]shape.BoardShape),
		handles:     make(map[string]*shapeq.Element),
		pq:          shapeq.New(),
		tombstones:  make(map[string]struct{}),
		checkpoints: checkpoints,
	}
}

// FetchState returns the current shapes ordered by ascending
// last-modified time, tagged FetchState. It never mutates state.
func (s *StateManager) FetchState(ctx context.Context, userID string) (envelope.Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.checkpoints.Count(ctx)
	if err != nil {
		return envelope.Update{}, err
	}

	out := make([]shape.BoardShape, 0, len(s.shapes))
	for _, bs := range s.shapes {
		out = append(out, bs.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastModifiedAt.Before(out[j].LastModifiedAt)
	})

	return envelope.Update{
		Shapes:           out,
		Operation:        envelope.OpFetchState,
		RequesterUserID:  userID,
		CheckpointNumber: n,
		Generation:       s.gen,
	}, nil
}

// SaveUpdate applies env to the authoritative state. It returns false
// (with a nil error) for intentional no-ops and drops (stale generation,
// late update on a tombstoned id); it returns a non-nil error only for
// genuine protocol invariant violations.
func (s *StateManager) SaveUpdate(env envelope.Update) (bool, error) {
	// SingleUpdateSize only constrains the data-mutating flags (Create,
	// Modify, Delete); ClearState carries no shape payload. See DESIGN.md
	// for this reading of the precondition.
	if env.Operation != envelope.OpClearState && len(env.Shapes) != envelope.SingleUpdateSize {
		return false, invariantf("update must carry exactly %d shape, got %d", envelope.SingleUpdateSize, len(env.Shapes))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// ClearState's Generation field is the post-clear generation the
	// issuing authority wants to adopt, not the generation it believes is
	// current — it is the one envelope exempt from the staleness check
	// below, and is instead required to move gen strictly forward.
	if env.Operation == envelope.OpClearState {
		if env.Generation <= s.gen {
			return false, invariantf("ClearState generation %d must exceed current generation %d", env.Generation, s.gen)
		}
		return s.applyClearState(env.Generation)
	}

	if env.Generation != s.gen {
		slog.Debug("dropping stale update", "wantGen", s.gen, "gotGen", env.Generation)
		return false, nil
	}

	switch env.Operation {
	case envelope.OpCreate:
		return s.applyCreate(env.Shapes[0])
	case envelope.OpModify:
		return s.applyModify(env.Shapes[0])
	case envelope.OpDelete:
		return s.applyDelete(env.Shapes[0].ID)
	default:
		return false, invariantf("unsupported operation flag %q for SaveUpdate", env.Operation)
	}
}

func (s *StateManager) applyCreate(in shape.BoardShape) (bool, error) {
	if _, exists := s.shapes[in.ID]; exists {
		return false, invariantf("duplicate create of id %s", in.ID)
	}
	if _, exists := s.handles[in.ID]; exists {
		return false, invariantf("duplicate create of id %s (handle present)", in.ID)
	}
	s.shapes[in.ID] = in.Clone()
	s.handles[in.ID] = s.pq.Insert(in.ID, in.LastModifiedAt)
	delete(s.tombstones, in.ID)
	return true, nil
}

func (s *StateManager) applyModify(in shape.BoardShape) (bool, error) {
	if _, tombstoned := s.tombstones[in.ID]; tombstoned {
		slog.Debug("dropping late modify on tombstoned id", "id", in.ID)
		return false, nil
	}
	h, exists := s.handles[in.ID]
	if !exists {
		return false, invariantf("modify of missing id %s", in.ID)
	}
	s.shapes[in.ID] = in.Clone()
	s.pq.IncreaseTimestamp(h, in.LastModifiedAt)
	return true, nil
}

func (s *StateManager) applyDelete(id string) (bool, error) {
	if _, tombstoned := s.tombstones[id]; tombstoned {
		slog.Debug("dropping late delete on tombstoned id", "id", id)
		return false, nil
	}
	h, exists := s.handles[id]
	if !exists {
		return false, invariantf("delete of missing id %s", id)
	}
	s.pq.Delete(h)
	delete(s.handles, id)
	delete(s.shapes, id)
	s.tombstones[id] = struct{}{}
	return true, nil
}

func (s *StateManager) applyClearState(newGen uint64) (bool, error) {
	for id := range s.shapes {
		s.tombstones[id] = struct{}{}
	}
	s.shapes = make(map[string]shape.BoardShape)
	s.handles = make(map[string]*shapeq.Element)
	s.pq.Clear()
	s.gen = newGen
	return true, nil
}

// SaveCheckpoint serializes the current ordered shape list via the
// checkpoint handler and returns the broadcast envelope. State itself is
// left unchanged.
func (s *StateManager) SaveCheckpoint(ctx context.Context, userID string) (envelope.Update, error) {
	s.mu.Lock()
	snapshot := make([]shape.BoardShape, 0, len(s.shapes))
	for _, bs := range s.shapes {
		snapshot = append(snapshot, bs.Clone())
	}
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].LastModifiedAt.Before(snapshot[j].LastModifiedAt)
	})
	gen := s.gen
	s.mu.Unlock()

	k, err := s.checkpoints.Save(ctx, snapshot)
	if err != nil {
		return envelope.Update{}, err
	}

	return envelope.Update{
		Operation:        envelope.OpCreateCheckpoint,
		RequesterUserID:  userID,
		CheckpointNumber: k,
		Generation:       gen,
	}, nil
}

// FetchCheckpoint loads snapshot k, nullifies the current state as in
// ClearState but without advancing gen through the checkpoint path, then
// reinstalls the snapshot and sets gen := k: after fetching checkpoint k,
// the generation always equals k.
func (s *StateManager) FetchCheckpoint(ctx context.Context, k uint64, userID string) (envelope.Update, error) {
	shapes, err := s.checkpoints.Fetch(ctx, k)
	if err != nil {
		return envelope.Update{}, err
	}

	s.mu.Lock()
	for id := range s.shapes {
		s.tombstones[id] = struct{}{}
	}
	s.shapes = make(map[string]shape.BoardShape)
	s.handles = make(map[string]*shapeq.Element)
	s.pq.Clear()

	out := make([]shape.BoardShape, 0, len(shapes))
	for _, bs := range shapes {
		c := bs.Clone()
		s.shapes[c.ID] = c
		s.handles[c.ID] = s.pq.Insert(c.ID, c.LastModifiedAt)
		delete(s.tombstones, c.ID)
		out = append(out, c)
	}
	s.gen = k
	s.mu.Unlock()

	return envelope.Update{
		Shapes:           out,
		Operation:        envelope.OpFetchCheckpoint,
		RequesterUserID:  userID,
		CheckpointNumber: k,
		Generation:       k,
	}, nil
}

// Generation returns the current checkpoint generation. Exposed for tests;
// the router stamps outgoing ClearState envelopes from the inbound
// envelope's own Generation instead.
func (s *StateManager) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Snapshot returns deep copies of the live shapes and tombstones, plus the
// current generation, for invariant checks in tests. Not part of the public protocol.
func (s *StateManager) Snapshot() (shapes map[string]shape.BoardShape, tombstones map[string]struct{}, gen uint64) {
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
	return shapes, tombstones, s.gen
}

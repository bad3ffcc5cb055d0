package server

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/cwse/internal/envelope"
	"github.com/astromechza/cwse/internal/shape"
)

type fakeCheckpointStore struct {
	byNumber map[uint64][]shape.BoardShape
	order    []uint64
}

func newFakeCheckpointStore() *fakeCheckpointStore {
	return &fakeCheckpointStore{byNumber: make(map[uint64][]shape.BoardShape)}
}

func (f *fakeCheckpointStore) Save(_ context.Context, shapes []shape.BoardShape) (uint64, error) {
	next := uint64(len(f.order) + 1)
	f.byNumber[next] = shapes
	f.order = append(f.order, next)
	return next, nil
}

func (f *fakeCheckpointStore) Fetch(_ context.Context, k uint64) ([]shape.BoardShape, error) {
	return f.byNumber[k], nil
}

func (f *fakeCheckpointStore) Count(_ context.Context) (uint64, error) {
	return uint64(len(f.order)), nil
}

func (f *fakeCheckpointStore) List(_ context.Context) ([]CheckpointMeta, error) {
	out := make([]CheckpointMeta, 0, len(f.order))
	for _, n := range f.order {
		out = append(out, CheckpointMeta{Number: n, CreatedAt: time.Now()})
	}
	return out, nil
}

func boardShape(id string, ts time.Time) shape.BoardShape {
	return shape.BoardShape{
		ID:              id,
		Shape:           shape.Shape{Kind: shape.KindRectangle, Params: []float64{1, 2}},
		LastModifiedAt:  ts,
		RecentOperation: shape.OpCreate,
	}
}

func TestStateManager_ApplyCreateThenDuplicateCreateFails(t *testing.T) {
	sm := New(newFakeCheckpointStore())
	now := time.Now()

	ok, err := sm.SaveUpdate(envelope.Update{
		Shapes:    []shape.BoardShape{boardShape("a", now)},
		Operation: envelope.OpCreate,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = sm.SaveUpdate(envelope.Update{
		Shapes:    []shape.BoardShape{boardShape("a", now)},
		Operation: envelope.OpCreate,
	})
	assert.ErrorIs(t, err, ErrProtocolInvariant)
}

func TestStateManager_DeleteThenLateModifyIsDroppedNotError(t *testing.T) {
	sm := New(newFakeCheckpointStore())
	now := time.Now()

	_, err := sm.SaveUpdate(envelope.Update{Shapes: []shape.BoardShape{boardShape("a", now)}, Operation: envelope.OpCreate})
	require.NoError(t, err)

	ok, err := sm.SaveUpdate(envelope.Update{Shapes: []shape.BoardShape{{ID: "a"}}, Operation: envelope.OpDelete})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = sm.SaveUpdate(envelope.Update{
		Shapes:    []shape.BoardShape{boardShape("a", now.Add(time.Second))},
		Operation: envelope.OpModify,
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStateManager_SaveUpdateDropsStaleGeneration(t *testing.T) {
	sm := New(newFakeCheckpointStore())
	ok, err := sm.SaveUpdate(envelope.Update{
		Shapes:     []shape.BoardShape{boardShape("a", time.Now())},
		Operation:  envelope.OpCreate,
		Generation: 41, // current gen is 0
	})
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, gen := sm.Snapshot()
	assert.Equal(t, uint64(0), gen)
}

func TestStateManager_ClearStateRequiresStrictlyIncreasingGeneration(t *testing.T) {
	sm := New(newFakeCheckpointStore())

	_, err := sm.SaveUpdate(envelope.Update{Operation: envelope.OpClearState, Generation: 0})
	assert.ErrorIs(t, err, ErrProtocolInvariant)

	ok, err := sm.SaveUpdate(envelope.Update{Operation: envelope.OpClearState, Generation: 1})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), sm.Generation())
}

func TestStateManager_ClearStateTombstonesEverythingLive(t *testing.T) {
	sm := New(newFakeCheckpointStore())
	now := time.Now()
	_, err := sm.SaveUpdate(envelope.Update{Shapes: []shape.BoardShape{boardShape("a", now)}, Operation: envelope.OpCreate})
	require.NoError(t, err)

	_, err = sm.SaveUpdate(envelope.Update{Operation: envelope.OpClearState, Generation: 1})
	require.NoError(t, err)

	shapes, tombstones, _ := sm.Snapshot()
	assert.Empty(t, shapes)
	_, tombstoned := tombstones["a"]
	assert.True(t, tombstoned)
}

func TestStateManager_FetchStateOrdersByAscendingLastModified(t *testing.T) {
	sm := New(newFakeCheckpointStore())
	base := time.Now()
	for i, id := range []string{"c", "a", "b"} {
		_, err := sm.SaveUpdate(envelope.Update{
			Shapes:    []shape.BoardShape{boardShape(id, base.Add(time.Duration(i) * time.Second))},
			Operation: envelope.OpCreate,
		})
		require.NoError(t, err)
	}

	out, err := sm.FetchState(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, out.Shapes, 3)
	ids := make([]string, len(out.Shapes))
	for i, bs := range out.Shapes {
		ids[i] = bs.ID
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
	assert.True(t, sort.SliceIsSorted(out.Shapes, func(i, j int) bool {
		return out.Shapes[i].LastModifiedAt.Before(out.Shapes[j].LastModifiedAt)
	}))
}

func TestStateManager_FetchCheckpointAdoptsRequestedGeneration(t *testing.T) {
	sm := New(newFakeCheckpointStore())
	now := time.Now()
	_, err := sm.SaveUpdate(envelope.Update{Shapes: []shape.BoardShape{boardShape("a", now)}, Operation: envelope.OpCreate})
	require.NoError(t, err)

	saved, err := sm.SaveCheckpoint(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, uint64(1), saved.CheckpointNumber)

	_, err = sm.SaveUpdate(envelope.Update{Shapes: []shape.BoardShape{boardShape("b", now.Add(time.Second))}, Operation: envelope.OpCreate})
	require.NoError(t, err)

	restored, err := sm.FetchCheckpoint(context.Background(), 1, "u1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), restored.Generation)
	require.Len(t, restored.Shapes, 1)
	assert.Equal(t, "a", restored.Shapes[0].ID)

	shapes, _, gen := sm.Snapshot()
	assert.Equal(t, uint64(1), gen)
	_, stillThere := shapes["b"]
	assert.False(t, stillThere)
}

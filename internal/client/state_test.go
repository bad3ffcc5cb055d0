package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/cwse/internal/envelope"
	"github.com/astromechza/cwse/internal/shape"
)

type fakeSender struct {
	sent []envelope.Update
}

func (f *fakeSender) Send(_ context.Context, env envelope.Update) error {
	f.sent = append(f.sent, env)
	return nil
}

func newTestManager() (*StateManager, *fakeSender) {
	sender := &fakeSender{}
	return New(sender, "u1", shape.LevelLow), sender
}

func boardShape(id string, ts time.Time, op shape.OperationTag) shape.BoardShape {
	return shape.BoardShape{
		ID:              id,
		Shape:           shape.Shape{Kind: shape.KindRectangle, Params: []float64{1}},
		LastModifiedAt:  ts,
		RecentOperation: op,
	}
}

func TestSaveOperation_CreateSucceedsAndPushesUndo(t *testing.T) {
	sm, sender := newTestManager()
	ok, err := sm.SaveOperation(context.Background(), boardShape("a", time.Now(), shape.OpCreate))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, sm.UndoLen())
	require.Len(t, sender.sent, 1)
	assert.Equal(t, envelope.OpCreate, sender.sent[0].Operation)
}

func TestSaveOperation_DuplicateCreateIsRejected(t *testing.T) {
	sm, _ := newTestManager()
	_, err := sm.SaveOperation(context.Background(), boardShape("a", time.Now(), shape.OpCreate))
	require.NoError(t, err)

	ok, err := sm.SaveOperation(context.Background(), boardShape("a", time.Now(), shape.OpCreate))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveOperation_AlwaysClearsRedo(t *testing.T) {
	sm, _ := newTestManager()
	ctx := context.Background()
	_, err := sm.SaveOperation(ctx, boardShape("a", time.Now(), shape.OpCreate))
	require.NoError(t, err)
	_, err = sm.DoUndo(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sm.RedoLen())

	_, err = sm.SaveOperation(ctx, boardShape("b", time.Now(), shape.OpCreate))
	require.NoError(t, err)
	assert.Equal(t, 0, sm.RedoLen())
}

func TestOnMessageReceived_IgnoresOwnEcho(t *testing.T) {
	sm, _ := newTestManager()
	ctx := context.Background()
	bs := boardShape("a", time.Now(), shape.OpCreate)
	_, err := sm.SaveOperation(ctx, bs)
	require.NoError(t, err)

	err = sm.OnMessageReceived(envelope.Update{
		Shapes:          []shape.BoardShape{bs},
		Operation:       envelope.OpCreate,
		RequesterUserID: "u1", // same as sm's own currentUser
	})
	require.NoError(t, err)

	shapes, _ := sm.Snapshot()
	assert.Len(t, shapes, 1)
}

func TestOnMessageReceived_ReturnsErrSyncRequiredOnGenerationMismatch(t *testing.T) {
	sm, _ := newTestManager()
	err := sm.OnMessageReceived(envelope.Update{
		Shapes:          []shape.BoardShape{boardShape("a", time.Now(), shape.OpCreate)},
		Operation:       envelope.OpCreate,
		RequesterUserID: "other",
		Generation:      5,
	})
	assert.ErrorIs(t, err, ErrSyncRequired)
}

func TestOnMessageReceived_DropsUpdateForTombstonedID(t *testing.T) {
	sm, _ := newTestManager()
	ctx := context.Background()
	bs := boardShape("a", time.Now(), shape.OpCreate)
	_, err := sm.SaveOperation(ctx, bs)
	require.NoError(t, err)
	_, err = sm.SaveOperation(ctx, boardShape("a", time.Now(), shape.OpDelete))
	require.NoError(t, err)

	var delivered []envelope.UXShape
	require.NoError(t, sm.Subscribe(ctx, "watcher", func(ux []envelope.UXShape) {
		delivered = append(delivered, ux...)
	}))

	err = sm.OnMessageReceived(envelope.Update{
		Shapes:          []shape.BoardShape{boardShape("a", time.Now().Add(time.Second), shape.OpModify)},
		Operation:       envelope.OpModify,
		RequesterUserID: "other",
		Generation:      sm.Generation(),
	})
	require.NoError(t, err)
	assert.Empty(t, delivered)
}

func TestInstallSnapshot_ViaFetchStateReplacesLocalView(t *testing.T) {
	sm, _ := newTestManager()
	ctx := context.Background()
	_, err := sm.SaveOperation(ctx, boardShape("stale", time.Now(), shape.OpCreate))
	require.NoError(t, err)

	err = sm.OnMessageReceived(envelope.Update{
		Shapes:           []shape.BoardShape{boardShape("fresh", time.Now(), shape.OpCreate)},
		Operation:        envelope.OpFetchState,
		RequesterUserID:  "u1",
		Generation:       3,
		CheckpointNumber: 2,
	})
	require.NoError(t, err)

	shapes, tombstones := sm.Snapshot()
	_, stalePresent := shapes["stale"]
	assert.False(t, stalePresent)
	_, freshPresent := shapes["fresh"]
	assert.True(t, freshPresent)
	_, staleTombstoned := tombstones["stale"]
	assert.True(t, staleTombstoned)
	assert.Equal(t, uint64(3), sm.Generation())
	assert.Equal(t, uint64(2), sm.CheckpointsNumber())
}

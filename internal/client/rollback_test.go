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

func TestDoUndo_OfCreateDeletesTheShape(t *testing.T) {
	sm, _ := newTestManager()
	ctx := context.Background()
	_, err := sm.SaveOperation(ctx, boardShape("a", time.Now(), shape.OpCreate))
	require.NoError(t, err)

	ux, err := sm.DoUndo(ctx)
	require.NoError(t, err)
	require.Len(t, ux, 1)
	assert.Equal(t, envelope.UXDelete, ux[0].Op)

	shapes, tombstones := sm.Snapshot()
	assert.Empty(t, shapes)
	_, tombstoned := tombstones["a"]
	assert.True(t, tombstoned)
	assert.Equal(t, 1, sm.RedoLen())
	assert.Equal(t, 0, sm.UndoLen())
}

func TestDoUndo_ThenDoRedo_RecreatesTheShape(t *testing.T) {
	sm, _ := newTestManager()
	ctx := context.Background()
	_, err := sm.SaveOperation(ctx, boardShape("a", time.Now(), shape.OpCreate))
	require.NoError(t, err)

	_, err = sm.DoUndo(ctx)
	require.NoError(t, err)

	ux, err := sm.DoRedo(ctx)
	require.NoError(t, err)
	require.Len(t, ux, 1)
	assert.Equal(t, envelope.UXCreate, ux[0].Op)

	shapes, _ := sm.Snapshot()
	_, present := shapes["a"]
	assert.True(t, present)
	assert.Equal(t, 1, sm.UndoLen())
	assert.Equal(t, 0, sm.RedoLen())
}

func TestDoUndo_OfModifyRestoresPreviousShape(t *testing.T) {
	sm, _ := newTestManager()
	ctx := context.Background()
	base := time.Now()
	_, err := sm.SaveOperation(ctx, boardShape("a", base, shape.OpCreate))
	require.NoError(t, err)

	modified := boardShape("a", base.Add(time.Second), shape.OpModify)
	modified.Shape.Params = []float64{99}
	_, err = sm.SaveOperation(ctx, modified)
	require.NoError(t, err)

	ux, err := sm.DoUndo(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, ux)

	shapes, _ := sm.Snapshot()
	require.Contains(t, shapes, "a")
	assert.Equal(t, []float64{1}, shapes["a"].Shape.Params)
}

func TestDoUndo_OnEmptyStackReturnsNilWithoutError(t *testing.T) {
	sm, _ := newTestManager()
	ux, err := sm.DoUndo(context.Background())
	require.NoError(t, err)
	assert.Nil(t, ux)
}

func TestDoUndo_SkipsDeadHistoryWhenShapeAlreadyDeletedRemotely(t *testing.T) {
	sm, _ := newTestManager()
	ctx := context.Background()
	_, err := sm.SaveOperation(ctx, boardShape("a", time.Now(), shape.OpCreate))
	require.NoError(t, err)
	_, err = sm.SaveOperation(ctx, boardShape("b", time.Now(), shape.OpCreate))
	require.NoError(t, err)

	// simulate another client deleting "b" (the top of the undo stack)
	// before this client gets a chance to undo it.
	err = sm.OnMessageReceived(envelope.Update{
		Shapes:          []shape.BoardShape{{ID: "b"}},
		Operation:       envelope.OpDelete,
		RequesterUserID: "other",
		Generation:      sm.Generation(),
	})
	require.NoError(t, err)

	ux, err := sm.DoUndo(ctx)
	require.NoError(t, err)
	require.Len(t, ux, 1)
	assert.Equal(t, "a", ux[0].ShapeID)

	shapes, _ := sm.Snapshot()
	_, aPresent := shapes["a"]
	assert.False(t, aPresent)
}

package facade

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/cwse/internal/client"
	"github.com/astromechza/cwse/internal/envelope"
	"github.com/astromechza/cwse/internal/shape"
)

type fakeSender struct{}

func (fakeSender) Send(context.Context, envelope.Update) error { return nil }

func boardShape(id string) shape.BoardShape {
	return shape.BoardShape{
		ID:             id,
		Shape:          shape.Shape{Kind: shape.KindRectangle, Params: []float64{1}},
		LastModifiedAt: time.Now(),
	}
}

func TestDispatch_RejectsEveryOpWhileInactive(t *testing.T) {
	sm := client.New(fakeSender{}, "u1", shape.LevelLow)
	f := New(sm)

	for _, op := range []OpName{OpCreate, OpModify, OpDelete, OpUndo, OpRedo} {
		_, err := f.Dispatch(context.Background(), op, boardShape("a"))
		assert.ErrorIs(t, err, ErrInactive)
	}
}

func TestDispatch_CreateSucceedsOnceActivated(t *testing.T) {
	sm := client.New(fakeSender{}, "u1", shape.LevelLow)
	f := New(sm)
	f.Activate()

	out, err := f.Dispatch(context.Background(), OpCreate, boardShape("a"))
	require.NoError(t, err)
	assert.True(t, out.Applied)
}

func TestDispatch_UndoAfterCreateReturnsDeleteUX(t *testing.T) {
	sm := client.New(fakeSender{}, "u1", shape.LevelLow)
	f := New(sm)
	f.Activate()

	_, err := f.Dispatch(context.Background(), OpCreate, boardShape("a"))
	require.NoError(t, err)

	out, err := f.Dispatch(context.Background(), OpUndo, shape.BoardShape{})
	require.NoError(t, err)
	require.True(t, out.Applied)
	require.Len(t, out.UX, 1)
	assert.Equal(t, envelope.UXDelete, out.UX[0].Op)
}

func TestDispatch_DeactivateStopsFurtherDispatch(t *testing.T) {
	sm := client.New(fakeSender{}, "u1", shape.LevelLow)
	f := New(sm)
	f.Activate()
	f.Deactivate()

	_, err := f.Dispatch(context.Background(), OpCreate, boardShape("a"))
	assert.ErrorIs(t, err, ErrInactive)
}

func TestDispatch_UnrecognizedOpReturnsError(t *testing.T) {
	sm := client.New(fakeSender{}, "u1", shape.LevelLow)
	f := New(sm)
	f.Activate()

	_, err := f.Dispatch(context.Background(), OpName("bogus"), boardShape("a"))
	assert.Error(t, err)
}

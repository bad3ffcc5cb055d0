package undostack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/cwse/internal/shape"
)

func boardShape(id string) *shape.BoardShape {
	return &shape.BoardShape{ID: id, Shape: shape.Shape{Kind: shape.KindRectangle, Params: []float64{1, 2}}}
}

func TestStack_PushRejectsBothNil(t *testing.T) {
	s := New(3)
	err := s.Push(nil, nil)
	assert.ErrorIs(t, err, ErrBothNil)
	assert.True(t, s.IsEmpty())
}

func TestStack_PushAndPopIsLIFO(t *testing.T) {
	s := New(3)
	require.NoError(t, s.Push(nil, boardShape("1")))
	require.NoError(t, s.Push(boardShape("1"), boardShape("1-modified")))

	top, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, "1", top.Before.ID)
	assert.Equal(t, "1-modified", top.After.ID)

	next, ok := s.Pop()
	require.True(t, ok)
	assert.Nil(t, next.Before)
	assert.Equal(t, "1", next.After.ID)

	_, ok = s.Pop()
	assert.False(t, ok)
}

func TestStack_DropsOldestWhenFull(t *testing.T) {
	s := New(2)
	require.NoError(t, s.Push(nil, boardShape("1")))
	require.NoError(t, s.Push(nil, boardShape("2")))
	require.NoError(t, s.Push(nil, boardShape("3")))

	assert.Equal(t, 2, s.Len())

	top, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, "3", top.After.ID)

	second, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, "2", second.After.ID)
	assert.True(t, s.IsEmpty())
}

func TestStack_PushDeepCopiesSoLaterMutationDoesNotLeak(t *testing.T) {
	s := New(3)
	bs := boardShape("1")
	require.NoError(t, s.Push(nil, bs))

	bs.Shape.Params[0] = 999

	top, ok := s.Top()
	require.True(t, ok)
	assert.Equal(t, float64(1), top.After.Shape.Params[0])
}

func TestStack_ClearEmptiesStack(t *testing.T) {
	s := New(3)
	require.NoError(t, s.Push(nil, boardShape("1")))
	s.Clear()
	assert.True(t, s.IsEmpty())
	assert.Equal(t, 0, s.Len())
}

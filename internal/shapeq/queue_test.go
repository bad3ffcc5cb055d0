package shapeq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_TopOrdersByNewestTimestamp(t *testing.T) {
	q := New()
	base := time.Now()

	q.Insert("a", base)
	q.Insert("b", base.Add(time.Second))
	q.Insert("c", base.Add(2*time.Second))

	top, ok := q.Top()
	require.True(t, ok)
	assert.Equal(t, "c", top.ID)
}

func TestQueue_ExtractDrainsInDescendingTimestampOrder(t *testing.T) {
	q := New()
	base := time.Now()
	q.Insert("a", base)
	q.Insert("b", base.Add(3*time.Second))
	q.Insert("c", base.Add(1*time.Second))

	var order []string
	for {
		e, ok := q.Extract()
		if !ok {
			break
		}
		order = append(order, e.ID)
	}
	assert.Equal(t, []string{"b", "c", "a"}, order)
}

func TestQueue_EqualTimestampsBreakTiesByIDDescending(t *testing.T) {
	q := New()
	ts := time.Now()
	q.Insert("alpha", ts)
	q.Insert("beta", ts)
	q.Insert("gamma", ts)

	top, ok := q.Top()
	require.True(t, ok)
	assert.Equal(t, "gamma", top.ID)
}

func TestQueue_DeleteRemovesArbitraryElement(t *testing.T) {
	q := New()
	base := time.Now()
	e1 := q.Insert("a", base)
	q.Insert("b", base.Add(time.Second))
	q.Insert("c", base.Add(2*time.Second))

	q.Delete(e1)
	assert.Equal(t, 2, q.Size())

	top, ok := q.Top()
	require.True(t, ok)
	assert.Equal(t, "c", top.ID)

	// deleting the same handle twice is a no-op, not a panic.
	q.Delete(e1)
	assert.Equal(t, 2, q.Size())
}

func TestQueue_IncreaseTimestampRefixesHeap(t *testing.T) {
	q := New()
	base := time.Now()
	eA := q.Insert("a", base)
	q.Insert("b", base.Add(time.Second))

	q.IncreaseTimestamp(eA, base.Add(10*time.Second))

	top, ok := q.Top()
	require.True(t, ok)
	assert.Equal(t, "a", top.ID)
}

func TestQueue_ClearEmptiesQueue(t *testing.T) {
	q := New()
	q.Insert("a", time.Now())
	q.Insert("b", time.Now())
	q.Clear()
	assert.Equal(t, 0, q.Size())
	_, ok := q.Top()
	assert.False(t, ok)
}

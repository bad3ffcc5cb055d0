package envelope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/cwse/internal/shape"
)

func TestMarshalUnmarshal_RoundTrips(t *testing.T) {
	in := Update{
		Shapes: []shape.BoardShape{{
			ID:             "s1",
			CreatorUserID:  "u1",
			UserLevel:      shape.LevelHigh,
			CreatedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			LastModifiedAt: time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC),
			Shape: shape.Shape{
				Kind:        shape.KindEllipse,
				Params:      []float64{1, 2, 3},
				StrokeWidth: 2,
				StrokeColor: "#111",
				FillColor:   "#222",
			},
			RecentOperation: shape.OpCreate,
		}},
		Operation:          OpCreate,
		RequesterUserID:    "u1",
		RequesterUserLevel: shape.LevelHigh,
		CheckpointNumber:   3,
		Generation:         7,
	}

	encoded, err := Marshal(in)
	require.NoError(t, err)

	out, err := Unmarshal(encoded)
	require.NoError(t, err)

	assert.Equal(t, in.Operation, out.Operation)
	assert.Equal(t, in.RequesterUserID, out.RequesterUserID)
	assert.Equal(t, in.RequesterUserLevel, out.RequesterUserLevel)
	assert.Equal(t, in.Generation, out.Generation)
	require.Len(t, out.Shapes, 1)
	assert.Equal(t, "s1", out.Shapes[0].ID)
	assert.Equal(t, shape.KindEllipse, out.Shapes[0].Shape.Kind)
	assert.Equal(t, []float64{1, 2, 3}, out.Shapes[0].Shape.Params)
}

func TestUnmarshal_IgnoresUnknownFields(t *testing.T) {
	raw := []byte(`<Update><Operation>FetchState</Operation><RequesterUserID>u1</RequesterUserID><SomeFutureField>x</SomeFutureField></Update>`)
	out, err := Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, OpFetchState, out.Operation)
	assert.Equal(t, "u1", out.RequesterUserID)
}

func TestUpdate_CloneIsIndependent(t *testing.T) {
	in := Update{Shapes: []shape.BoardShape{{ID: "s1", Shape: shape.Shape{Params: []float64{1}}}}}
	out := in.Clone()
	out.Shapes[0].Shape.Params[0] = 99
	assert.Equal(t, float64(1), in.Shapes[0].Shape.Params[0])
}

package shape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShape_CloneIsIndependent(t *testing.T) {
	s := Shape{Kind: KindPolyline, Params: []float64{1, 2, 3}, StrokeColor: "#fff"}
	c := s.Clone()
	c.Params[0] = 999
	c.StrokeColor = "#000"

	assert.Equal(t, float64(1), s.Params[0])
	assert.Equal(t, "#fff", s.StrokeColor)
}

func TestBoardShape_CloneDeepCopiesShape(t *testing.T) {
	bs := BoardShape{ID: "x", Shape: Shape{Params: []float64{5}}}
	c := bs.Clone()
	c.Shape.Params[0] = 42

	assert.Equal(t, float64(5), bs.Shape.Params[0])
	assert.Equal(t, "x", c.ID)
}

// Package shape defines the value-type geometric record and its
// identity-bearing wrapper that the rest of the engine operates on.
package shape

import "time"

// Kind enumerates the supported shape primitives. Geometry itself (the
// actual rectangle/ellipse/line/polyline math) is out of scope for this
// module; Kind and the generic Params below exist only so a BoardShape can
// be cloned, keyed, and serialized without depending on a rendering layer.
type Kind string

const (
	KindRectangle Kind = "Rectangle"
	KindEllipse   Kind = "Ellipse"
	KindLine      Kind = "Line"
	KindPolyline  Kind = "Polyline"
)

// OperationTag records the most recent operation applied to a BoardShape.
type OperationTag string

const (
	OpCreate OperationTag = "Create"
	OpModify OperationTag = "Modify"
	OpDelete OperationTag = "Delete"
)

// UserLevel distinguishes who may issue a ClearState.
type UserLevel int

const (
	LevelLow  UserLevel = 0
	LevelHigh UserLevel = 1
)

// Shape is the semantic, identity-free geometric record. Copying a Shape by
// assignment shares its Params slice; use Clone for an independent copy.
type Shape struct {
	Kind        Kind      `json:"kind" xml:"Kind"`
	Params      []float64 `json:"params" xml:"Params>Param"`
	StrokeWidth float64   `json:"strokeWidth" xml:"StrokeWidth"`
	StrokeColor string    `json:"strokeColor" xml:"StrokeColor"`
	FillColor   string    `json:"fillColor" xml:"FillColor"`
	RotationDeg float64   `json:"rotationDeg" xml:"RotationDeg"`
}

// Clone returns a deep, independent copy of s.
func (s Shape) Clone() Shape {
	out := s
	if s.Params != nil {
		out.Params = make([]float64, len(s.Params))
		copy(out.Params, s.Params)
	}
	return out
}

// BoardShape wraps a Shape with the metadata that gives it identity and
// makes it orderable in the priority queue.
type BoardShape struct {
	ID               string       `json:"id" xml:"ID"`
	Shape            Shape        `json:"shape" xml:"Shape"`
	CreatorUserID    string       `json:"creatorUserId" xml:"CreatorUserID"`
	UserLevel        UserLevel    `json:"userLevel" xml:"UserLevel"`
	CreatedAt        time.Time    `json:"createdAt" xml:"CreatedAt"`
	LastModifiedAt   time.Time    `json:"lastModifiedAt" xml:"LastModifiedAt"`
	RecentOperation  OperationTag `json:"recentOperation" xml:"RecentOperation"`
}

// Clone returns a deep, independent copy of bs, suitable for pushing into
// undo/redo history or a checkpoint snapshot.
func (bs BoardShape) Clone() BoardShape {
	out := bs
	out.Shape = bs.Shape.Clone()
	return out
}

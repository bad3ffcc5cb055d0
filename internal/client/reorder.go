package client

import (
	"github.com/astromechza/cwse/internal/envelope"
	"github.com/astromechza/cwse/internal/shape"
	"github.com/astromechza/cwse/internal/shapeq"
)

// applyRemoteCreateOrModifyLocked implements the remote-op reorder
// protocol: shapes with a later timestamp than the incoming one are
// temporarily withdrawn and reinserted after it, so that z-order tracks
// chronological order. Every undo/redo rollback that synthesizes a
// Create piggybacks on this same routine, guaranteeing one
// implementation of the ordering behavior. Caller must hold mu.
func (s *StateManager) applyRemoteCreateOrModifyLocked(target shape.BoardShape, op envelope.OperationFlag) []envelope.UXShape {
	tE := target.LastModifiedAt

	// Step 1: extract every element with timestamp > tE.
	var later []*shapeq.Element
	for {
		top, ok := s.pq.Top()
		if !ok || !top.Timestamp.After(tE) {
			break
		}
		e, _ := s.pq.Extract()
		later = append(later, e)
	}

	var ux []envelope.UXShape

	// Step 2: withdraw each later shape from the UI.
	for _, e := range later {
		if bs, ok := s.shapes[e.ID]; ok {
			ux = append(ux, envelope.UXShape{Op: envelope.UXDelete, Shape: bs.Shape, ShapeID: bs.ID, OriginatingOp: op})
		}
	}

	// Step 3: apply the incoming op.
	switch op {
	case envelope.OpModify:
		if old, ok := s.shapes[target.ID]; ok {
			ux = append(ux, envelope.UXShape{Op: envelope.UXDelete, Shape: old.Shape, ShapeID: old.ID, OriginatingOp: op})
		}
		c := target.Clone()
		s.shapes[target.ID] = c
		if h, ok := s.handles[target.ID]; ok {
			s.pq.IncreaseTimestamp(h, tE)
		} else {
			s.handles[target.ID] = s.pq.Insert(target.ID, tE)
		}
	case envelope.OpCreate:
		c := target.Clone()
		s.shapes[target.ID] = c
		s.handles[target.ID] = s.pq.Insert(target.ID, tE)
		delete(s.tombstones, target.ID)
	}

	// Step 4: announce the incoming target.
	ux = append(ux, envelope.UXShape{Op: envelope.UXCreate, Shape: target.Shape, ShapeID: target.ID, OriginatingOp: op})

	// Step 5: reinsert the withdrawn shapes, newest-extracted last so
	// they go back on top in their original relative order, and
	// re-announce them.
	for i := len(later) - 1; i >= 0; i-- {
		e := later[i]
		s.handles[e.ID] = s.pq.Insert(e.ID, e.Timestamp)
		if bs, ok := s.shapes[e.ID]; ok {
			ux = append(ux, envelope.UXShape{Op: envelope.UXCreate, Shape: bs.Shape, ShapeID: bs.ID, OriginatingOp: op})
		}
	}

	return ux
}

// applyRemoteDeleteLocked implements the simpler remote-delete case:
// remove from maps and pq, tombstone, emit one DELETE UXShape. Caller
// must hold mu.
func (s *StateManager) applyRemoteDeleteLocked(id string) []envelope.UXShape {
	bs, ok := s.shapes[id]
	if !ok {
		s.tombstones[id] = struct{}{}
		return nil
	}
	if h, ok := s.handles[id]; ok {
		s.pq.Delete(h)
	}
	delete(s.handles, id)
	delete(s.shapes, id)
	s.tombstones[id] = struct{}{}
	return []envelope.UXShape{{Op: envelope.UXDelete, Shape: bs.Shape, ShapeID: id, OriginatingOp: envelope.OpDelete}}
}

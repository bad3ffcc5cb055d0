// Package facade is a small active/inactive dispatch shell in front of
// the client state manager, so UI code never has to ask "am I
// subscribed?" before issuing an operation. Grounded on the GoSim
// example's detection-strategy registries
// (internal/architecture_modelling_antipattern_detection/suggestion/strategies),
// which dispatch by a tagged kind through a lookup table rather than a
// type switch.
package facade

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/astromechza/cwse/internal/client"
	"github.com/astromechza/cwse/internal/envelope"
	"github.com/astromechza/cwse/internal/shape"
)

// ErrInactive is returned by every operation attempted before Activate.
var ErrInactive = errors.New("facade: not subscribed")

// OpName tags a user-facing operation the facade can dispatch.
type OpName string

const (
	OpCreate OpName = "create"
	OpModify OpName = "modify"
	OpDelete OpName = "delete"
	OpUndo   OpName = "undo"
	OpRedo   OpName = "redo"
)

// Outcome is the uniform result shape every dispatched operation produces,
// regardless of whether it came from a single-shape edit or an undo/redo
// rollback.
type Outcome struct {
	Applied bool
	UX      []envelope.UXShape
}

type opFunc func(ctx context.Context, sm *client.StateManager, bs shape.BoardShape) (Outcome, error)

// activeOps is consulted when the facade is subscribed: each entry
// forwards straight to the state manager.
var activeOps = map[OpName]opFunc{
	OpCreate: func(ctx context.Context, sm *client.StateManager, bs shape.BoardShape) (Outcome, error) {
		bs.RecentOperation = shape.OpCreate
		ok, err := sm.SaveOperation(ctx, bs)
		return Outcome{Applied: ok}, err
	},
	OpModify: func(ctx context.Context, sm *client.StateManager, bs shape.BoardShape) (Outcome, error) {
		bs.RecentOperation = shape.OpModify
		ok, err := sm.SaveOperation(ctx, bs)
		return Outcome{Applied: ok}, err
	},
	OpDelete: func(ctx context.Context, sm *client.StateManager, bs shape.BoardShape) (Outcome, error) {
		bs.RecentOperation = shape.OpDelete
		ok, err := sm.SaveOperation(ctx, bs)
		return Outcome{Applied: ok}, err
	},
	OpUndo: func(ctx context.Context, sm *client.StateManager, _ shape.BoardShape) (Outcome, error) {
		ux, err := sm.DoUndo(ctx)
		return Outcome{Applied: len(ux) > 0, UX: ux}, err
	},
	OpRedo: func(ctx context.Context, sm *client.StateManager, _ shape.BoardShape) (Outcome, error) {
		ux, err := sm.DoRedo(ctx)
		return Outcome{Applied: len(ux) > 0, UX: ux}, err
	},
}

// inactiveOps rejects every dispatch uniformly; it exists as its own table
// (rather than a single early-return in Dispatch) so the active/inactive
// split reads as two parallel handler sets.
var inactiveOps = map[OpName]opFunc{
	OpCreate: rejectInactive,
	OpModify: rejectInactive,
	OpDelete: rejectInactive,
	OpUndo:   rejectInactive,
	OpRedo:   rejectInactive,
}

func rejectInactive(context.Context, *client.StateManager, shape.BoardShape) (Outcome, error) {
	return Outcome{}, ErrInactive
}

// Facade tracks whether the wrapped state manager is currently subscribed
// and dispatches through activeOps or inactiveOps accordingly.
type Facade struct {
	mu     sync.Mutex
	active bool
	sm     *client.StateManager
}

// New wraps sm, starting inactive.
func New(sm *client.StateManager) *Facade {
	return &Facade{sm: sm}
}

// Activate marks the facade active, typically called once sm.Subscribe has
// completed successfully.
func (f *Facade) Activate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = true
}

// Deactivate marks the facade inactive, typically called around
// sm.Unsubscribe or on bus disconnect.
func (f *Facade) Deactivate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
}

// Dispatch routes op through the active or inactive table depending on
// current state.
func (f *Facade) Dispatch(ctx context.Context, op OpName, bs shape.BoardShape) (Outcome, error) {
	f.mu.Lock()
	active := f.active
	f.mu.Unlock()

	table := inactiveOps
	if active {
		table = activeOps
	}
	fn, ok := table[op]
	if !ok {
		return Outcome{}, errors.Errorf("facade: unrecognized operation %q", op)
	}
	return fn(ctx, f.sm, bs)
}

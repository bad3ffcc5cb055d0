// Package envelope defines the wire-visible update envelope and its XML
// serialization. Unknown fields are ignored on decode, which is the
// wire-stability guarantee later protocol versions rely on.
package envelope

import (
	"encoding/xml"
	"fmt"

	"github.com/astromechza/cwse/internal/shape"
)

// OperationFlag enumerates the wire-stable operation flags.
type OperationFlag string

const (
	OpCreate           OperationFlag = "Create"
	OpModify           OperationFlag = "Modify"
	OpDelete           OperationFlag = "Delete"
	OpFetchState       OperationFlag = "FetchState"
	OpFetchCheckpoint  OperationFlag = "FetchCheckpoint"
	OpCreateCheckpoint OperationFlag = "CreateCheckpoint"
	OpClearState       OperationFlag = "ClearState"
)

// SingleUpdateSize is the number of shapes a Create/Modify/Delete
// envelope always carries: exactly one.
const SingleUpdateSize = 1

// InitialCheckpointState is the generation a freshly created replica
// starts at.
const InitialCheckpointState = 0

// Update is the wire-visible envelope exchanged between client and server.
type Update struct {
	XMLName             xml.Name           `xml:"Update"`
	Shapes              []shape.BoardShape `xml:"Shapes>BoardShape"`
	Operation           OperationFlag      `xml:"Operation"`
	RequesterUserID     string             `xml:"RequesterUserID"`
	RequesterUserLevel  shape.UserLevel    `xml:"RequesterUserLevel"`
	CheckpointNumber    uint64             `xml:"CheckpointNumber"`
	Generation          uint64             `xml:"Generation"`
}

// Clone returns a deep copy of u, including deep copies of every shape.
func (u Update) Clone() Update {
	out := u
	if u.Shapes != nil {
		out.Shapes = make([]shape.BoardShape, len(u.Shapes))
		for i, s := range u.Shapes {
			out.Shapes[i] = s.Clone()
		}
	}
	return out
}

// Marshal encodes u into the reference wire format.
func Marshal(u Update) ([]byte, error) {
	b, err := xml.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal: %w", err)
	}
	return b, nil
}

// Unmarshal decodes the reference wire format into an Update. Fields
// present in the payload but absent from Update are silently ignored by
// encoding/xml.
func Unmarshal(data []byte) (Update, error) {
	var u Update
	if err := xml.Unmarshal(data, &u); err != nil {
		return Update{}, fmt.Errorf("envelope: unmarshal: %w", err)
	}
	return u, nil
}

// UXOp enumerates the rendering-side delta operations.
type UXOp string

const (
	UXCreate UXOp = "Create"
	UXDelete UXOp = "Delete"
)

// UXShape is a single rendering-side delta: create or delete one shape.
type UXShape struct {
	Op                 UXOp
	Shape              shape.Shape
	ShapeID            string
	CheckpointNumber   uint64
	OriginatingOp      OperationFlag
}

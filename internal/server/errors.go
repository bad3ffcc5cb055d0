package server

import "github.com/pkg/errors"

// ErrProtocolInvariant is the sentinel wrapped by every protocol-invariant
// violation (duplicate Create, Modify/Delete of a missing id outside the
// tombstone path, multi-shape updates). Callers that only care about the
// category can errors.Is against this value (errors.Cause also returns
// it); the specific message is in the wrapped error's Error() text.
var ErrProtocolInvariant = errors.New("server: protocol invariant violation")

func invariantf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrProtocolInvariant, format, args...)
}

package client

import "github.com/pkg/errors"

// ErrSyncRequired is raised when a data-op envelope's generation does not
// match the client's own: the client is out of sync and should
// resubscribe.
var ErrSyncRequired = errors.New("client: out of sync, resubscribe required")

// ErrProtocolInvariant mirrors the server-side sentinel for the client's
// own local precondition checks (duplicate Create, Modify/Delete of a
// missing id outside the tombstone path).
var ErrProtocolInvariant = errors.New("client: protocol invariant violation")

func invariantf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrProtocolInvariant, format, args...)
}

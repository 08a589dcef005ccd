package reconciler

import "errors"

var (
	// ErrSyncFailed indicates the remote action set could not be fetched.
	// The local entity set is left untouched when this is returned.
	ErrSyncFailed = errors.New("reconciler: sync failed")

	// ErrUnknownAction indicates an activation referenced an action ID with
	// no local entity.
	ErrUnknownAction = errors.New("reconciler: unknown action")

	// ErrClosed indicates an operation was attempted after Close.
	ErrClosed = errors.New("reconciler: closed")
)

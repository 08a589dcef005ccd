package registry

import "errors"

// Domain errors for the registry package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, registry.ErrUnreachable) {
//	    // handle transport failure
//	}
var (
	// ErrUnreachable is returned when the registry cannot be reached at the
	// transport level (connection refused, DNS failure, timeout).
	ErrUnreachable = errors.New("registry: unreachable")

	// ErrProtocol is returned when the registry responds but the body cannot
	// be parsed into the expected shape.
	ErrProtocol = errors.New("registry: protocol error")
)

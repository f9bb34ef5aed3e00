package routing

import (
	"errors"
	"fmt"
)

// ErrRouteNotFound is the not-found outcome of a route request. Every reason
// below wraps it.
var ErrRouteNotFound = errors.New("route not found")

var (
	ErrRouteTooLong     = fmt.Errorf("%w: endpoints too far apart", ErrRouteNotFound)
	ErrBBoxTooLarge     = fmt.Errorf("%w: search area too large", ErrRouteNotFound)
	ErrGraphUnavailable = fmt.Errorf("%w: street graph unavailable", ErrRouteNotFound)
	ErrNoPath           = fmt.Errorf("%w: no path between endpoints", ErrRouteNotFound)
	ErrInternal         = fmt.Errorf("%w: internal error", ErrRouteNotFound)
)

// ErrInvalidCoordinates rejects malformed input. It is not a not-found outcome.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

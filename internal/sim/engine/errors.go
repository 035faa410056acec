package engine

import (
	"errors"

	"hexopolis.gg/internal/protocol"
	"hexopolis.gg/internal/sim/engine/logic/fixedmath"
	"hexopolis.gg/internal/sim/engine/market"
)

// Engine-internal sentinel errors; mapped onto the protocol taxonomy at the
// command boundary.
var (
	errUninitialized  = errors.New("engine: uninitialized")
	errAlready        = errors.New("engine: already")
	errRestricted     = errors.New("engine: restricted")
	errInsufficient   = errors.New("engine: insufficient")
	errMaxHeight      = errors.New("engine: max height")
	errTimeTravel     = errors.New("engine: time travel")
	errInvalid        = errors.New("engine: invalid")
	errNotFound       = errors.New("engine: not found")
	errTransferFailed = errors.New("engine: transfer failed")
)

// CodeFor maps any engine error onto the wire taxonomy. "" for nil.
func CodeFor(err error) string { return codeFor(err) }

func codeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errUninitialized), errors.Is(err, market.ErrNotInit):
		return protocol.ErrUninitialized
	case errors.Is(err, errAlready), errors.Is(err, market.ErrAlreadyInit):
		return protocol.ErrAlready
	case errors.Is(err, errRestricted), errors.Is(err, market.ErrRestricted):
		return protocol.ErrRestricted
	case errors.Is(err, errInsufficient), errors.Is(err, market.ErrInsufficient):
		return protocol.ErrInsufficient
	case errors.Is(err, errMaxHeight):
		return protocol.ErrMaxHeight
	case errors.Is(err, errTimeTravel):
		return protocol.ErrTimeTravel
	case errors.Is(err, errNotFound):
		return protocol.ErrNotFound
	case errors.Is(err, errTransferFailed):
		return protocol.ErrTransferFailed
	case errors.Is(err, errInvalid), errors.Is(err, market.ErrInvalid):
		return protocol.ErrInvalid
	case errors.Is(err, fixedmath.ErrOverflow):
		// Arithmetic overflow always aborts the call, never wraps.
		return protocol.ErrInternal
	default:
		return protocol.ErrInternal
	}
}

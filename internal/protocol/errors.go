package protocol

// Engine failure taxonomy. Every state-mutating command either fully applies
// or fails with exactly one of these codes and zero side effects.
const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Lifecycle.
	ErrUninitialized = "E_UNINITIALIZED"

	// Rule/economy layer.
	ErrMaxHeight      = "E_MAX_HEIGHT"
	ErrRestricted     = "E_RESTRICTED"
	ErrAlready        = "E_ALREADY"
	ErrInsufficient   = "E_INSUFFICIENT"
	ErrTimeTravel     = "E_TIME_TRAVEL"
	ErrInvalid        = "E_INVALID"
	ErrNotFound       = "E_NOT_FOUND"
	ErrTransferFailed = "E_TRANSFER_FAILED"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrUninitialized:   {},
	ErrMaxHeight:       {},
	ErrRestricted:      {},
	ErrAlready:         {},
	ErrInsufficient:    {},
	ErrTimeTravel:      {},
	ErrInvalid:         {},
	ErrNotFound:        {},
	ErrTransferFailed:  {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

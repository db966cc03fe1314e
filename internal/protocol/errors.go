package protocol

const (
	// Request shape or unknown command.
	ErrBadRequest = "E_BAD_REQUEST"

	// Engine errors.
	ErrLookup        = "E_LOOKUP"
	ErrValidation    = "E_VALIDATION"
	ErrNameCollision = "E_NAME_COLLISION"
	ErrPersistence   = "E_PERSISTENCE"

	// Session queue full.
	ErrBusy = "E_BUSY"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:    {},
	ErrLookup:        {},
	ErrValidation:    {},
	ErrNameCollision: {},
	ErrPersistence:   {},
	ErrBusy:          {},
	ErrInternal:      {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

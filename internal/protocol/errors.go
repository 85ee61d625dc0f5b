package protocol

const (
	// Request validation.
	ErrBadRequest = "E_BAD_REQUEST"

	// Lookups.
	ErrNotFound = "E_NOT_FOUND"

	// Office loop state.
	ErrBusy      = "E_BUSY"
	ErrQueueFull = "E_QUEUE_FULL"
	ErrConflict  = "E_CONFLICT"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest: {},
	ErrNotFound:   {},
	ErrBusy:       {},
	ErrQueueFull:  {},
	ErrConflict:   {},
	ErrInternal:   {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

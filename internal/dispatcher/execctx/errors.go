package execctx

import "errors"

// Context errors.
var (
	// ErrInvalidJSON indicates a JSON context that does not parse.
	ErrInvalidJSON = errors.New("execctx: invalid JSON context")

	// ErrNotObject indicates a JSON context that is not an object.
	ErrNotObject = errors.New("execctx: JSON context must be an object")
)

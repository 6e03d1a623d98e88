package sim

import "errors"

// Error taxonomy shared by the engine, the run store and the MCP surface.
// Callers wrap these with fmt.Errorf("%w: ...") and classify with errors.Is.
var (
	// ErrInvalidParams covers malformed scenarios, bad constraint keys,
	// out-of-range parameters and non-finite scores.
	ErrInvalidParams = errors.New("invalid params")

	// ErrNotFound indicates an unknown run id.
	ErrNotFound = errors.New("not found")

	// ErrInternal covers store write failures and unexpected faults.
	ErrInternal = errors.New("internal error")
)

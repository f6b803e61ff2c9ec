package gateway

import "fmt"

// NetworkError is a transport failure or a non-2xx response from the
// backend. It never carries a state transition with it: callers keep their
// local edits and may retry the same request.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying transport error, if any.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ConflictError means the backend snapshot changed since it was last
// fetched. The caller must resynchronize (cancel/refetch) before retrying.
type ConflictError struct {
	NoDN string
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return fmt.Sprintf("delivery note %s changed on the backend, resync required", e.NoDN)
}

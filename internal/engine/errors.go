package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors for supervisor and client operations.
var (
	// ErrExecutableNotFound means no candidate path held the engine binary.
	ErrExecutableNotFound = errors.New("engine executable not found")

	// ErrNotProvisioned means the engine's config file or graph directory
	// is missing.
	ErrNotProvisioned = errors.New("engine is not provisioned")

	// ErrEngineStopped means Start was called after Stop shut the engine down.
	ErrEngineStopped = errors.New("engine has been stopped")
)

// QueryError is a failed route query: the engine answered with a non-2xx
// status, or the transport failed outright. It is never produced for an
// empty result set.
type QueryError struct {
	// Status is the HTTP status code, or 0 for transport failures.
	Status int

	// Body is the raw response body, truncated for logging.
	Body string

	// Err is the underlying transport error, if any.
	Err error
}

func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("engine query failed: %v", e.Err)
	}
	return fmt.Sprintf("engine query failed: status %d: %s", e.Status, e.Body)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

package contract

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across stores and handlers.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid alert status transition")
	ErrStoreDisabled     = errors.New("store backend is disabled")
)

// UpstreamError reports that the data source itself failed (network, auth, driver).
// Callers decide whether to offer a retry.
type UpstreamError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("data source unavailable during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError wraps err unless it already is an UpstreamError.
func NewUpstreamError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}

// IsUpstream reports whether err came from the data source.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

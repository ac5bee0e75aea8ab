package protocol

import (
	"errors"
	"fmt"
)

// AdapterError wraps a failure from an external service call (message
// delivery, AI completion, webhook, transfer). The engine retries steps
// that fail with an AdapterError; every other executor error fails the
// execution immediately.
type AdapterError struct {
	Adapter string
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s: %v", e.Adapter, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError wraps an external-service failure.
func NewAdapterError(adapter string, err error) *AdapterError {
	return &AdapterError{Adapter: adapter, Err: err}
}

// IsAdapterError reports whether err or any error it wraps is an
// AdapterError.
func IsAdapterError(err error) bool {
	var adapterErr *AdapterError

	return errors.As(err, &adapterErr)
}

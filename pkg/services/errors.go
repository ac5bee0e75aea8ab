// Package services implements the business operations behind the HTTP API:
// flow CRUD, structure validation, and execution control.
package services

import (
	"errors"

	"github.com/zapflow/zapflow/pkg/persistence"
)

// Client errors (4xx responses).
var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidStatus    = errors.New("invalid flow status")
	ErrFlowNameRequired = errors.New("flow name is required")
	ErrInvalidStructure = errors.New("invalid flow structure")
	ErrFlowNotActive    = errors.New("flow is not active")
)

// Not-found errors re-exported from the persistence layer so web handlers
// only depend on this package.
var (
	ErrFlowNotFound      = persistence.ErrFlowNotFound
	ErrExecutionNotFound = persistence.ErrExecutionNotFound
	ErrExecutionFinished = persistence.ErrExecutionFinished
)

// IsValidationError reports whether err should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrFlowNameRequired) ||
		errors.Is(err, ErrInvalidStructure)
}

// IsNotFound reports whether err should map to HTTP 404.
func IsNotFound(err error) bool {
	return persistence.IsFlowNotFound(err) || persistence.IsExecutionNotFound(err)
}

// IsConflict reports whether err should map to HTTP 409.
func IsConflict(err error) bool {
	return persistence.IsExecutionFinished(err) || errors.Is(err, ErrFlowNotActive)
}

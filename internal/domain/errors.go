package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a portfolio or version does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidConfiguration rejects structurally invalid input at the boundary
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrDataUnavailable means no usable price history exists for the computation
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrUndefinedMetric marks a statistic that cannot be computed for the input
	ErrUndefinedMetric = errors.New("metric not computable")
	// ErrReconciliationDrift means attribution does not sum to the window's return
	ErrReconciliationDrift = errors.New("attribution reconciliation drift")
)

// ValidationError describes a rejected field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

package analytics

import (
	"errors"
	"fmt"
)

// ErrInsufficientData matches every *InsufficientDataError via errors.Is.
var ErrInsufficientData = errors.New("insufficient data")

// InsufficientDataError reports that fewer aligned points were available
// than an analytic needs.
type InsufficientDataError struct {
	Required  int
	Available int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d points required, %d available", e.Required, e.Available)
}

// Is reports whether target is ErrInsufficientData.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

func requirePoints(required, available int) error {
	if available < required {
		return &InsufficientDataError{Required: required, Available: available}
	}
	return nil
}

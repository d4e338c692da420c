package leave

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                  = errors.New("not found")
	ErrForbidden                 = errors.New("forbidden")
	ErrInvalidState              = errors.New("invalid state")
	ErrInvalidPolicy             = errors.New("invalid team leave policy")
	ErrNoWorkingDays             = errors.New("leave span contains no working days")
	ErrOverlappingLeave          = errors.New("leave overlaps an existing request")
	ErrConcurrentLimitExceeded   = errors.New("concurrent leave limit exceeded")
	ErrInvalidOverrideCredential = errors.New("invalid override credential")
)

// ConcurrentLimitError carries only counts, never the identities of the
// colleagues on leave.
type ConcurrentLimitError struct {
	ConflictingCount int
	Limit            int
}

func (e *ConcurrentLimitError) Error() string {
	return fmt.Sprintf("%s: %d already on leave, limit %d", ErrConcurrentLimitExceeded, e.ConflictingCount, e.Limit)
}

func (e *ConcurrentLimitError) Unwrap() error {
	return ErrConcurrentLimitExceeded
}

package fl

import "errors"

// Transient backend faults. A round that fails with one of these is retried
// against a rebuilt execution backend; everything else is fatal to the loop.
var (
	ErrFailedPrecondition = errors.New("execution backend precondition failed")
	ErrBackendNotFound    = errors.New("execution backend resource not found")
	ErrBackendInternal    = errors.New("execution backend internal fault")
)

// IsTransient reports whether err belongs to the closed set of recoverable
// backend faults.
func IsTransient(err error) bool {
	return errors.Is(err, ErrFailedPrecondition) ||
		errors.Is(err, ErrBackendNotFound) ||
		errors.Is(err, ErrBackendInternal)
}

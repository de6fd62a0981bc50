package session

import "errors"

var (
	// ErrNoSession is returned by operations that need a live session and
	// a current diner.
	ErrNoSession = errors.New("no active table session")
	// ErrSessionExpired is returned when expiry fires at any checkpoint.
	// It is never retryable; the caller must rejoin the table.
	ErrSessionExpired = errors.New("table session expired")
	// ErrSubmissionInFlight rejects a second submission while one is
	// pending. The caller may retry after the first resolves.
	ErrSubmissionInFlight = errors.New("order submission already in flight")
	// ErrEmptyCart rejects submitting a round with nothing in the cart.
	ErrEmptyCart = errors.New("shared cart is empty")
	// ErrCartNotEmpty blocks closing a table while unsubmitted items remain.
	ErrCartNotEmpty = errors.New("shared cart still has unsubmitted items")
	// ErrNoRounds blocks closing a table before any round was submitted.
	ErrNoRounds = errors.New("no submitted rounds to settle")
)

// ValidationError carries a user-displayable reason for a rejected input.
// No state is mutated when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func newValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

// IsRetryable reports whether the caller may simply try the operation again.
// Validation and expiry failures are final; everything else (transient
// backend errors, exhausted retries) is fair game for another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return false
	}
	switch {
	case errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrNoSession),
		errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrCartNotEmpty),
		errors.Is(err, ErrNoRounds):
		return false
	}
	return true
}

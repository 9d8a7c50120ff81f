package resilience

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is returned when the circuit breaker refuses a call.
// It signals "the resource is down, don't bother" rather than a failure of
// the call itself, so callers can distinguish the two.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ExhaustedError is returned when the retry budget is spent without success.
type ExhaustedError struct {
	// Attempts is the number of attempts that were executed.
	Attempts int
	// LastKind is the classification of the final failure.
	LastKind Kind
	// LastErr is the cause of the final failure.
	LastErr error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry budget exhausted after %d attempts (last: %s): %v",
		e.Attempts, e.LastKind, e.LastErr)
}

// Unwrap returns the last underlying cause.
func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// IsExhausted reports whether err is an ExhaustedError.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}

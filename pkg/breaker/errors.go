package breaker

import (
	"errors"
	"fmt"
	"time"
)

// ErrCircuitOpen is the stable identity for open-circuit rejections.
// Use errors.Is(err, ErrCircuitOpen) to classify; unwrap to *OpenError
// for the remaining cooldown.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// OpenError is returned when a call is rejected because the circuit is
// open. RetryAfter is the remaining cooldown before a probe is allowed.
type OpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open, retry after %s", e.Name, e.RetryAfter.Round(time.Millisecond))
}

func (e *OpenError) Unwrap() error { return ErrCircuitOpen }

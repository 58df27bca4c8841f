package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDate is returned when a date string is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidRange is returned when the requested window cannot be served.
	ErrInvalidRange = errors.New("invalid date range")
	// ErrLocationNotFound is returned when geocoding yields no match.
	ErrLocationNotFound = errors.New("location not found")
	// ErrInsufficientHistory is returned when a variable has no usable history rows.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrCircuitOpen marks provider calls rejected by an open circuit breaker.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// ProviderError describes a failed call to an external data provider.
type ProviderError struct {
	Provider   string
	StatusCode int    // upstream HTTP status, 0 for transport failures
	Reason     string // upstream reason, if the body carried one
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Reason
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

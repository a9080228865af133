package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrCityNotFound is returned when a city is not in the forecast table.
	ErrCityNotFound = errors.New("city is not in the database")
	// ErrDuplicateCity is returned by Store.InsertCity when the city already exists.
	ErrDuplicateCity = errors.New("city already registered")
	// ErrInvalidField is returned for a field name outside the allow-list.
	ErrInvalidField = errors.New("invalid field")
	// ErrMalformedPayload is returned when a provider payload or packed field
	// does not have the expected shape.
	ErrMalformedPayload = errors.New("malformed forecast payload")
	// ErrIndexOutOfRange is returned for an hour outside 0-23.
	ErrIndexOutOfRange = errors.New("hour index out of range")
	// ErrProviderUnavailable is returned when a fetcher refuses to call the
	// provider, e.g. while its circuit breaker is open.
	ErrProviderUnavailable = errors.New("weather provider unavailable")
)

// ValidationError describes a request that cannot be served as given.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Invalidf builds a ValidationError with a formatted reason.
func Invalidf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// UpstreamError reports a non-success status from the forecast provider.
type UpstreamError struct {
	Status int
	Reason string
}

func (e *UpstreamError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("provider returned status %d", e.Status)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Reason)
}

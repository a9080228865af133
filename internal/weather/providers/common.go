package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/city-forecast-cache/internal/weather"
)

var (
	errServerError  = errors.New("server error")
	errCircuitOpen  = fmt.Errorf("%w: circuit breaker open", weather.ErrProviderUnavailable)
	errNoHTTPClient = errors.New("http client not configured")
)

// newCircuitBreaker trips after consecutive transport or 5xx failures so a
// dead provider fails fast instead of stalling every request.
func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// doRequest executes the request exactly once through the circuit breaker.
// Any response is returned to the caller together with its status; 5xx
// responses also count as breaker failures.
func doRequest(ctx context.Context, client *http.Client, cb *gobreaker.CircuitBreaker, req *http.Request) (*http.Response, error) {
	if client == nil {
		return nil, errNoHTTPClient
	}
	req = req.WithContext(ctx)

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		if resp.StatusCode >= 500 {
			return resp, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		}
		return resp, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
	}
	if err != nil && !errors.Is(err, errServerError) {
		return nil, err
	}

	resp, ok := result.(*http.Response)
	if !ok || resp == nil {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return resp, nil
}

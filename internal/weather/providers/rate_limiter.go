package providers

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/i474232898/city-forecast-cache/internal/weather"
)

// RateLimitedFetcher wraps a weather.Fetcher with a token bucket.
type RateLimitedFetcher struct {
	fetcher weather.Fetcher
	limiter *rate.Limiter
}

var _ weather.Fetcher = (*RateLimitedFetcher)(nil)

// NewRateLimitedFetcher allows at most rps requests per second (fractional
// values allowed) with the given burst.
func NewRateLimitedFetcher(fetcher weather.Fetcher, rps float64, burst int) *RateLimitedFetcher {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimitedFetcher{
		fetcher: fetcher,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Fetch waits for the limiter and then delegates.
func (r *RateLimitedFetcher) Fetch(ctx context.Context, q weather.ForecastQuery) (weather.ProviderPayload, int, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return weather.ProviderPayload{}, 0, fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return r.fetcher.Fetch(ctx, q)
}

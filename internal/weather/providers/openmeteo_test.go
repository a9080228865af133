package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/city-forecast-cache/internal/weather"
)

func TestOpenMeteoProvider_Fetch(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current":{"time":"2026-10-19T12:00","temperature_2m":7.1,"wind_speed_10m":3.2,"pressure_msl":1009.5}}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL)
	payload, status, err := p.Fetch(context.Background(), weather.CurrentQuery(59.91, 10.75, "Europe/Oslo"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, payload.Current)
	assert.Equal(t, 7.1, *payload.Current.Temperature2m)
	assert.Equal(t, 1009.5, *payload.Current.PressureMSL)

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, []string{"59.91"}, q["latitude"])
	assert.Equal(t, []string{"10.75"}, q["longitude"])
	assert.Equal(t, []string{"Europe/Oslo"}, q["timezone"])
	assert.Equal(t, []string{"temperature_2m,wind_speed_10m,pressure_msl"}, q["current"])
}

func TestOpenMeteoProvider_NonSuccessStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":true,"reason":"Latitude must be in range of -90 to 90°."}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL)
	payload, status, err := p.Fetch(context.Background(), weather.DailyForecastQuery(100, 0, "UTC"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.True(t, payload.Error)
	assert.Contains(t, payload.Reason, "Latitude")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "no retries")
}

func TestOpenMeteoProvider_ServerErrorWithoutJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL)
	payload, status, err := p.Fetch(context.Background(), weather.DailyForecastQuery(1, 1, "UTC"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "Bad Gateway", payload.Reason)
}

func TestOpenMeteoProvider_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL)
	for i := 0; i < 5; i++ {
		_, status, err := p.Fetch(context.Background(), weather.DailyForecastQuery(1, 1, "UTC"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, status)
	}

	_, _, err := p.Fetch(context.Background(), weather.DailyForecastQuery(1, 1, "UTC"))
	assert.ErrorIs(t, err, errCircuitOpen)
	assert.ErrorIs(t, err, weather.ErrProviderUnavailable)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))

	// Another provider instance keeps its own breaker.
	other := NewOpenMeteoProvider(srv.Client(), srv.URL)
	_, status, err := other.Fetch(context.Background(), weather.DailyForecastQuery(1, 1, "UTC"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, int32(6), atomic.LoadInt32(&calls))
}

func TestOpenMeteoProvider_NoClient(t *testing.T) {
	p := NewOpenMeteoProvider(nil, "http://127.0.0.1:0")
	_, _, err := p.Fetch(context.Background(), weather.DailyForecastQuery(1, 1, "UTC"))
	assert.ErrorIs(t, err, errNoHTTPClient)
}

type countingFetcher struct{ calls int32 }

func (c *countingFetcher) Fetch(context.Context, weather.ForecastQuery) (weather.ProviderPayload, int, error) {
	atomic.AddInt32(&c.calls, 1)
	return weather.ProviderPayload{}, http.StatusOK, nil
}

func TestRateLimitedFetcher_Delegates(t *testing.T) {
	inner := &countingFetcher{}
	f := NewRateLimitedFetcher(inner, 0, 1)

	for i := 0; i < 3; i++ {
		_, status, err := f.Fetch(context.Background(), weather.ForecastQuery{})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&inner.calls))
}

func TestRateLimitedFetcher_HonoursCancellation(t *testing.T) {
	inner := &countingFetcher{}
	f := NewRateLimitedFetcher(inner, 0.001, 1)

	// The first call consumes the only token.
	_, _, err := f.Fetch(context.Background(), weather.ForecastQuery{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = f.Fetch(ctx, weather.ForecastQuery{})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
}

func TestGoogleGeocoder_RequiresKey(t *testing.T) {
	_, _, err := NewGoogleGeocoder("").Locate(context.Background(), "oslo")
	assert.Error(t, err)
}

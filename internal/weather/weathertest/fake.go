// Package weathertest provides provider fakes and sample payloads for tests.
package weathertest

import (
	"context"
	"net/http"
	"sync"

	"github.com/i474232898/city-forecast-cache/internal/weather"
)

// Response is a canned fetcher answer.
type Response struct {
	Payload weather.ProviderPayload
	Status  int
	Err     error
}

// FakeFetcher answers by latitude/longitude and records every query.
type FakeFetcher struct {
	mu        sync.Mutex
	responses map[[2]float64]Response
	// Default is returned for coordinates without a registered response.
	Default Response
	Queries []weather.ForecastQuery
}

func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{
		responses: make(map[[2]float64]Response),
		Default:   Response{Status: http.StatusBadRequest, Payload: weather.ProviderPayload{Error: true, Reason: "no fake response"}},
	}
}

// Set registers the response for a coordinate.
func (f *FakeFetcher) Set(lat, lon float64, r Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[[2]float64{lat, lon}] = r
}

// Fetch implements weather.Fetcher.
func (f *FakeFetcher) Fetch(_ context.Context, q weather.ForecastQuery) (weather.ProviderPayload, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Queries = append(f.Queries, q)
	r, ok := f.responses[[2]float64{q.Latitude, q.Longitude}]
	if !ok {
		r = f.Default
	}
	return r.Payload, r.Status, r.Err
}

// Calls returns the number of Fetch calls so far.
func (f *FakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Queries)
}

// DailyPayload builds a one-day payload where hour h has temperature base+h,
// wind speed wind+h/10 and humidity 40+h.
func DailyPayload(base, wind, precip float64) weather.ProviderPayload {
	hourly := &weather.HourlySeries{}
	for h := 0; h < weather.HoursPerDay; h++ {
		hourly.Temperature2m = append(hourly.Temperature2m, base+float64(h))
		hourly.WindSpeed10m = append(hourly.WindSpeed10m, wind+float64(h)/10)
		hourly.RelativeHumidity2m = append(hourly.RelativeHumidity2m, float64(40+h))
	}
	return weather.ProviderPayload{
		Hourly: hourly,
		Daily:  &weather.DailySeries{Time: []string{"2026-10-19"}, PrecipitationSum: []float64{precip}},
	}
}

// OK wraps a payload in a 200 response.
func OK(p weather.ProviderPayload) Response {
	return Response{Payload: p, Status: http.StatusOK}
}

// CurrentPayload builds a payload with only the current section.
func CurrentPayload(temp, wind, pressure float64) weather.ProviderPayload {
	return weather.ProviderPayload{
		Current: &weather.CurrentValues{
			Time:          "2026-10-19T12:00",
			Temperature2m: &temp,
			WindSpeed10m:  &wind,
			PressureMSL:   &pressure,
		},
	}
}

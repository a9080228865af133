package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/i474232898/city-forecast-cache/internal/weather"
)

// DefaultOpenMeteoURL is the Open-Meteo forecast endpoint.
const DefaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

// maxBodyBytes bounds how much of a provider response is decoded.
const maxBodyBytes = 4 << 20

// OpenMeteoProvider implements weather.Fetcher for Open-Meteo.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

var _ weather.Fetcher = (*OpenMeteoProvider)(nil)

// NewOpenMeteoProvider creates a fetcher for baseURL; an empty baseURL uses
// DefaultOpenMeteoURL.
func NewOpenMeteoProvider(client *http.Client, baseURL string) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: baseURL,
		client:  client,
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// Fetch issues one GET with q encoded as URL parameters and returns the
// decoded body and HTTP status.
func (p *OpenMeteoProvider) Fetch(ctx context.Context, q weather.ForecastQuery) (weather.ProviderPayload, int, error) {
	u := fmt.Sprintf("%s?%s", p.baseURL, q.Values().Encode())
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return weather.ProviderPayload{}, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := doRequest(ctx, p.client, p.circuit, req)
	if err != nil {
		return weather.ProviderPayload{}, 0, fmt.Errorf("%s: %w", p.name, err)
	}
	defer resp.Body.Close()

	var payload weather.ProviderPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		if resp.StatusCode != http.StatusOK {
			// Error bodies are informational only.
			return weather.ProviderPayload{Error: true, Reason: http.StatusText(resp.StatusCode)}, resp.StatusCode, nil
		}
		return weather.ProviderPayload{}, resp.StatusCode, fmt.Errorf("%s: decode body: %w", p.name, err)
	}
	return payload, resp.StatusCode, nil
}

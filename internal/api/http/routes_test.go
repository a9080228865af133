package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/city-forecast-cache/internal/store"
	"github.com/i474232898/city-forecast-cache/internal/weather"
	"github.com/i474232898/city-forecast-cache/internal/weather/weathertest"
)

func newTestApp(t *testing.T) (*fiber.App, *weathertest.FakeFetcher, *store.MemoryStore) {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})

	memStore := store.NewMemoryStore()
	fetcher := weathertest.NewFakeFetcher()
	svc := weather.NewService(memStore, fetcher, weather.ServiceOptions{})
	RegisterRoutes(app, svc)
	return app, fetcher, memStore
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(body) > 0 && body[0] == '{' {
		require.NoError(t, json.Unmarshal(body, &out), string(body))
	}
	return resp.StatusCode, out
}

func get(t *testing.T, app *fiber.App, target string) (int, map[string]any) {
	return do(t, app, httptest.NewRequest(http.MethodGet, target, nil))
}

func postCity(t *testing.T, app *fiber.App, form url.Values) (int, map[string]any) {
	req := httptest.NewRequest(http.MethodPost, "/city", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(t, app, req)
}

func TestWeatherByCoords_ReturnsExactlyThreeFields(t *testing.T) {
	app, fetcher, _ := newTestApp(t)
	fetcher.Set(59.91, 10.75, weathertest.OK(weathertest.CurrentPayload(4.2, 5.1, 1012)))

	status, body := get(t, app, "/weather?lat=59.91&lon=10.75")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"temperature": 4.2, "wind_speed": 5.1, "pressure": 1012.0}, body)
}

func TestWeatherByCoords_Validation(t *testing.T) {
	app, fetcher, _ := newTestApp(t)

	for _, target := range []string{
		"/weather?lat=abc&lon=10",
		"/weather?lat=91&lon=10",
		"/weather?lat=10&lon=",
	} {
		status, body := get(t, app, target)
		assert.Equal(t, http.StatusBadRequest, status, target)
		assert.Equal(t, true, body["error"], target)
	}
	assert.Zero(t, fetcher.Calls())
}

func TestWeatherByCoords_UpstreamStatusPassesThrough(t *testing.T) {
	app, fetcher, _ := newTestApp(t)
	fetcher.Set(1, 2, weathertest.Response{
		Status:  http.StatusTooManyRequests,
		Payload: weather.ProviderPayload{Error: true, Reason: "Too many requests"},
	})

	status, body := get(t, app, "/weather?lat=1&lon=2")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "Too many requests", body["reason"])
}

func TestWeather_MissingParameters(t *testing.T) {
	app, _, _ := newTestApp(t)

	status, body := get(t, app, "/weather?city=oslo")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid query parameters: city", body["reason"])
}

func TestRegisterAndQueryCity(t *testing.T) {
	app, fetcher, memStore := newTestApp(t)
	fetcher.Set(59.91, 10.75, weathertest.OK(weathertest.DailyPayload(-2, 3, 2.4)))

	status, body := postCity(t, app, url.Values{"city": {"Oslo"}, "lat": {"59.91"}, "lon": {"10.75"}})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "City saved", body["result"])

	// Registering again is a silent no-op.
	status, body = postCity(t, app, url.Values{"city": {"oslo"}, "lat": {"1"}, "lon": {"1"}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "City saved", body["result"])

	rows, err := memStore.ListAllRows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 59.91, rows[0].Lat)

	status, body = get(t, app, "/weather?city=oslo&time=13:00&return=temperature")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"temperature": 11.0}, body)

	status, body = get(t, app, "/weather?city=Oslo&time=13:45&return=precipitation,humidity")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"precipitation": 2.4, "humidity": 53.0}, body)

	// return defaults to temperature.
	status, body = get(t, app, "/weather?city=oslo&time=00:00")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"temperature": -2.0}, body)
}

func TestCityWeather_UnknownCity(t *testing.T) {
	app, _, _ := newTestApp(t)

	status, body := get(t, app, "/weather?city=paris&time=09:00")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "The city is not in the database", body["reason"])
}

func TestCityWeather_Validation(t *testing.T) {
	app, fetcher, _ := newTestApp(t)
	fetcher.Set(59.91, 10.75, weathertest.OK(weathertest.DailyPayload(0, 0, 0)))
	status, _ := postCity(t, app, url.Values{"city": {"oslo"}, "lat": {"59.91"}, "lon": {"10.75"}})
	require.Equal(t, http.StatusOK, status)

	cases := map[string]string{
		"/weather?city=oslo&time=1300":                      "Invalid time format. Expected hh:mm. Got 1300",
		"/weather?city=oslo&time=24:00":                     "Invalid hour value 24",
		"/weather?city=oslo&time=10:61":                     "Invalid minutes value 61",
		"/weather?city=oslo&time=ab:00":                     "Invalid hour or minute values",
		"/weather?city=&time=10:00":                         "Invalid city name",
		"/weather?city=oslo&time=10:00&return=pressure":     "Invalid parameter(s): pressure",
		"/weather?city=oslo&time=10:00&return=temperature,": "Invalid parameter(s): ",
	}
	for target, reason := range cases {
		status, body := get(t, app, target)
		assert.Equal(t, http.StatusBadRequest, status, target)
		assert.Equal(t, reason, body["reason"], target)
	}
}

func TestPostCity_Errors(t *testing.T) {
	app, fetcher, memStore := newTestApp(t)

	status, body := postCity(t, app, url.Values{"lat": {"1"}, "lon": {"1"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "The city parameter is not passed", body["reason"])

	status, _ = postCity(t, app, url.Values{"city": {"oslo"}, "lat": {"north"}, "lon": {"1"}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = postCity(t, app, url.Values{"city": {"oslo"}})
	assert.Equal(t, http.StatusBadRequest, status, "no coordinates and no geocoder")

	fetcher.Set(5, 5, weathertest.Response{Status: http.StatusInternalServerError})
	status, _ = postCity(t, app, url.Values{"city": {"oslo"}, "lat": {"5"}, "lon": {"5"}})
	assert.Equal(t, http.StatusInternalServerError, status)

	fetcher.Set(6, 6, weathertest.OK(weather.ProviderPayload{}))
	status, body = postCity(t, app, url.Values{"city": {"oslo"}, "lat": {"6"}, "lon": {"6"}})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, true, body["error"])

	cities, err := memStore.ListCities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cities)
}

func TestListCities(t *testing.T) {
	app, fetcher, _ := newTestApp(t)
	fetcher.Set(59.91, 10.75, weathertest.OK(weathertest.DailyPayload(0, 0, 0)))
	fetcher.Set(48.85, 2.35, weathertest.OK(weathertest.DailyPayload(0, 0, 0)))
	postCity(t, app, url.Values{"city": {"oslo"}, "lat": {"59.91"}, "lon": {"10.75"}})
	postCity(t, app, url.Values{"city": {"paris"}, "lat": {"48.85"}, "lon": {"2.35"}})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/cities", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cities []weather.CityCoords
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cities))
	assert.ElementsMatch(t, []weather.CityCoords{
		{City: "oslo", Lat: 59.91, Lon: 10.75},
		{City: "paris", Lat: 48.85, Lon: 2.35},
	}, cities)
}

func TestRegisterCity_NamesSurviveLaterRequests(t *testing.T) {
	app, fetcher, memStore := newTestApp(t)
	fetcher.Set(59.91, 10.75, weathertest.OK(weathertest.DailyPayload(-2, 3, 2.4)))
	fetcher.Set(48.85, 2.35, weathertest.OK(weathertest.DailyPayload(10, 1, 0)))

	status, _ := postCity(t, app, url.Values{"city": {"oslo"}, "lat": {"59.91"}, "lon": {"10.75"}})
	require.Equal(t, http.StatusOK, status)
	status, _ = postCity(t, app, url.Values{"city": {"paris"}, "lat": {"48.85"}, "lon": {"2.35"}})
	require.Equal(t, http.StatusOK, status)

	rows, err := memStore.ListAllRows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "oslo", rows[0].City)
	assert.Equal(t, "paris", rows[1].City)

	status, body := get(t, app, "/weather?city=oslo&time=13:00")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, map[string]any{"temperature": 11.0}, body)
}

func TestWeatherByCoords_ProviderUnavailable(t *testing.T) {
	app, fetcher, _ := newTestApp(t)
	fetcher.Set(1, 2, weathertest.Response{Err: fmt.Errorf("%w: circuit breaker open", weather.ErrProviderUnavailable)})

	status, body := get(t, app, "/weather?lat=1&lon=2")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "Weather provider unavailable", body["reason"])
}

func TestProviderNoContentIsBadGateway(t *testing.T) {
	app, fetcher, memStore := newTestApp(t)
	fetcher.Set(1, 2, weathertest.Response{Status: http.StatusNoContent})

	status, body := get(t, app, "/weather?lat=1&lon=2")
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, true, body["error"])

	status, _ = postCity(t, app, url.Values{"city": {"oslo"}, "lat": {"1"}, "lon": {"2"}})
	assert.Equal(t, http.StatusBadGateway, status)

	cities, err := memStore.ListCities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cities)
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return toHTTPError(io.ErrUnexpectedEOF)
	})

	status, body := get(t, app, "/boom")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Server error", body["reason"])
}

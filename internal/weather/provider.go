package weather

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// Provider variable names requested from Open-Meteo.
const (
	varTemperature = "temperature_2m"
	varWindSpeed   = "wind_speed_10m"
	varHumidity    = "relative_humidity_2m"
	varPressure    = "pressure_msl"
	varPrecipSum   = "precipitation_sum"
)

// ForecastQuery is the parameter set of a single provider request.
type ForecastQuery struct {
	Latitude     float64
	Longitude    float64
	Timezone     string
	Hourly       []string
	Daily        []string
	Current      []string
	ForecastDays int
}

// Values encodes the query as URL parameters.
func (q ForecastQuery) Values() url.Values {
	v := url.Values{}
	v.Set("latitude", strconv.FormatFloat(q.Latitude, 'f', -1, 64))
	v.Set("longitude", strconv.FormatFloat(q.Longitude, 'f', -1, 64))
	if q.Timezone != "" {
		v.Set("timezone", q.Timezone)
	}
	if len(q.Hourly) > 0 {
		v.Set("hourly", strings.Join(q.Hourly, ","))
	}
	if len(q.Daily) > 0 {
		v.Set("daily", strings.Join(q.Daily, ","))
	}
	if len(q.Current) > 0 {
		v.Set("current", strings.Join(q.Current, ","))
	}
	if q.ForecastDays > 0 {
		v.Set("forecast_days", strconv.Itoa(q.ForecastDays))
	}
	return v
}

// DailyForecastQuery asks for today's hourly series and precipitation sum.
func DailyForecastQuery(lat, lon float64, tz string) ForecastQuery {
	return ForecastQuery{
		Latitude:     lat,
		Longitude:    lon,
		Timezone:     tz,
		Hourly:       []string{varTemperature, varWindSpeed, varHumidity},
		Daily:        []string{varPrecipSum},
		ForecastDays: 1,
	}
}

// CurrentQuery asks for current temperature, wind speed and pressure.
func CurrentQuery(lat, lon float64, tz string) ForecastQuery {
	return ForecastQuery{
		Latitude:  lat,
		Longitude: lon,
		Timezone:  tz,
		Current:   []string{varTemperature, varWindSpeed, varPressure},
	}
}

// HourlySeries is the "hourly" section of a provider payload.
type HourlySeries struct {
	Time               []string  `json:"time"`
	Temperature2m      []float64 `json:"temperature_2m"`
	WindSpeed10m       []float64 `json:"wind_speed_10m"`
	RelativeHumidity2m []float64 `json:"relative_humidity_2m"`
}

// DailySeries is the "daily" section of a provider payload.
type DailySeries struct {
	Time             []string  `json:"time"`
	PrecipitationSum []float64 `json:"precipitation_sum"`
}

// CurrentValues is the "current" section of a provider payload.
type CurrentValues struct {
	Time          string   `json:"time"`
	Temperature2m *float64 `json:"temperature_2m"`
	WindSpeed10m  *float64 `json:"wind_speed_10m"`
	PressureMSL   *float64 `json:"pressure_msl"`
}

// ProviderPayload is the decoded provider response body. Error and Reason are
// populated on non-success statuses.
type ProviderPayload struct {
	Hourly  *HourlySeries  `json:"hourly,omitempty"`
	Daily   *DailySeries   `json:"daily,omitempty"`
	Current *CurrentValues `json:"current,omitempty"`
	Error   bool           `json:"error,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}

// Fetcher issues a single request to the forecast provider. A non-success
// status is reported through the returned status, not the error.
type Fetcher interface {
	Fetch(ctx context.Context, q ForecastQuery) (ProviderPayload, int, error)
}

// Geocoder resolves a city name to coordinates.
type Geocoder interface {
	Locate(ctx context.Context, city string) (lat, lon float64, err error)
}

// Store is the contract of the persisted forecast table.
type Store interface {
	FindCity(ctx context.Context, name string) (int64, error)
	InsertCity(ctx context.Context, rec CityForecast) (int64, error)
	ListCities(ctx context.Context) ([]CityCoords, error)
	ListAllRows(ctx context.Context) ([]CityForecast, error)
	GetCityFields(ctx context.Context, name string, fields []Field) (CityForecast, error)
	UpdateField(ctx context.Context, id int64, field Field, value any) error
}

// Recorder receives reconciliation outcomes.
type Recorder interface {
	ObserveCycle(report CycleReport)
	IncFetchFailure(reason string)
	IncFieldUpdate(field Field)
}

type noopRecorder struct{}

func (noopRecorder) ObserveCycle(CycleReport) {}
func (noopRecorder) IncFetchFailure(string)   {}
func (noopRecorder) IncFieldUpdate(Field)     {}

package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
)

// DefaultTimezone is used when no timezone is configured.
const DefaultTimezone = "Europe/Moscow"

// ServiceOptions carries the optional collaborators of a Service.
type ServiceOptions struct {
	// Timezone is passed to the provider with every request.
	Timezone string
	// RefreshFetcher is used by Reconcile; it defaults to the request fetcher.
	RefreshFetcher Fetcher
	// Geocoder resolves coordinates for registrations that omit them.
	Geocoder Geocoder
	Recorder Recorder
}

// Service serves forecast queries from the store and the provider, and
// keeps stored forecasts fresh.
type Service struct {
	store    Store
	fetcher  Fetcher
	refresh  Fetcher
	geocoder Geocoder
	recorder Recorder
	timezone string
}

// NewService creates a new Service.
func NewService(store Store, fetcher Fetcher, opts ServiceOptions) *Service {
	s := &Service{
		store:    store,
		fetcher:  fetcher,
		refresh:  opts.RefreshFetcher,
		geocoder: opts.Geocoder,
		recorder: opts.Recorder,
		timezone: opts.Timezone,
	}
	if s.refresh == nil {
		s.refresh = fetcher
	}
	if s.recorder == nil {
		s.recorder = noopRecorder{}
	}
	if s.timezone == "" {
		s.timezone = DefaultTimezone
	}
	return s
}

// CurrentWeather returns the provider's current conditions at a coordinate.
func (s *Service) CurrentWeather(ctx context.Context, lat, lon float64) (CurrentConditions, error) {
	payload, status, err := s.fetcher.Fetch(ctx, CurrentQuery(lat, lon, s.timezone))
	if err != nil {
		return CurrentConditions{}, fmt.Errorf("fetch current weather: %w", err)
	}
	if err := checkStatus(status, payload); err != nil {
		return CurrentConditions{}, err
	}

	cur := payload.Current
	if cur == nil || cur.Temperature2m == nil || cur.WindSpeed10m == nil || cur.PressureMSL == nil {
		return CurrentConditions{}, fmt.Errorf("%w: incomplete current section", ErrMalformedPayload)
	}
	return CurrentConditions{
		Temperature: *cur.Temperature2m,
		WindSpeed:   *cur.WindSpeed10m,
		Pressure:    *cur.PressureMSL,
	}, nil
}

// CityWeather returns the requested fields of a stored city at q.Hour.
// Array fields are decoded at that hour; precipitation is the daily total.
func (s *Service) CityWeather(ctx context.Context, q CityQuery) (map[Field]any, error) {
	city := NormalizeCity(q.City)
	if city == "" {
		return nil, Invalidf("Invalid city name")
	}
	if q.Hour < 0 || q.Hour >= HoursPerDay {
		return nil, Invalidf("Invalid hour value %d", q.Hour)
	}
	fields := q.Fields
	if len(fields) == 0 {
		fields = []Field{FieldTemperature}
	}

	row, err := s.store.GetCityFields(ctx, city, fields)
	if err != nil {
		return nil, err
	}

	out := make(map[Field]any, len(fields))
	for _, f := range fields {
		var (
			v    any
			derr error
		)
		switch f {
		case FieldPrecipitation:
			v = row.Precipitation
		case FieldHumidity:
			v, derr = DecodeHumidity(row.Humidity, q.Hour)
		default:
			v, derr = DecodeHour(row.Value(f).([]byte), q.Hour)
		}
		if derr != nil {
			return nil, fmt.Errorf("decode %s for %s: %w", f, city, derr)
		}
		out[f] = v
	}
	return out, nil
}

// ListCities returns every registered city with its coordinates.
func (s *Service) ListCities(ctx context.Context) ([]CityCoords, error) {
	return s.store.ListCities(ctx)
}

// RegisterRequest is a city registration. Nil coordinates are resolved through
// the configured Geocoder.
type RegisterRequest struct {
	City string
	Lat  *float64
	Lon  *float64
}

// RegisterCity fetches today's forecast for a new city and stores it.
// Registering an existing city is a no-op and keeps the first coordinates.
func (s *Service) RegisterCity(ctx context.Context, req RegisterRequest) error {
	city := NormalizeCity(req.City)
	if city == "" {
		return Invalidf("The city parameter is not passed")
	}

	_, err := s.store.FindCity(ctx, city)
	if err == nil {
		log.Printf("DEBUG: city %q already registered; skipping", city)
		return nil
	}
	if !errors.Is(err, ErrCityNotFound) {
		return fmt.Errorf("find city %q: %w", city, err)
	}

	lat, lon, err := s.resolveCoords(ctx, city, req)
	if err != nil {
		return err
	}

	payload, status, err := s.fetcher.Fetch(ctx, DailyForecastQuery(lat, lon, s.timezone))
	if err != nil {
		return fmt.Errorf("fetch forecast for %q: %w", city, err)
	}
	if err := checkStatus(status, payload); err != nil {
		return err
	}

	packed, err := EncodeForecast(payload)
	if err != nil {
		return fmt.Errorf("encode forecast for %q: %w", city, err)
	}

	_, err = s.store.InsertCity(ctx, CityForecast{
		City:           city,
		Lat:            lat,
		Lon:            lon,
		PackedForecast: packed,
	})
	if errors.Is(err, ErrDuplicateCity) {
		log.Printf("DEBUG: city %q registered concurrently; keeping existing row", city)
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert city %q: %w", city, err)
	}

	log.Printf("INFO: registered city %q at (%v, %v)", city, lat, lon)
	return nil
}

func (s *Service) resolveCoords(ctx context.Context, city string, req RegisterRequest) (float64, float64, error) {
	if req.Lat != nil && req.Lon != nil {
		return *req.Lat, *req.Lon, nil
	}
	if req.Lat != nil || req.Lon != nil {
		return 0, 0, Invalidf("Both lat and lon must be passed")
	}
	if s.geocoder == nil {
		return 0, 0, Invalidf("The lat and lon parameters are not passed")
	}

	lat, lon, err := s.geocoder.Locate(ctx, city)
	if err != nil {
		log.Printf("geocoder lookup failed for %q: %v", city, err)
		return 0, 0, Invalidf("Could not resolve coordinates for %s", city)
	}
	return lat, lon, nil
}

// checkStatus accepts only 200. Other 2xx codes carry no forecast body and are
// treated as a malformed reply; everything else is passed through.
func checkStatus(status int, payload ProviderPayload) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status >= 200 && status < 300:
		return fmt.Errorf("%w: unexpected status %d", ErrMalformedPayload, status)
	default:
		return &UpstreamError{Status: status, Reason: payload.Reason}
	}
}

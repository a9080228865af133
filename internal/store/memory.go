package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/i474232898/city-forecast-cache/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
// Contents are lost on restart.
type MemoryStore struct {
	mu sync.RWMutex

	// key: row id
	rows map[int64]*weather.CityForecast
	// key: normalized city name, value: row id
	byCity map[string]int64
	nextID int64
}

var _ weather.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:   make(map[int64]*weather.CityForecast),
		byCity: make(map[string]int64),
	}
}

// CreateSchema is a no-op for the in-memory store.
func (s *MemoryStore) CreateSchema(context.Context) error {
	return nil
}

// FindCity returns the row id of city.
func (s *MemoryStore) FindCity(_ context.Context, name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCity[weather.NormalizeCity(name)]
	if !ok {
		return 0, weather.ErrCityNotFound
	}
	return id, nil
}

// InsertCity stores a new row. Existing cities are left untouched.
func (s *MemoryStore) InsertCity(_ context.Context, rec weather.CityForecast) (int64, error) {
	city := strings.Clone(weather.NormalizeCity(rec.City))
	if city == "" {
		return 0, weather.Invalidf("Invalid city name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCity[city]; ok {
		return 0, weather.ErrDuplicateCity
	}

	s.nextID++
	row := cloneRow(rec)
	row.ID = s.nextID
	row.City = city
	s.rows[row.ID] = &row
	s.byCity[city] = row.ID
	return row.ID, nil
}

// ListCities returns the coordinates of every city.
func (s *MemoryStore) ListCities(context.Context) ([]weather.CityCoords, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]weather.CityCoords, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row.Coords())
	}
	return out, nil
}

// ListAllRows returns a copy of every row ordered by id.
func (s *MemoryStore) ListAllRows(context.Context) ([]weather.CityForecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]weather.CityForecast, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, cloneRow(*row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetCityFields returns the row of city with only the requested fields set.
func (s *MemoryStore) GetCityFields(_ context.Context, name string, fields []weather.Field) (weather.CityForecast, error) {
	for _, f := range fields {
		if !f.Valid() {
			return weather.CityForecast{}, fmt.Errorf("%w: %q", weather.ErrInvalidField, string(f))
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCity[weather.NormalizeCity(name)]
	if !ok {
		return weather.CityForecast{}, weather.ErrCityNotFound
	}
	row := s.rows[id]

	out := weather.CityForecast{ID: row.ID, City: row.City}
	for _, f := range fields {
		switch f {
		case weather.FieldPrecipitation:
			out.Precipitation = row.Precipitation
		case weather.FieldTemperature:
			out.Temperature = cloneBytes(row.Temperature)
		case weather.FieldWindSpeed:
			out.WindSpeed = cloneBytes(row.WindSpeed)
		case weather.FieldHumidity:
			out.Humidity = cloneBytes(row.Humidity)
		}
	}
	return out, nil
}

// UpdateField overwrites one field of the row with the given id.
func (s *MemoryStore) UpdateField(_ context.Context, id int64, field weather.Field, value any) error {
	if err := field.CheckValue(value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return weather.ErrCityNotFound
	}
	switch field {
	case weather.FieldPrecipitation:
		row.Precipitation = value.(float64)
	case weather.FieldTemperature:
		row.Temperature = cloneBytes(value.([]byte))
	case weather.FieldWindSpeed:
		row.WindSpeed = cloneBytes(value.([]byte))
	case weather.FieldHumidity:
		row.Humidity = cloneBytes(value.([]byte))
	}
	return nil
}

func cloneRow(r weather.CityForecast) weather.CityForecast {
	r.Temperature = cloneBytes(r.Temperature)
	r.WindSpeed = cloneBytes(r.WindSpeed)
	r.Humidity = cloneBytes(r.Humidity)
	return r
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

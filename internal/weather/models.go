package weather

import (
	"bytes"
	"fmt"
	"strings"
)

// HoursPerDay is the number of hourly samples packed into each array field.
const HoursPerDay = 24

// Field identifies one of the forecast columns a caller may read or update.
type Field string

const (
	FieldPrecipitation Field = "precipitation"
	FieldTemperature   Field = "temperature"
	FieldWindSpeed     Field = "wind_speed"
	FieldHumidity      Field = "humidity"
)

// Fields lists every forecast field in storage order.
var Fields = []Field{FieldPrecipitation, FieldTemperature, FieldWindSpeed, FieldHumidity}

// Valid reports whether f is one of the known forecast fields.
func (f Field) Valid() bool {
	return f.Column() != ""
}

// Column returns the fixed column name backing f, or "" for unknown fields.
func (f Field) Column() string {
	switch f {
	case FieldPrecipitation:
		return "precipitation"
	case FieldTemperature:
		return "temperature"
	case FieldWindSpeed:
		return "wind_speed"
	case FieldHumidity:
		return "humidity"
	default:
		return ""
	}
}

// CheckValue verifies that v has the Go type stored for f.
func (f Field) CheckValue(v any) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidField, string(f))
	}
	switch v.(type) {
	case float64:
		if f == FieldPrecipitation {
			return nil
		}
	case []byte:
		if f != FieldPrecipitation {
			return nil
		}
	}
	return fmt.Errorf("unexpected value type %T for field %s", v, f)
}

// ParseField converts a user-supplied name into a Field.
func ParseField(s string) (Field, error) {
	f := Field(strings.TrimSpace(s))
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidField, s)
	}
	return f, nil
}

// ParseFields parses a comma separated list of field names. An empty list
// defaults to temperature.
func ParseFields(csv string) ([]Field, error) {
	if strings.TrimSpace(csv) == "" {
		return []Field{FieldTemperature}, nil
	}

	var (
		fields  []Field
		invalid []string
	)
	for _, part := range strings.Split(csv, ",") {
		f, err := ParseField(part)
		if err != nil {
			invalid = append(invalid, part)
			continue
		}
		fields = append(fields, f)
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("%w: Invalid parameter(s): %s", ErrInvalidField, strings.Join(invalid, ", "))
	}
	return fields, nil
}

// PackedForecast is the compact per-city forecast as it is persisted.
// Temperature and WindSpeed hold HoursPerDay little-endian float32 values,
// Humidity holds HoursPerDay bytes.
type PackedForecast struct {
	Precipitation float64 `json:"precipitation"`
	Temperature   []byte  `json:"-"`
	WindSpeed     []byte  `json:"-"`
	Humidity      []byte  `json:"-"`
}

// Value returns the stored value for f: float64 for precipitation, []byte otherwise.
func (p PackedForecast) Value(f Field) any {
	switch f {
	case FieldPrecipitation:
		return p.Precipitation
	case FieldTemperature:
		return p.Temperature
	case FieldWindSpeed:
		return p.WindSpeed
	case FieldHumidity:
		return p.Humidity
	default:
		return nil
	}
}

// Equal reports whether f holds exactly the same value in p and other.
func (p PackedForecast) Equal(f Field, other PackedForecast) bool {
	switch f {
	case FieldPrecipitation:
		return p.Precipitation == other.Precipitation
	case FieldTemperature:
		return bytes.Equal(p.Temperature, other.Temperature)
	case FieldWindSpeed:
		return bytes.Equal(p.WindSpeed, other.WindSpeed)
	case FieldHumidity:
		return bytes.Equal(p.Humidity, other.Humidity)
	default:
		return false
	}
}

// CityCoords is the public view of a registered city.
type CityCoords struct {
	City string  `json:"city"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// CityForecast is one row of the forecast table.
type CityForecast struct {
	ID   int64
	City string
	Lat  float64
	Lon  float64
	PackedForecast
}

// Coords returns the public projection of the row.
func (c CityForecast) Coords() CityCoords {
	return CityCoords{City: c.City, Lat: c.Lat, Lon: c.Lon}
}

// CurrentConditions is the current-weather answer for a coordinate.
type CurrentConditions struct {
	Temperature float64 `json:"temperature"`
	WindSpeed   float64 `json:"wind_speed"`
	Pressure    float64 `json:"pressure"`
}

// CityQuery selects fields of a stored city's forecast at a given hour.
type CityQuery struct {
	City   string
	Hour   int
	Fields []Field
}

// NormalizeCity lower-cases and trims a city name for storage and lookup.
func NormalizeCity(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

package weather

import (
	"encoding/binary"
	"fmt"
	"math"
)

const float32Size = 4

// EncodeForecast packs a provider payload into the stored representation.
// Only the first daily precipitation sum is used; requests always ask for a
// single forecast day.
func EncodeForecast(payload ProviderPayload) (PackedForecast, error) {
	if payload.Daily == nil || len(payload.Daily.PrecipitationSum) == 0 {
		return PackedForecast{}, fmt.Errorf("%w: missing daily.precipitation_sum", ErrMalformedPayload)
	}
	if payload.Hourly == nil {
		return PackedForecast{}, fmt.Errorf("%w: missing hourly section", ErrMalformedPayload)
	}

	temp, err := packFloats("temperature_2m", payload.Hourly.Temperature2m)
	if err != nil {
		return PackedForecast{}, err
	}
	wind, err := packFloats("wind_speed_10m", payload.Hourly.WindSpeed10m)
	if err != nil {
		return PackedForecast{}, err
	}
	humidity, err := packPercentages("relative_humidity_2m", payload.Hourly.RelativeHumidity2m)
	if err != nil {
		return PackedForecast{}, err
	}

	return PackedForecast{
		Precipitation: payload.Daily.PrecipitationSum[0],
		Temperature:   temp,
		WindSpeed:     wind,
		Humidity:      humidity,
	}, nil
}

// DecodeHour returns the float32 sample for hour from a packed float field.
func DecodeHour(field []byte, hour int) (float64, error) {
	if hour < 0 || hour >= HoursPerDay {
		return 0, fmt.Errorf("%w: %d", ErrIndexOutOfRange, hour)
	}
	off := hour * float32Size
	if len(field) < off+float32Size {
		return 0, fmt.Errorf("%w: packed field has %d bytes", ErrMalformedPayload, len(field))
	}
	bits := binary.LittleEndian.Uint32(field[off : off+float32Size])
	return float64(math.Float32frombits(bits)), nil
}

// DecodeHumidity returns the humidity percentage for hour.
func DecodeHumidity(field []byte, hour int) (uint8, error) {
	if hour < 0 || hour >= HoursPerDay {
		return 0, fmt.Errorf("%w: %d", ErrIndexOutOfRange, hour)
	}
	if len(field) <= hour {
		return 0, fmt.Errorf("%w: packed field has %d bytes", ErrMalformedPayload, len(field))
	}
	return field[hour], nil
}

func packFloats(key string, values []float64) ([]byte, error) {
	if len(values) != HoursPerDay {
		return nil, fmt.Errorf("%w: hourly.%s has %d values, want %d", ErrMalformedPayload, key, len(values), HoursPerDay)
	}
	out := make([]byte, HoursPerDay*float32Size)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*float32Size:], math.Float32bits(float32(v)))
	}
	return out, nil
}

func packPercentages(key string, values []float64) ([]byte, error) {
	if len(values) != HoursPerDay {
		return nil, fmt.Errorf("%w: hourly.%s has %d values, want %d", ErrMalformedPayload, key, len(values), HoursPerDay)
	}
	out := make([]byte, HoursPerDay)
	for i, v := range values {
		if v < 0 || v > 100 || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: hourly.%s[%d] = %v", ErrMalformedPayload, key, i, v)
		}
		out[i] = uint8(math.Round(v))
	}
	return out, nil
}

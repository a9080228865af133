package httpapi

import (
	"errors"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/i474232898/city-forecast-cache/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	app.Get("/weather", func(c *fiber.Ctx) error {
		switch {
		case hasQuery(c, "lat") && hasQuery(c, "lon"):
			return weatherByCoords(c, service)
		case hasQuery(c, "city") && hasQuery(c, "time"):
			return weatherForCity(c, service)
		default:
			return fiber.NewError(fiber.StatusBadRequest, "Invalid query parameters: "+strings.Join(queryKeys(c), ", "))
		}
	})

	app.Get("/cities", func(c *fiber.Ctx) error {
		cities, err := service.ListCities(c.UserContext())
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(cities)
	})

	app.Post("/city", func(c *fiber.Ctx) error {
		var form cityForm
		if err := form.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := service.RegisterCity(c.UserContext(), form.toRequest()); err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fiber.Map{"result": "City saved"})
	})
}

func weatherByCoords(c *fiber.Ctx, service *weather.Service) error {
	var q coordsQuery
	if err := q.bind(c); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	current, err := service.CurrentWeather(c.UserContext(), q.lat, q.lon)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(current)
}

func weatherForCity(c *fiber.Ctx, service *weather.Service) error {
	q, err := parseCityQuery(c)
	if err != nil {
		return toHTTPError(err)
	}

	values, err := service.CityWeather(c.UserContext(), q)
	if err != nil {
		return toHTTPError(err)
	}

	out := make(fiber.Map, len(values))
	for f, v := range values {
		out[string(f)] = v
	}
	return c.JSON(out)
}

// coordsQuery holds the coordinates of a current-weather request.
type coordsQuery struct {
	Lat string `validate:"required,latitude"`
	Lon string `validate:"required,longitude"`

	lat, lon float64
}

func (q *coordsQuery) bind(c *fiber.Ctx) error {
	q.Lat = c.Query("lat")
	q.Lon = c.Query("lon")
	if err := validate.Struct(q); err != nil {
		return errors.New("Invalid coordinates: lat must be in [-90, 90] and lon in [-180, 180]")
	}

	// Both values passed the validator, so they parse.
	q.lat, _ = strconv.ParseFloat(q.Lat, 64)
	q.lon, _ = strconv.ParseFloat(q.Lon, 64)
	return nil
}

func parseCityQuery(c *fiber.Ctx) (weather.CityQuery, error) {
	city := weather.NormalizeCity(c.Query("city"))
	if city == "" {
		return weather.CityQuery{}, weather.Invalidf("Invalid city name")
	}

	hour, err := parseHour(c.Query("time"))
	if err != nil {
		return weather.CityQuery{}, err
	}

	fields, err := weather.ParseFields(c.Query("return"))
	if err != nil {
		return weather.CityQuery{}, err
	}

	return weather.CityQuery{City: city, Hour: hour, Fields: fields}, nil
}

// parseHour validates an hh:mm time of day and returns the hour.
func parseHour(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, weather.Invalidf("Invalid time format. Expected hh:mm. Got %s", s)
	}
	hh, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, weather.Invalidf("Invalid hour or minute values")
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, weather.Invalidf("Invalid hour or minute values")
	}
	if hh < 0 || hh > 23 {
		return 0, weather.Invalidf("Invalid hour value %d", hh)
	}
	if mm < 0 || mm > 59 {
		return 0, weather.Invalidf("Invalid minutes value %d", mm)
	}
	return hh, nil
}

// cityForm holds the form fields of a city registration.
type cityForm struct {
	City string `validate:"required"`
	Lat  string `validate:"omitempty,latitude"`
	Lon  string `validate:"omitempty,longitude"`
}

func (f *cityForm) bind(c *fiber.Ctx) error {
	// FormValue aliases the request buffer, which fasthttp reuses.
	f.City = utils.CopyString(strings.TrimSpace(c.FormValue("city")))
	f.Lat = strings.TrimSpace(c.FormValue("lat"))
	f.Lon = strings.TrimSpace(c.FormValue("lon"))

	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && verrs[0].Field() == "City" {
			return errors.New("The city parameter is not passed")
		}
		return errors.New("Invalid coordinates: lat must be in [-90, 90] and lon in [-180, 180]")
	}
	return nil
}

func (f cityForm) toRequest() weather.RegisterRequest {
	req := weather.RegisterRequest{City: f.City}
	if v, err := strconv.ParseFloat(f.Lat, 64); err == nil {
		req.Lat = &v
	}
	if v, err := strconv.ParseFloat(f.Lon, 64); err == nil {
		req.Lon = &v
	}
	return req
}

// toHTTPError maps domain errors to HTTP errors. Unexpected errors are logged
// and reported without detail.
func toHTTPError(err error) error {
	var (
		verr *weather.ValidationError
		uerr *weather.UpstreamError
	)
	switch {
	case errors.As(err, &verr):
		return fiber.NewError(fiber.StatusBadRequest, verr.Reason)
	case errors.Is(err, weather.ErrInvalidField):
		return fiber.NewError(fiber.StatusBadRequest, strings.TrimPrefix(err.Error(), weather.ErrInvalidField.Error()+": "))
	case errors.Is(err, weather.ErrCityNotFound):
		return fiber.NewError(fiber.StatusBadRequest, "The city is not in the database")
	case errors.As(err, &uerr):
		reason := uerr.Reason
		if reason == "" {
			reason = "Weather provider error"
		}
		return fiber.NewError(uerr.Status, reason)
	case errors.Is(err, weather.ErrProviderUnavailable):
		log.Printf("ERROR: %v", err)
		return fiber.NewError(fiber.StatusServiceUnavailable, "Weather provider unavailable")
	case errors.Is(err, weather.ErrMalformedPayload):
		log.Printf("ERROR: malformed provider payload: %v", err)
		return fiber.NewError(fiber.StatusBadGateway, "Unexpected response from weather provider")
	default:
		log.Printf("ERROR: request failed: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Server error")
	}
}

func hasQuery(c *fiber.Ctx, key string) bool {
	_, ok := c.Queries()[key]
	return ok
}

func queryKeys(c *fiber.Ctx) []string {
	keys := make([]string, 0)
	for k := range c.Queries() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ErrorHandler renders every handler error as {"error": true, "reason": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	reason := "Server error"

	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		code = ferr.Code
		reason = ferr.Message
	} else {
		log.Printf("ERROR: unhandled error: %v", err)
	}

	return c.Status(code).JSON(fiber.Map{
		"error":  true,
		"reason": reason,
	})
}

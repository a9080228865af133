package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/i474232898/city-forecast-cache/internal/common"
	"github.com/i474232898/city-forecast-cache/internal/weather"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// cityForecastRow is the GORM mapping of the city_forecasts table.
type cityForecastRow struct {
	ID            int64   `gorm:"column:id;primaryKey;autoIncrement"`
	City          string  `gorm:"column:city"`
	Lat           float64 `gorm:"column:lat"`
	Lon           float64 `gorm:"column:lon"`
	Precipitation float64 `gorm:"column:precipitation"`
	Temperature   []byte  `gorm:"column:temperature"`
	WindSpeed     []byte  `gorm:"column:wind_speed"`
	Humidity      []byte  `gorm:"column:humidity"`
}

// TableName specifies the table name for cityForecastRow.
func (cityForecastRow) TableName() string {
	return "city_forecasts"
}

func (r cityForecastRow) toDomain() weather.CityForecast {
	return weather.CityForecast{
		ID:   r.ID,
		City: r.City,
		Lat:  r.Lat,
		Lon:  r.Lon,
		PackedForecast: weather.PackedForecast{
			Precipitation: r.Precipitation,
			Temperature:   r.Temperature,
			WindSpeed:     r.WindSpeed,
			Humidity:      r.Humidity,
		},
	}
}

// SQLiteOptions configures OpenSQLite.
type SQLiteOptions struct {
	// Path is the database file; ":memory:" is not supported because every
	// pooled connection would see its own database.
	Path     string
	LogLevel logger.LogLevel
}

// SQLiteStore persists forecasts in a SQLite file through GORM. Every method
// runs a single statement on a pooled connection; nothing is held across calls.
type SQLiteStore struct {
	db *gorm.DB
}

var _ weather.Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database file at opts.Path.
// Call CreateSchema before use.
func OpenSQLite(opts SQLiteOptions) (*SQLiteStore, error) {
	if opts.Path == "" {
		return nil, errors.New("sqlite database path cannot be empty")
	}
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Warn
	}

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  opts.LogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn(opts.Path)), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", opts.Path, err)
	}
	return &SQLiteStore{db: db}, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_busy_timeout=5000"
}

// Close releases the connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateSchema applies the embedded migrations. It is safe to call repeatedly.
func (s *SQLiteStore) CreateSchema(ctx context.Context) error {
	sqlDB, err := s.db.WithContext(ctx).DB()
	if err != nil {
		return err
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	drv, err := migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", drv)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// FindCity returns the row id of city.
func (s *SQLiteStore) FindCity(ctx context.Context, name string) (int64, error) {
	var row cityForecastRow
	err := s.db.WithContext(ctx).
		Select("id").
		Where("city = ?", weather.NormalizeCity(name)).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, weather.ErrCityNotFound
	}
	if err != nil {
		return 0, err
	}
	return row.ID, nil
}

// InsertCity stores a new, fully populated row.
func (s *SQLiteStore) InsertCity(ctx context.Context, rec weather.CityForecast) (int64, error) {
	city := weather.NormalizeCity(rec.City)
	if city == "" {
		return 0, weather.Invalidf("Invalid city name")
	}

	row := cityForecastRow{
		City:          city,
		Lat:           rec.Lat,
		Lon:           rec.Lon,
		Precipitation: rec.Precipitation,
		Temperature:   rec.Temperature,
		WindSpeed:     rec.WindSpeed,
		Humidity:      rec.Humidity,
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "city"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return 0, weather.ErrDuplicateCity
		}
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, weather.ErrDuplicateCity
	}
	return row.ID, nil
}

// ListCities returns the coordinates of every city.
func (s *SQLiteStore) ListCities(ctx context.Context) ([]weather.CityCoords, error) {
	var rows []cityForecastRow
	if err := s.db.WithContext(ctx).Select("city", "lat", "lon").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]weather.CityCoords, 0, len(rows))
	for _, r := range rows {
		out = append(out, weather.CityCoords{City: r.City, Lat: r.Lat, Lon: r.Lon})
	}
	return out, nil
}

// ListAllRows returns every row ordered by id.
func (s *SQLiteStore) ListAllRows(ctx context.Context) ([]weather.CityForecast, error) {
	var rows []cityForecastRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]weather.CityForecast, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// GetCityFields returns the row of city with only the requested columns loaded.
func (s *SQLiteStore) GetCityFields(ctx context.Context, name string, fields []weather.Field) (weather.CityForecast, error) {
	cols := []string{"id", "city"}
	for _, f := range fields {
		col := f.Column()
		if col == "" {
			return weather.CityForecast{}, fmt.Errorf("%w: %q", weather.ErrInvalidField, string(f))
		}
		cols = append(cols, col)
	}

	var row cityForecastRow
	err := s.db.WithContext(ctx).
		Select(cols).
		Where("city = ?", weather.NormalizeCity(name)).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return weather.CityForecast{}, weather.ErrCityNotFound
	}
	if err != nil {
		return weather.CityForecast{}, err
	}
	return row.toDomain(), nil
}

// UpdateField overwrites a single column of the row with the given id.
func (s *SQLiteStore) UpdateField(ctx context.Context, id int64, field weather.Field, value any) error {
	if err := field.CheckValue(value); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Model(&cityForecastRow{}).
		Where("id = ?", id).
		Update(field.Column(), value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return weather.ErrCityNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return common.HasAny(err.Error(), "UNIQUE constraint failed", "constraint failed: UNIQUE")
}

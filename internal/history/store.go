package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/kjstillabower/weather-cli/internal/config"
	"github.com/kjstillabower/weather-cli/internal/models"
	"github.com/kjstillabower/weather-cli/internal/observability"
)

// Defaults for Recent and Stats when the caller passes a non-positive value.
const (
	DefaultRecentLimit = 5
	DefaultStatsDays   = 7
)

// Dialect names match the database/sql driver names registered by lib/pq and modernc.org/sqlite.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// ErrUnsupportedDriver is returned by Open for drivers other than postgres and sqlite.
var ErrUnsupportedDriver = errors.New("unsupported history driver")

// weatherTimeLayouts are the forms the forecast API reports observation time in.
var weatherTimeLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05", time.RFC3339}

// Store logs fetched weather records to a relational database and answers recent-record
// and statistics queries. Locations are deduplicated on (city_name, latitude, longitude).
type Store struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
	logger  *zap.Logger
}

// Open connects to the database described by cfg and verifies the connection.
// For sqlite the parent directory of the database file is created if missing.
func Open(ctx context.Context, cfg config.HistoryConfig, logger *zap.Logger) (*Store, error) {
	dialect := strings.ToLower(cfg.Driver)
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
	dsn := cfg.ConnectionString()
	if dialect == DialectSQLite {
		if err := ensureSQLiteDir(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// one writer at a time; avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return New(db, dialect, logger), nil
}

// New wraps an open database handle. dialect selects placeholder style and DDL.
func New(db *sql.DB, dialect string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, dialect: dialect, now: time.Now, logger: logger}
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Init creates the tables and indexes if they do not exist.
func (s *Store) Init(ctx context.Context) error {
	for _, stmt := range schema(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	s.logger.Debug("history schema ready", zap.String("dialect", s.dialect))
	return nil
}

// Save records one fetched weather record. Records without a city or observation time are
// skipped with a warning. The location lookup/insert and the record insert share one transaction.
func (s *Store) Save(ctx context.Context, rec models.WeatherRecord) (err error) {
	if rec.City == "" || rec.Current.Time == "" {
		observability.HistoryWritesTotal.WithLabelValues("skipped").Inc()
		s.logger.Warn("incomplete weather record, not saved to history", zap.String("city", rec.City))
		return nil
	}
	weatherTime, err := parseWeatherTime(rec.Current.Time)
	if err != nil {
		observability.HistoryWritesTotal.WithLabelValues("skipped").Inc()
		s.logger.Warn("unparsable observation time, not saved to history",
			zap.String("city", rec.City), zap.String("time", rec.Current.Time), zap.Error(err))
		return nil
	}

	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		observability.HistoryWritesTotal.WithLabelValues(status).Inc()
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	locationID, err := s.locationID(ctx, tx, rec.City, roundCoord(rec.Latitude), roundCoord(rec.Longitude))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, s.rebind(
		`INSERT INTO weather_records (location_id, temperature, wind_speed, wind_direction, weather_time, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		locationID, rec.Current.Temperature, rec.Current.WindSpeed, rec.Current.WindDirection,
		weatherTime, s.now().UTC())
	if err != nil {
		return fmt.Errorf("insert weather record: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("weather record saved", zap.String("city", rec.City), zap.Int64("location_id", locationID))
	return nil
}

func (s *Store) locationID(ctx context.Context, tx *sql.Tx, city string, lat, lon float64) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, s.rebind(
		`SELECT id FROM locations WHERE city_name = ? AND latitude = ? AND longitude = ?`),
		city, lat, lon).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("find location: %w", err)
	}

	err = tx.QueryRowContext(ctx, s.rebind(
		`INSERT INTO locations (city_name, latitude, longitude, created_at) VALUES (?, ?, ?, ?) RETURNING id`),
		city, lat, lon, s.now().UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert location: %w", err)
	}
	return id, nil
}

// Recent returns up to limit records for city, newest observation first.
func (s *Store) Recent(ctx context.Context, city string, limit int) ([]models.HistoryRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT l.city_name, l.latitude, l.longitude, wr.temperature, wr.wind_speed, wr.wind_direction, wr.weather_time, wr.recorded_at
		FROM weather_records wr
		JOIN locations l ON wr.location_id = l.id
		WHERE l.city_name = ?
		ORDER BY wr.weather_time DESC
		LIMIT ?`), city, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	out := make([]models.HistoryRecord, 0, limit)
	for rows.Next() {
		var (
			r       models.HistoryRecord
			windDir sql.NullInt64
		)
		if err := rows.Scan(&r.City, &r.Latitude, &r.Longitude, &r.Temperature, &r.WindSpeed, &windDir, &r.WeatherTime, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan recent: %w", err)
		}
		r.WindDirection = int(windDir.Int64)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent: %w", err)
	}
	return out, nil
}

// Stats aggregates the records for city observed since midnight UTC days days ago.
// With no matching records it returns Stats{Count: 0}.
func (s *Store) Stats(ctx context.Context, city string, days int) (models.Stats, error) {
	if days <= 0 {
		days = DefaultStatsDays
	}
	cutoff := windowStart(s.now(), days)

	var (
		count                     int
		avgTemp, minTemp, maxTemp sql.NullFloat64
		avgWind                   sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT COUNT(*), AVG(wr.temperature), MIN(wr.temperature), MAX(wr.temperature), AVG(wr.wind_speed)
		FROM weather_records wr
		JOIN locations l ON wr.location_id = l.id
		WHERE l.city_name = ? AND wr.weather_time >= ?`), city, cutoff).
		Scan(&count, &avgTemp, &minTemp, &maxTemp, &avgWind)
	if err != nil {
		return models.Stats{}, fmt.Errorf("query stats: %w", err)
	}
	if count == 0 {
		return models.Stats{}, nil
	}
	return models.Stats{
		Count:          count,
		AvgTemperature: avgTemp.Float64,
		MinTemperature: minTemp.Float64,
		MaxTemperature: maxTemp.Float64,
		AvgWindSpeed:   avgWind.Float64,
	}, nil
}

// rebind rewrites ? placeholders to $1, $2, ... for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func schema(dialect string) []string {
	if dialect == DialectPostgres {
		return []string{
			`CREATE TABLE IF NOT EXISTS locations (
				id SERIAL PRIMARY KEY,
				city_name VARCHAR(100) NOT NULL,
				latitude DECIMAL(9,6) NOT NULL,
				longitude DECIMAL(9,6) NOT NULL,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS weather_records (
				id SERIAL PRIMARY KEY,
				location_id INTEGER REFERENCES locations(id),
				temperature DECIMAL(5,2) NOT NULL,
				wind_speed DECIMAL(5,2) NOT NULL,
				wind_direction INTEGER,
				weather_time TIMESTAMP NOT NULL,
				recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_locations_city ON locations(city_name)`,
			`CREATE INDEX IF NOT EXISTS idx_weather_records_time ON weather_records(weather_time)`,
			`CREATE INDEX IF NOT EXISTS idx_weather_records_location ON weather_records(location_id)`,
		}
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS locations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			city_name TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			created_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS weather_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			location_id INTEGER REFERENCES locations(id),
			temperature REAL NOT NULL,
			wind_speed REAL NOT NULL,
			wind_direction INTEGER,
			weather_time TIMESTAMP NOT NULL,
			recorded_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_locations_city ON locations(city_name)`,
		`CREATE INDEX IF NOT EXISTS idx_weather_records_time ON weather_records(weather_time)`,
		`CREATE INDEX IF NOT EXISTS idx_weather_records_location ON weather_records(location_id)`,
	}
}

func parseWeatherTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range weatherTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// ensureSQLiteDir creates the directory holding a file-backed sqlite database.
func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}
	return nil
}

// roundCoord matches the DECIMAL(9,6) location columns so a re-read coordinate compares equal.
func roundCoord(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// windowStart is midnight UTC of the day days days before now.
func windowStart(now time.Time, days int) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d-days, 0, 0, 0, 0, time.UTC)
}

package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/cadence/internal/models"
)

// RunRepository mirrors the run-history snapshot into SQLite for fast listing
// and lookups. The JSON snapshot stays authoritative; rows here are replaced
// wholesale on every sync via upserts keyed by the tracker's activity ID.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a RunRepository over the given database connection.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, name, start_time, lat, lon, distance_m, avg_speed, avg_hr, avg_cadence,
	elevation_gain_m, has_weather, temperature_c, precipitation, weathercode, humidity, feels_like_c, windspeed_kmh`

// Upsert inserts or replaces one run row.
func (r *RunRepository) Upsert(ctx context.Context, run models.RunRecord) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return upsertRun(ctx, r.db, run)
}

// UpsertAll inserts or replaces the whole batch inside one transaction.
func (r *RunRepository) UpsertAll(ctx context.Context, runs []models.RunRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, run := range runs {
		if err := run.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		if err := upsertRun(ctx, tx, run); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit runs: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertRun(ctx context.Context, db execer, run models.RunRecord) error {
	query := `
		INSERT INTO runs (` + runColumns + `, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			start_time = excluded.start_time,
			lat = excluded.lat,
			lon = excluded.lon,
			distance_m = excluded.distance_m,
			avg_speed = excluded.avg_speed,
			avg_hr = excluded.avg_hr,
			avg_cadence = excluded.avg_cadence,
			elevation_gain_m = excluded.elevation_gain_m,
			has_weather = excluded.has_weather,
			temperature_c = excluded.temperature_c,
			precipitation = excluded.precipitation,
			weathercode = excluded.weathercode,
			humidity = excluded.humidity,
			feels_like_c = excluded.feels_like_c,
			windspeed_kmh = excluded.windspeed_kmh,
			updated_at = excluded.updated_at
	`

	var (
		hasWeather                                    int
		tempC, precip, humidity, feelsLike, windSpeed sql.NullFloat64
		weatherCode                                   sql.NullInt64
	)
	if w := run.Weather; w != nil {
		hasWeather = 1
		tempC = sql.NullFloat64{Float64: w.TemperatureC, Valid: true}
		precip = sql.NullFloat64{Float64: w.PrecipitationMM, Valid: true}
		weatherCode = sql.NullInt64{Int64: int64(w.WeatherCode), Valid: true}
		humidity = sql.NullFloat64{Float64: w.HumidityPct, Valid: true}
		feelsLike = sql.NullFloat64{Float64: w.FeelsLikeC, Valid: true}
		windSpeed = sql.NullFloat64{Float64: w.WindSpeedKmh, Valid: true}
	}

	_, err := db.ExecContext(ctx, query,
		run.ID,
		run.Name,
		run.StartTime,
		run.Lat,
		run.Lon,
		run.DistanceM,
		run.AvgSpeedMS,
		run.AvgHeartRate,
		run.AvgCadence,
		run.ElevationGainM,
		hasWeather,
		tempC,
		precip,
		weatherCode,
		humidity,
		feelsLike,
		windSpeed,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert run %d: %w", run.ID, err)
	}
	return nil
}

// Get retrieves one run by its activity ID.
func (r *RunRepository) Get(ctx context.Context, id int64) (*models.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	return run, nil
}

// List retrieves up to limit runs, newest first. A non-positive limit lists
// everything.
func (r *RunRepository) List(ctx context.Context, limit int) ([]models.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY start_time DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// Count returns the number of mirrored runs.
func (r *RunRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

// Clear removes every mirrored run.
func (r *RunRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM runs"); err != nil {
		return fmt.Errorf("failed to clear runs: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.RunRecord, error) {
	var (
		run                                           models.RunRecord
		hasWeather                                    int
		tempC, precip, humidity, feelsLike, windSpeed sql.NullFloat64
		weatherCode                                   sql.NullInt64
	)

	err := row.Scan(
		&run.ID, &run.Name, &run.StartTime, &run.Lat, &run.Lon,
		&run.DistanceM, &run.AvgSpeedMS, &run.AvgHeartRate, &run.AvgCadence,
		&run.ElevationGainM, &hasWeather,
		&tempC, &precip, &weatherCode, &humidity, &feelsLike, &windSpeed,
	)
	if err != nil {
		return nil, err
	}

	if hasWeather == 1 {
		run.Weather = &models.WeatherSnapshot{
			TemperatureC:    tempC.Float64,
			PrecipitationMM: precip.Float64,
			WeatherCode:     int(weatherCode.Int64),
			HumidityPct:     humidity.Float64,
			FeelsLikeC:      feelsLike.Float64,
			WindSpeedKmh:    windSpeed.Float64,
		}
	}
	return &run, nil
}

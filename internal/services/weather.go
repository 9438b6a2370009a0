// Open-Meteo implementation of [WeatherService]
//
// No API key required; https://open-meteo.com/en/docs
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

const (
	openMeteoForecastURL = "https://api.open-meteo.com/v1/forecast"
	openMeteoArchiveURL  = "https://archive-api.open-meteo.com/v1/archive"

	// runs older than this many days come from the archive endpoint
	archiveAfterDays = 7

	hourlyVariables = "temperature_2m,precipitation,weathercode,relative_humidity_2m,apparent_temperature,windspeed_10m"

	// hourly timestamps arrive without zone or seconds, e.g. 2024-05-10T08:00
	hourlyTimeLayout = "2006-01-02T15:04"
)

// OpenMeteoService implements the WeatherService interface against the
// Open-Meteo forecast and archive APIs. The service is unauthenticated.
type OpenMeteoService struct {
	httpClient  *http.Client
	forecastURL string
	archiveURL  string
}

// NewOpenMeteoService creates a weather client with a request timeout
// matching the other API clients.
func NewOpenMeteoService() *OpenMeteoService {
	return &OpenMeteoService{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		forecastURL: openMeteoForecastURL,
		archiveURL:  openMeteoArchiveURL,
	}
}

// openMeteoHourly mirrors the hourly block of an Open-Meteo response.
// Series are index-aligned with Time.
type openMeteoHourly struct {
	Time          []string  `json:"time"`
	Temperature2M []float64 `json:"temperature_2m"`
	Precipitation []float64 `json:"precipitation"`
	WeatherCode   []int     `json:"weathercode"`
	Humidity      []float64 `json:"relative_humidity_2m"`
	FeelsLike     []float64 `json:"apparent_temperature"`
	WindSpeed     []float64 `json:"windspeed_10m"`
}

// SnapshotAt fetches the hourly series for the run's calendar day and picks
// the reading nearest the run's start. Recent days use the forecast endpoint;
// anything older than a week lives only in the archive. A day the provider
// has no hourly data for yields a nil snapshot and no error, leaving the
// run's weather unknown.
func (s *OpenMeteoService) SnapshotAt(ctx context.Context, lat, lon float64, at time.Time) (*models.WeatherSnapshot, error) {
	endpoint := s.forecastURL
	if ageDays := int(time.Since(at).Hours() / 24); ageDays > archiveAfterDays {
		endpoint = s.archiveURL
	}

	day := at.Format("2006-01-02")
	query := url.Values{
		"latitude":   {strconv.FormatFloat(lat, 'f', -1, 64)},
		"longitude":  {strconv.FormatFloat(lon, 'f', -1, 64)},
		"hourly":     {hourlyVariables},
		"start_date": {day},
		"end_date":   {day},
		"timezone":   {"auto"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: weather API returned %d: %s", shared.ErrAPIRequest, resp.StatusCode, body)
	}

	var payload struct {
		Hourly *openMeteoHourly `json:"hourly"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if payload.Hourly == nil || len(payload.Hourly.Time) == 0 {
		return nil, nil
	}

	idx, err := nearestHour(payload.Hourly.Time, at)
	if err != nil {
		return nil, err
	}
	return payload.Hourly.snapshot(idx), nil
}

// nearestHour picks the index of the hourly timestamp closest to at.
// Timestamps carry no zone and are compared on the same wall-clock basis
// the run times use.
func nearestHour(times []string, at time.Time) (int, error) {
	ref := time.Date(at.Year(), at.Month(), at.Day(), at.Hour(), at.Minute(), at.Second(), 0, time.UTC)
	best, bestDiff := 0, time.Duration(1<<62)
	for i, raw := range times {
		t, err := time.Parse(hourlyTimeLayout, raw)
		if err != nil {
			return 0, fmt.Errorf("weather API returned invalid hourly time %q: %w", raw, err)
		}
		diff := t.Sub(ref)
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return best, nil
}

func (h *openMeteoHourly) snapshot(idx int) *models.WeatherSnapshot {
	snap := &models.WeatherSnapshot{}
	if idx < len(h.Temperature2M) {
		snap.TemperatureC = h.Temperature2M[idx]
	}
	if idx < len(h.Precipitation) {
		snap.PrecipitationMM = h.Precipitation[idx]
	}
	if idx < len(h.WeatherCode) {
		snap.WeatherCode = h.WeatherCode[idx]
	}
	if idx < len(h.Humidity) {
		snap.HumidityPct = h.Humidity[idx]
	}
	if idx < len(h.FeelsLike) {
		snap.FeelsLikeC = h.FeelsLike[idx]
	}
	if idx < len(h.WindSpeed) {
		snap.WindSpeedKmh = h.WindSpeed[idx]
	}
	return snap
}

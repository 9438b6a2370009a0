package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/cadence/internal/shared"
)

func TestOpenMeteoService(t *testing.T) {
	t.Run("Interface", func(t *testing.T) {
		var _ WeatherService = NewOpenMeteoService()
	})

	t.Run("Endpoint Selection", func(t *testing.T) {
		var gotPath string
		var gotQuery map[string][]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotQuery = r.URL.Query()
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{}`)
		}))
		defer server.Close()

		srv := NewOpenMeteoService()
		srv.forecastURL = server.URL + "/v1/forecast"
		srv.archiveURL = server.URL + "/v1/archive"

		t.Run("Recent Run Uses Forecast", func(t *testing.T) {
			at := time.Now().Add(-48 * time.Hour)
			if _, err := srv.SnapshotAt(context.Background(), 52.52, 13.40, at); err != nil {
				t.Fatalf("SnapshotAt returned error: %v", err)
			}
			if gotPath != "/v1/forecast" {
				t.Errorf("path = %s, want /v1/forecast", gotPath)
			}
			if gotQuery["start_date"][0] != gotQuery["end_date"][0] {
				t.Error("start_date and end_date should cover a single day")
			}
			if gotQuery["timezone"][0] != "auto" {
				t.Errorf("timezone = %s, want auto", gotQuery["timezone"][0])
			}
			if !strings.Contains(gotQuery["hourly"][0], "temperature_2m") {
				t.Errorf("hourly variables missing temperature_2m: %s", gotQuery["hourly"][0])
			}
		})

		t.Run("Old Run Uses Archive", func(t *testing.T) {
			at := time.Now().Add(-30 * 24 * time.Hour)
			if _, err := srv.SnapshotAt(context.Background(), 52.52, 13.40, at); err != nil {
				t.Fatalf("SnapshotAt returned error: %v", err)
			}
			if gotPath != "/v1/archive" {
				t.Errorf("path = %s, want /v1/archive", gotPath)
			}
		})
	})

	t.Run("Picks Nearest Hour", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{
				"hourly": {
					"time": ["2024-05-10T06:00", "2024-05-10T07:00", "2024-05-10T08:00", "2024-05-10T09:00"],
					"temperature_2m": [10.1, 12.3, 14.6, 16.0],
					"precipitation": [0.0, 0.0, 0.2, 0.5],
					"weathercode": [1, 2, 61, 61],
					"relative_humidity_2m": [80, 75, 70, 65],
					"apparent_temperature": [9.0, 11.5, 13.8, 15.2],
					"windspeed_10m": [5.0, 6.2, 7.4, 8.1]
				}
			}`)
		}))
		defer server.Close()

		srv := NewOpenMeteoService()
		srv.forecastURL = server.URL
		srv.archiveURL = server.URL

		at := time.Date(2024, 5, 10, 8, 20, 0, 0, time.UTC)
		snap, err := srv.SnapshotAt(context.Background(), 52.52, 13.40, at)
		if err != nil {
			t.Fatalf("SnapshotAt returned error: %v", err)
		}
		if snap == nil {
			t.Fatal("expected a snapshot, got nil")
		}
		if snap.TemperatureC != 14.6 {
			t.Errorf("TemperatureC = %v, want 14.6 (08:00 reading)", snap.TemperatureC)
		}
		if snap.PrecipitationMM != 0.2 {
			t.Errorf("PrecipitationMM = %v, want 0.2", snap.PrecipitationMM)
		}
		if snap.WeatherCode != 61 {
			t.Errorf("WeatherCode = %v, want 61", snap.WeatherCode)
		}
		if snap.HumidityPct != 70 {
			t.Errorf("HumidityPct = %v, want 70", snap.HumidityPct)
		}
		if snap.FeelsLikeC != 13.8 {
			t.Errorf("FeelsLikeC = %v, want 13.8", snap.FeelsLikeC)
		}
		if snap.WindSpeedKmh != 7.4 {
			t.Errorf("WindSpeedKmh = %v, want 7.4", snap.WindSpeedKmh)
		}
	})

	t.Run("Missing Hourly Data", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"hourly": {"time": []}}`)
		}))
		defer server.Close()

		srv := NewOpenMeteoService()
		srv.forecastURL = server.URL
		srv.archiveURL = server.URL

		snap, err := srv.SnapshotAt(context.Background(), 52.52, 13.40, time.Now())
		if err != nil {
			t.Fatalf("expected no error for a day without data, got %v", err)
		}
		if snap != nil {
			t.Errorf("expected nil snapshot, got %+v", snap)
		}
	})

	t.Run("Server Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		srv := NewOpenMeteoService()
		srv.forecastURL = server.URL
		srv.archiveURL = server.URL

		_, err := srv.SnapshotAt(context.Background(), 52.52, 13.40, time.Now())
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})
}

func TestNearestHour(t *testing.T) {
	times := []string{"2024-05-10T06:00", "2024-05-10T07:00", "2024-05-10T08:00", "2024-05-10T09:00"}

	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{"exact hour", time.Date(2024, 5, 10, 7, 0, 0, 0, time.UTC), 1},
		{"rounds down", time.Date(2024, 5, 10, 8, 20, 0, 0, time.UTC), 2},
		{"rounds up", time.Date(2024, 5, 10, 7, 45, 0, 0, time.UTC), 2},
		{"tie keeps earlier hour", time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC), 2},
		{"before range clamps to first", time.Date(2024, 5, 10, 2, 0, 0, 0, time.UTC), 0},
		{"after range clamps to last", time.Date(2024, 5, 10, 23, 0, 0, 0, time.UTC), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nearestHour(times, tt.at)
			if err != nil {
				t.Fatalf("nearestHour returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("nearestHour = %d, want %d", got, tt.want)
			}
		})
	}

	t.Run("ignores zone offset of the run time", func(t *testing.T) {
		// hourly timestamps are local wall-clock; a run parsed in another
		// zone must be compared on its own wall-clock reading
		zone := time.FixedZone("UTC+2", 2*60*60)
		at := time.Date(2024, 5, 10, 8, 10, 0, 0, zone)
		got, err := nearestHour(times, at)
		if err != nil {
			t.Fatalf("nearestHour returned error: %v", err)
		}
		if got != 2 {
			t.Errorf("nearestHour = %d, want 2 (08:00 wall clock)", got)
		}
	})

	t.Run("invalid timestamp", func(t *testing.T) {
		_, err := nearestHour([]string{"not-a-time"}, time.Now())
		if err == nil {
			t.Error("expected error for malformed timestamp")
		}
	})
}

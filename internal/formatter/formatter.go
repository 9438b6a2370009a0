// package formatter exports run history, engineered features, playlist
// snapshots, and activity streams to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/services"
)

// ExportRunsCSV converts run records to CSV with columns:
// ID, Name, StartTime, DistanceKm, PaceMinKm, AvgHR, ElevationGainM, TempC
func ExportRunsCSV(runs []models.RunRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "StartTime", "DistanceKm", "PaceMinKm", "AvgHR", "ElevationGainM", "TempC"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, run := range runs {
		record := []string{
			strconv.FormatInt(run.ID, 10),
			run.Name,
			run.StartTime.Format(time.RFC3339),
			formatFloat(run.DistanceKm()),
			formatFloat(run.PaceMinKm()),
			formatFloat(run.AvgHeartRate),
			formatFloat(run.ElevationGainM),
			formatFloat(run.TemperatureC()),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportFeaturesCSV converts engineered feature sets to CSV in the same column
// order the model artifact was trained on, prefixed with run identity.
func ExportFeaturesCSV(sets []models.FeatureSet) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{
		"RunID", "Name", "StartTime",
		"DistanceKm", "AvgPaceMinKm", "TempC", "Precipitation", "WindSpeedKmh",
		"Humidity", "ElevationGainM", "PaceConsistency", "WeeklyMileageKm",
		"TimeOfDay", "TempBin", "RunLengthBin", "RunType", "TargetBPM",
	}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, fs := range sets {
		record := []string{
			strconv.FormatInt(fs.RunID, 10),
			fs.Name,
			fs.StartTime.Format(time.RFC3339),
			formatFloat(fs.DistanceKm),
			formatFloat(fs.AvgPaceMinKm),
			formatFloat(fs.Temperature()),
			formatFloat(fs.PrecipitationMM),
			formatFloat(fs.WindSpeedKmh),
			formatFloat(fs.HumidityPct),
			formatFloat(fs.ElevationGainM),
			formatFloat(fs.PaceConsistency),
			formatFloat(fs.WeeklyMileageKm),
			string(fs.TimeOfDay),
			string(fs.TempBin),
			string(fs.RunLengthBin),
			string(fs.RunType),
			strconv.Itoa(fs.TargetBPM),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportRunsMarkdown renders the run history as a Markdown table.
func ExportRunsMarkdown(runs []models.RunRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Run History\n\n")
	buf.WriteString(fmt.Sprintf("**Runs**: %d\n\n", len(runs)))
	buf.WriteString("| # | Name | Date | Distance | Pace | Elevation |\n")
	buf.WriteString("|---|------|------|----------|------|-----------|\n")

	for i, run := range runs {
		buf.WriteString(fmt.Sprintf("| %d | %s | %s | %.1f km | %s/km | %.0f m |\n",
			i+1, run.Name, run.StartTime.Format("2006-01-02"),
			run.DistanceKm(), paceString(run.PaceMinKm()), run.ElevationGainM))
	}
	return buf.Bytes(), nil
}

// ExportRunsText converts the run history to plain text, one run per line.
func ExportRunsText(runs []models.RunRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Runs: %d\n\n", len(runs)))
	for i, run := range runs {
		buf.WriteString(fmt.Sprintf("%d. %s • %.1f km @ %s/km (%s)\n",
			i+1, run.Name, run.DistanceKm(), paceString(run.PaceMinKm()),
			run.StartTime.Format("2006-01-02 15:04")))
	}
	return buf.Bytes(), nil
}

// ExportPlaylistText renders the latest-playlist snapshot as plain text.
func ExportPlaylistText(meta models.PlaylistMetadata) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", meta.Title))
	if meta.Description != "" {
		buf.WriteString(fmt.Sprintf("Description: %s\n", meta.Description))
	}
	buf.WriteString(fmt.Sprintf("URL: %s\n", meta.URL))
	buf.WriteString(fmt.Sprintf("Strategy: %s\n", meta.Strategy))
	buf.WriteString(fmt.Sprintf("Target: %d BPM, energy %.2f, valence %.2f\n",
		meta.Target.Tempo, meta.Target.Energy, meta.Target.Valence))
	buf.WriteString(fmt.Sprintf("Tracks: %d\n", meta.TrackCount))
	buf.WriteString(fmt.Sprintf("Created: %s\n", meta.CreatedAt.Format(time.RFC3339)))
	return buf.Bytes(), nil
}

// ExportStreamsCSV converts per-sample activity streams to CSV, one row per
// sample. Streams the tracker did not record render as empty cells.
func ExportStreamsCSV(streams *services.ActivityStreams) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"TimeS", "Lat", "Lon", "AltitudeM", "HeartRate", "VelocityMS", "Cadence"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	n := streams.Samples()
	for i := 0; i < n; i++ {
		record := []string{
			intCell(streams.Time, i),
			latCell(streams.LatLng, i, 0),
			latCell(streams.LatLng, i, 1),
			floatCell(streams.Altitude, i),
			intCell(streams.HeartRate, i),
			floatCell(streams.Velocity, i),
			intCell(streams.Cadence, i),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteRunsCSV writes the run history CSV to path.
func WriteRunsCSV(runs []models.RunRecord, path string) error {
	data, err := ExportRunsCSV(runs)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// WriteFeaturesCSV writes the engineered features CSV to path.
func WriteFeaturesCSV(sets []models.FeatureSet, path string) error {
	data, err := ExportFeaturesCSV(sets)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// WriteRunsMarkdown writes the run history Markdown to path.
func WriteRunsMarkdown(runs []models.RunRecord, path string) error {
	data, err := ExportRunsMarkdown(runs)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// WriteStreamsCSV writes the activity streams CSV to path.
func WriteStreamsCSV(streams *services.ActivityStreams, path string) error {
	data, err := ExportStreamsCSV(streams)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// formatFloat renders a float with two decimals; zero and NaN (both meaning
// "no data" for the exported fields) render as empty cells.
func formatFloat(v float64) string {
	if v == 0 || math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func paceString(pace float64) string {
	if pace <= 0 {
		return "-:--"
	}
	minutes := int(pace)
	seconds := int(math.Round((pace - float64(minutes)) * 60))
	if seconds == 60 {
		minutes++
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

func intCell(xs []int, i int) string {
	if i >= len(xs) {
		return ""
	}
	return strconv.Itoa(xs[i])
}

func floatCell(xs []float64, i int) string {
	if i >= len(xs) {
		return ""
	}
	return strconv.FormatFloat(xs[i], 'f', 2, 64)
}

func latCell(xs [][2]float64, i, coord int) string {
	if i >= len(xs) {
		return ""
	}
	return strconv.FormatFloat(xs[i][coord], 'f', 6, 64)
}

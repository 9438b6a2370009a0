package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

func testRun(id int64, name string, start time.Time, distanceM, speedMS float64) models.RunRecord {
	return models.RunRecord{
		ID:         id,
		Name:       name,
		StartTime:  start,
		Lat:        52.52,
		Lon:        13.40,
		DistanceM:  distanceM,
		AvgSpeedMS: speedMS,
	}
}

func TestMapPaceToBPM(t *testing.T) {
	d := NewDeriver(DefaultDeriverConfig())

	tests := []struct {
		name string
		pace float64
		want int
	}{
		{"very fast pace", 3.5, 185},
		{"lowest band lower bound", 4.0, 180},
		{"just inside lowest band", 4.49, 180},
		{"boundary goes to next band", 4.5, 170},
		{"mid band", 5.2, 165},
		{"band boundary 5.5", 5.5, 160},
		{"band boundary 6.0", 6.0, 150},
		{"band boundary 7.0", 7.0, 140},
		{"just below highest bound", 7.99, 140},
		{"highest bound exclusive", 8.0, 135},
		{"very slow pace", 12.0, 135},
		{"missing pace", 0, 185},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.MapPaceToBPM(tt.pace); got != tt.want {
				t.Errorf("MapPaceToBPM(%v) = %d, want %d", tt.pace, got, tt.want)
			}
		})
	}

	t.Run("non-increasing across increasing paces", func(t *testing.T) {
		prev := math.MaxInt
		for pace := 3.0; pace <= 9.0; pace += 0.25 {
			bpm := d.MapPaceToBPM(pace)
			if bpm > prev {
				t.Errorf("BPM rose from %d to %d at pace %v", prev, bpm, pace)
			}
			prev = bpm
		}
	})
}

func TestTempBinFor(t *testing.T) {
	d := NewDeriver(DefaultDeriverConfig())

	tests := []struct {
		name string
		temp float64
		want models.TempBin
	}{
		{"below freezing", -5, models.TempVeryCold},
		{"freezing boundary", 0, models.TempCold},
		{"just under mild", 9.9, models.TempCold},
		{"mild boundary", 10, models.TempMild},
		{"warm boundary", 20, models.TempWarm},
		{"hot boundary", 30, models.TempHot},
		{"scorching", 45, models.TempHot},
		{"missing reading", math.NaN(), models.TempUnknown},
		{"out of band high", 150, models.TempUnknown},
		{"out of band low", -150, models.TempUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.TempBinFor(tt.temp); got != tt.want {
				t.Errorf("TempBinFor(%v) = %q, want %q", tt.temp, got, tt.want)
			}
		})
	}
}

func TestLengthBinFor(t *testing.T) {
	d := NewDeriver(DefaultDeriverConfig())

	tests := []struct {
		name      string
		distanceM float64
		want      models.LengthBin
	}{
		{"just under 5k", 4999, models.LengthShort},
		{"exactly 5k", 5000, models.LengthMedium},
		{"just under 10k", 9999, models.LengthMedium},
		{"exactly 10k", 10000, models.LengthLong},
		{"just under 15k", 14999, models.LengthLong},
		{"exactly 15k", 15000, models.LengthVeryLong},
		{"marathon", 42195, models.LengthVeryLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.LengthBinFor(tt.distanceM); got != tt.want {
				t.Errorf("LengthBinFor(%v) = %q, want %q", tt.distanceM, got, tt.want)
			}
		})
	}
}

func TestTimeOfDayFor(t *testing.T) {
	d := NewDeriver(DefaultDeriverConfig())

	tests := []struct {
		hour int
		want models.TimeOfDay
	}{
		{5, models.Morning},
		{11, models.Morning},
		{12, models.Afternoon},
		{16, models.Afternoon},
		{17, models.Evening},
		{20, models.Evening},
		{21, models.Night},
		{23, models.Night},
		{0, models.Night},
		{4, models.Night},
	}

	for _, tt := range tests {
		start := time.Date(2024, 5, 10, tt.hour, 30, 0, 0, time.UTC)
		if got := d.TimeOfDayFor(start); got != tt.want {
			t.Errorf("TimeOfDayFor(hour %d) = %q, want %q", tt.hour, got, tt.want)
		}
	}
}

func TestDetectRunType(t *testing.T) {
	d := NewDeriver(DefaultDeriverConfig())

	tests := []struct {
		name       string
		runName    string
		pace       float64
		distanceKm float64
		want       models.RunType
	}{
		{"interval keyword", "Morning Interval Session", 6.0, 8, models.RunInterval},
		{"interval keyword 400m", "6x400m", 4.8, 6, models.RunInterval},
		{"tempo keyword", "Tempo Tuesday", 6.0, 8, models.RunTempo},
		{"marathon pace keyword", "Marathon Pace Workout", 6.0, 10, models.RunTempo},
		{"easy keyword", "easy shakeout", 6.0, 5, models.RunEasy},
		{"race keyword", "Race Day 10k", 6.0, 10, models.RunRace},
		{"keyword beats long distance", "Easy Sunday", 6.0, 20, models.RunEasy},
		{"keyword is case insensitive", "INTERVAL REPEATS", 6.0, 8, models.RunInterval},
		{"long distance", "Sunday outing", 6.0, 16, models.RunLong},
		{"race pace", "Lunch outing", 4.2, 5, models.RunRace},
		{"tempo pace", "Lunch outing", 4.8, 8, models.RunTempo},
		{"easy pace", "Lunch outing", 7.0, 5, models.RunEasy},
		{"steady default", "Lunch outing", 5.5, 8, models.RunSteady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.DetectRunType(tt.runName, tt.pace, tt.distanceKm)
			if got != tt.want {
				t.Errorf("DetectRunType(%q, %v, %v) = %q, want %q", tt.runName, tt.pace, tt.distanceKm, got, tt.want)
			}
		})
	}
}

func TestWeeklyMileageKm(t *testing.T) {
	d := NewDeriver(DefaultDeriverConfig())
	at := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

	history := []models.RunRecord{
		testRun(1, "current", at, 10000, 2.8),
		testRun(2, "two days ago", at.AddDate(0, 0, -2), 8000, 2.8),
		testRun(3, "six days ago", at.AddDate(0, 0, -6), 5000, 2.8),
		testRun(4, "exactly seven days ago", at.AddDate(0, 0, -7), 12000, 2.8),
		testRun(5, "eight days ago", at.AddDate(0, 0, -8), 9000, 2.8),
	}

	got := d.WeeklyMileageKm(history, at)
	// The lower bound is inclusive, so the exactly-seven-days run counts.
	// The run at `at` itself and anything older than the window do not.
	if got != 25 {
		t.Errorf("WeeklyMileageKm = %v, want 25", got)
	}

	t.Run("empty history", func(t *testing.T) {
		if got := d.WeeklyMileageKm(nil, at); got != 0 {
			t.Errorf("WeeklyMileageKm(nil) = %v, want 0", got)
		}
	})
}

func TestPaceConsistency(t *testing.T) {
	d := NewDeriver(DefaultDeriverConfig())
	at := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

	// 1000/speed/60 gives pace; speed 10/3 = 5.0 min/km, 1000/360 wait:
	// speed m/s for pace p min/km is 1000/(p*60).
	speedFor := func(pace float64) float64 { return 1000.0 / (pace * 60.0) }

	t.Run("known stdev of two paces", func(t *testing.T) {
		history := []models.RunRecord{
			testRun(1, "a", at.AddDate(0, 0, -1), 8000, speedFor(5.0)),
			testRun(2, "b", at.AddDate(0, 0, -2), 8000, speedFor(6.0)),
		}
		got := d.PaceConsistency(history, at)
		want := math.Sqrt(0.5) // sample stdev of {5, 6}
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("PaceConsistency = %v, want %v", got, want)
		}
	})

	t.Run("fewer than two samples", func(t *testing.T) {
		history := []models.RunRecord{
			testRun(1, "only", at.AddDate(0, 0, -1), 8000, speedFor(5.0)),
		}
		if got := d.PaceConsistency(history, at); got != 0 {
			t.Errorf("PaceConsistency = %v, want 0", got)
		}
	})

	t.Run("window cut before pace filter", func(t *testing.T) {
		// Five most recent priors all have missing pace; the two older
		// valid runs fall outside the window, so no stdev is computed.
		history := make([]models.RunRecord, 0, 7)
		for i := 1; i <= 5; i++ {
			history = append(history, testRun(int64(i), "no pace", at.AddDate(0, 0, -i), 8000, 0))
		}
		history = append(history,
			testRun(6, "old a", at.AddDate(0, 0, -6), 8000, speedFor(5.0)),
			testRun(7, "old b", at.AddDate(0, 0, -7), 8000, speedFor(6.0)),
		)
		if got := d.PaceConsistency(history, at); got != 0 {
			t.Errorf("PaceConsistency = %v, want 0 when window has no valid paces", got)
		}
	})

	t.Run("runs at or after the reference are ignored", func(t *testing.T) {
		history := []models.RunRecord{
			testRun(1, "future", at.AddDate(0, 0, 1), 8000, speedFor(3.0)),
			testRun(2, "now", at, 8000, speedFor(3.2)),
			testRun(3, "a", at.AddDate(0, 0, -1), 8000, speedFor(5.0)),
			testRun(4, "b", at.AddDate(0, 0, -2), 8000, speedFor(6.0)),
		}
		got := d.PaceConsistency(history, at)
		want := math.Sqrt(0.5)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("PaceConsistency = %v, want %v", got, want)
		}
	})
}

func TestDerive(t *testing.T) {
	d := NewDeriver(DefaultDeriverConfig())
	at := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

	run := testRun(42, "Tempo Tuesday", at, 10000, 1000.0/(4.8*60.0))
	run.ElevationGainM = 85.34
	run.AvgHeartRate = 152
	run.Weather = &models.WeatherSnapshot{
		TemperatureC:    18.4,
		PrecipitationMM: 0.2,
		HumidityPct:     61,
		FeelsLikeC:      17.9,
		WindSpeedKmh:    12.5,
	}
	history := []models.RunRecord{
		run,
		testRun(41, "easy", at.AddDate(0, 0, -2), 6000, 1000.0/(6.2*60.0)),
		testRun(40, "steady", at.AddDate(0, 0, -4), 8000, 1000.0/(5.8*60.0)),
	}

	fs, err := d.Derive(run, history)
	if err != nil {
		t.Fatalf("Derive returned error: %v", err)
	}

	if fs.RunID != 42 || fs.Name != "Tempo Tuesday" {
		t.Errorf("identifiers not carried over: %+v", fs)
	}
	if fs.DistanceKm != 10 {
		t.Errorf("DistanceKm = %v, want 10", fs.DistanceKm)
	}
	if fs.AvgPaceMinKm != 4.8 {
		t.Errorf("AvgPaceMinKm = %v, want 4.8", fs.AvgPaceMinKm)
	}
	if fs.ElevationGainM != 85.3 {
		t.Errorf("ElevationGainM = %v, want 85.3", fs.ElevationGainM)
	}
	if fs.RunType != models.RunTempo {
		t.Errorf("RunType = %q, want tempo", fs.RunType)
	}
	if fs.TempBin != models.TempMild {
		t.Errorf("TempBin = %q, want Mild", fs.TempBin)
	}
	if fs.TimeOfDay != models.Morning {
		t.Errorf("TimeOfDay = %q, want Morning", fs.TimeOfDay)
	}
	if fs.RunLengthBin != models.LengthLong {
		t.Errorf("RunLengthBin = %q, want Long", fs.RunLengthBin)
	}
	if fs.TargetBPM != 170 {
		t.Errorf("TargetBPM = %d, want 170", fs.TargetBPM)
	}
	if fs.TempC == nil || *fs.TempC != 18.4 {
		t.Errorf("TempC = %v, want 18.4", fs.TempC)
	}
	if fs.WeeklyMileageKm != 14 {
		t.Errorf("WeeklyMileageKm = %v, want 14", fs.WeeklyMileageKm)
	}
	if fs.PaceConsistency == 0 {
		t.Error("PaceConsistency should be derived from the two prior runs")
	}

	t.Run("no weather leaves temperature unknown", func(t *testing.T) {
		bare := testRun(43, "Lunch outing", at, 4000, 1000.0/(5.5*60.0))
		fs, err := d.Derive(bare, nil)
		if err != nil {
			t.Fatalf("Derive returned error: %v", err)
		}
		if fs.TempC != nil {
			t.Errorf("TempC = %v, want nil", *fs.TempC)
		}
		if fs.TempBin != models.TempUnknown {
			t.Errorf("TempBin = %q, want Unknown", fs.TempBin)
		}
	})

	t.Run("unordered history is rejected", func(t *testing.T) {
		bad := []models.RunRecord{
			testRun(1, "older", at.AddDate(0, 0, -5), 5000, 2.8),
			testRun(2, "newer", at, 5000, 2.8),
		}
		if _, err := d.Derive(run, bad); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for unordered history, got %v", err)
		}
	})

	t.Run("invalid run is rejected", func(t *testing.T) {
		if _, err := d.Derive(models.RunRecord{}, nil); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for empty run, got %v", err)
		}
	})
}

func TestDeriveAll(t *testing.T) {
	d := NewDeriver(DefaultDeriverConfig())
	at := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

	history := []models.RunRecord{
		testRun(3, "newest", at, 8000, 2.8),
		testRun(2, "middle", at.AddDate(0, 0, -3), 8000, 2.9),
		testRun(1, "oldest", at.AddDate(0, 0, -6), 8000, 3.0),
	}

	sets, err := d.DeriveAll(history)
	if err != nil {
		t.Fatalf("DeriveAll returned error: %v", err)
	}
	if len(sets) != 3 {
		t.Fatalf("expected 3 feature sets, got %d", len(sets))
	}
	if sets[0].RunID != 3 || sets[2].RunID != 1 {
		t.Errorf("feature sets out of order: %d, %d", sets[0].RunID, sets[2].RunID)
	}
	// The newest run sees both priors in its weekly window; the oldest sees none.
	if sets[0].WeeklyMileageKm != 16 {
		t.Errorf("newest WeeklyMileageKm = %v, want 16", sets[0].WeeklyMileageKm)
	}
	if sets[2].WeeklyMileageKm != 0 {
		t.Errorf("oldest WeeklyMileageKm = %v, want 0", sets[2].WeeklyMileageKm)
	}
}

func TestSortAndValidateHistory(t *testing.T) {
	at := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	history := []models.RunRecord{
		testRun(1, "oldest", at.AddDate(0, 0, -6), 8000, 2.8),
		testRun(3, "newest", at, 8000, 2.8),
		testRun(2, "middle", at.AddDate(0, 0, -3), 8000, 2.8),
	}

	if err := ValidateHistoryOrder(history); err == nil {
		t.Error("expected unordered history to fail validation")
	}

	SortHistory(history)
	if err := ValidateHistoryOrder(history); err != nil {
		t.Errorf("sorted history failed validation: %v", err)
	}
	if history[0].ID != 3 || history[2].ID != 1 {
		t.Errorf("SortHistory order wrong: %d, %d, %d", history[0].ID, history[1].ID, history[2].ID)
	}

	t.Run("ties are allowed", func(t *testing.T) {
		tied := []models.RunRecord{
			testRun(1, "a", at, 8000, 2.8),
			testRun(2, "b", at, 8000, 2.8),
		}
		if err := ValidateHistoryOrder(tied); err != nil {
			t.Errorf("tied timestamps should validate: %v", err)
		}
	})
}

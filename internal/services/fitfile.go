// FIT activity file import
//
// Watches export .fit activity files; this reads the first running session
// into a run record so runs can enter the cache without the tracker API.
package services

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/tormoder/fit"
)

// ImportFITFile reads a .fit file from disk and decodes its running session.
func ImportFITFile(path string) (models.RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.RunRecord{}, fmt.Errorf("failed to read fit file: %w", err)
	}
	return DecodeFIT(data)
}

// DecodeFIT converts raw FIT bytes into a run record. Files without a
// running session are rejected. The record's ID is synthesized from the
// session start time, since FIT files carry no tracker activity ID.
func DecodeFIT(data []byte) (models.RunRecord, error) {
	fitFile, err := fit.Decode(bytes.NewReader(data))
	if err != nil {
		return models.RunRecord{}, fmt.Errorf("%w: not a valid fit file: %v", shared.ErrInvalidInput, err)
	}

	activity, err := fitFile.Activity()
	if err != nil {
		return models.RunRecord{}, fmt.Errorf("%w: not an activity file: %v", shared.ErrInvalidInput, err)
	}

	var session *fit.SessionMsg
	for _, s := range activity.Sessions {
		if s.Sport == fit.SportRunning {
			session = s
			break
		}
	}
	if session == nil {
		return models.RunRecord{}, fmt.Errorf("%w: no running session in fit file", shared.ErrInvalidInput)
	}

	start := session.StartTime
	run := models.RunRecord{
		ID:        start.Unix(),
		Name:      "Run " + start.Format("2006-01-02"),
		StartTime: start,
	}

	if d := session.GetTotalDistanceScaled(); !math.IsNaN(d) {
		run.DistanceM = d
	}

	speed := session.GetAvgSpeedScaled()
	if math.IsNaN(speed) || speed <= 0 {
		// fall back to distance over timer time, like the tracker does
		if t := session.GetTotalTimerTimeScaled(); !math.IsNaN(t) && t > 0 && run.DistanceM > 0 {
			speed = run.DistanceM / t
		} else {
			speed = 0
		}
	}
	run.AvgSpeedMS = speed

	if lat := session.StartPositionLat.Degrees(); !math.IsNaN(lat) {
		run.Lat = lat
	}
	if lon := session.StartPositionLong.Degrees(); !math.IsNaN(lon) {
		run.Lon = lon
	}

	// value fields use all-ones invalid sentinels
	if session.AvgHeartRate != 0xFF {
		run.AvgHeartRate = float64(session.AvgHeartRate)
	}
	if session.AvgCadence != 0xFF {
		run.AvgCadence = float64(session.AvgCadence)
	}
	if session.TotalAscent != 0xFFFF {
		run.ElevationGainM = float64(session.TotalAscent)
	}

	if err := run.Validate(); err != nil {
		return models.RunRecord{}, fmt.Errorf("%w: fit session incomplete: %v", shared.ErrInvalidInput, err)
	}
	return run, nil
}

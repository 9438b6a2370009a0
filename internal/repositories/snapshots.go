package repositories

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

// Snapshot filenames inside the data directory.
const (
	runsSnapshotFile     = "runs.json"
	featuresSnapshotFile = "features.json"
	playlistSnapshotFile = "playlist.json"
)

// SnapshotStore persists the three JSON snapshots that make up the local
// state: the raw run history, the engineered features, and the latest
// playlist. Every write replaces its snapshot wholesale; reads of a snapshot
// that was never written return [shared.ErrMissingSnapshot].
type SnapshotStore struct {
	dir string
}

// NewSnapshotStore creates a SnapshotStore rooted at dir, creating the
// directory when needed.
func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: snapshot directory not set", shared.ErrInvalidConfig)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &SnapshotStore{dir: dir}, nil
}

// Dir returns the snapshot directory.
func (s *SnapshotStore) Dir() string { return s.dir }

// SaveRuns writes the run-history snapshot.
func (s *SnapshotStore) SaveRuns(runs []models.RunRecord) error {
	return s.write(runsSnapshotFile, runs)
}

// LoadRuns reads the run-history snapshot, newest first as written by sync.
func (s *SnapshotStore) LoadRuns() ([]models.RunRecord, error) {
	var runs []models.RunRecord
	if err := s.read(runsSnapshotFile, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// SaveFeatures writes the engineered-features snapshot.
func (s *SnapshotStore) SaveFeatures(sets []models.FeatureSet) error {
	return s.write(featuresSnapshotFile, sets)
}

// LoadFeatures reads the engineered-features snapshot.
func (s *SnapshotStore) LoadFeatures() ([]models.FeatureSet, error) {
	var sets []models.FeatureSet
	if err := s.read(featuresSnapshotFile, &sets); err != nil {
		return nil, err
	}
	return sets, nil
}

// SaveLatestPlaylist writes the latest-playlist snapshot.
func (s *SnapshotStore) SaveLatestPlaylist(meta models.PlaylistMetadata) error {
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return s.write(playlistSnapshotFile, meta)
}

// LoadLatestPlaylist reads the latest-playlist snapshot.
func (s *SnapshotStore) LoadLatestPlaylist() (*models.PlaylistMetadata, error) {
	var meta models.PlaylistMetadata
	if err := s.read(playlistSnapshotFile, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// write marshals v and replaces the named snapshot atomically via a temp file
// rename, so a crash mid-write never leaves a torn snapshot.
func (s *SnapshotStore) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

func (s *SnapshotStore) read(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s (run a sync first)", shared.ErrMissingSnapshot, name)
		}
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

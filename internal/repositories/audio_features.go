package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/cadence/internal/models"
)

// AudioFeatureRepository caches per-track audio attributes so repeat
// generations skip refetching. It satisfies the generation pipeline's cache
// interface; misses simply come back absent from the returned map.
type AudioFeatureRepository struct {
	db *sql.DB
}

// NewAudioFeatureRepository creates an AudioFeatureRepository over the given
// database connection.
func NewAudioFeatureRepository(db *sql.DB) *AudioFeatureRepository {
	return &AudioFeatureRepository{db: db}
}

// Cached returns the features known for the given track IDs, keyed by ID.
func (r *AudioFeatureRepository) Cached(trackIDs []string) (map[string]models.AudioFeatures, error) {
	found := make(map[string]models.AudioFeatures, len(trackIDs))
	if len(trackIDs) == 0 {
		return found, nil
	}

	// SQLite caps bound parameters; chunk the lookup to stay well under it.
	const chunkSize = 500
	for i := 0; i < len(trackIDs); i += chunkSize {
		end := i + chunkSize
		if end > len(trackIDs) {
			end = len(trackIDs)
		}
		chunk := trackIDs[i:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		query := "SELECT track_id, tempo, energy, valence FROM audio_features WHERE track_id IN (" + placeholders + ")"

		args := make([]any, len(chunk))
		for j, id := range chunk {
			args[j] = id
		}

		rows, err := r.db.Query(query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query audio features: %w", err)
		}
		for rows.Next() {
			var (
				id string
				f  models.AudioFeatures
			)
			if err := rows.Scan(&id, &f.Tempo, &f.Energy, &f.Valence); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan audio features: %w", err)
			}
			found[id] = f
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("row iteration error: %w", err)
		}
		rows.Close()
	}
	return found, nil
}

// Store upserts the given features, keyed by track ID, in one transaction.
func (r *AudioFeatureRepository) Store(features map[string]models.AudioFeatures) error {
	if len(features) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO audio_features (track_id, tempo, energy, valence, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			tempo = excluded.tempo,
			energy = excluded.energy,
			valence = excluded.valence,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for id, f := range features {
		if _, err := stmt.Exec(id, f.Tempo, f.Energy, f.Valence, now); err != nil {
			return fmt.Errorf("failed to store features for %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audio features: %w", err)
	}
	return nil
}

// Count returns the number of cached tracks.
func (r *AudioFeatureRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audio_features").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audio features: %w", err)
	}
	return count, nil
}

// Clear removes every cached entry.
func (r *AudioFeatureRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM audio_features"); err != nil {
		return fmt.Errorf("failed to clear audio features: %w", err)
	}
	return nil
}

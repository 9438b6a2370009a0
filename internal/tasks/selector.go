package tasks

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/desertthunder/cadence/internal/models"
)

// Tolerance is the acceptance window around each target attribute.
type Tolerance struct {
	TempoBPM float64
	Energy   float64
	Valence  float64
}

// SelectorConfig carries the filtering and ordering knobs.
type SelectorConfig struct {
	Strict  Tolerance
	Relaxed Tolerance

	// fewer strict survivors than this triggers the single relaxed retry
	MinSurvivors int
	MaxTracks    int

	// progressive ordering applies to long runs at or past this distance
	ProgressiveKm float64
	WarmupFrac    float64
	FinishFrac    float64

	// admit every annotated candidate without tolerance filtering
	SkipFilter bool
}

// DefaultSelectorConfig returns the canonical tolerances and caps.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		Strict:        Tolerance{TempoBPM: 25, Energy: 0.25, Valence: 0.35},
		Relaxed:       Tolerance{TempoBPM: 40, Energy: 0.4, Valence: 0.5},
		MinSurvivors:  15,
		MaxTracks:     30,
		ProgressiveKm: 12,
		WarmupFrac:    0.2,
		FinishFrac:    0.2,
	}
}

// SelectionStatus tags a selection outcome so callers branch on data rather
// than sentinel errors.
type SelectionStatus int

const (
	SelectionOK SelectionStatus = iota
	SelectionInsufficient
)

func (s SelectionStatus) String() string {
	if s == SelectionInsufficient {
		return "insufficient"
	}
	return "ok"
}

// SelectionOutcome is the tagged result of a selection pass.
//
// Tracks is empty exactly when Status is SelectionInsufficient; an empty
// successful selection is never produced.
type SelectionOutcome struct {
	Status SelectionStatus
	Tracks []models.Track

	// diagnostics for display and logging
	Candidates  int  // annotated candidates considered
	StrictCount int  // survivors of the strict pass
	Relaxed     bool // whether the relaxed retry was used
	Progressive bool // whether progressive ordering was applied
}

// Selector narrows annotated candidates toward a music target: a strict
// tolerance pass, one relaxed retry, random sampling down to the cap, and
// progressive ordering for long runs. The random source is injectable so
// tests can pin the shuffle.
type Selector struct {
	cfg SelectorConfig
	rng *rand.Rand
}

// NewSelector builds a Selector. A nil rng gets a time-seeded source.
func NewSelector(cfg SelectorConfig, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{cfg: cfg, rng: rng}
}

// Select filters candidates against the target and returns the final ordered
// track list. Candidates without attached audio features never pass.
func (s *Selector) Select(candidates []models.Track, target models.MusicTarget, runType models.RunType, distanceKm float64) SelectionOutcome {
	annotated := make([]models.Track, 0, len(candidates))
	for _, t := range candidates {
		if t.Features != nil {
			annotated = append(annotated, t)
		}
	}

	outcome := SelectionOutcome{Candidates: len(annotated)}

	survivors := annotated
	if !s.cfg.SkipFilter {
		survivors = s.filter(annotated, target, s.cfg.Strict)
		outcome.StrictCount = len(survivors)
		if len(survivors) < s.cfg.MinSurvivors {
			survivors = s.filter(annotated, target, s.cfg.Relaxed)
			outcome.Relaxed = true
		}
	} else {
		outcome.StrictCount = len(survivors)
	}

	if len(survivors) == 0 {
		outcome.Status = SelectionInsufficient
		return outcome
	}

	selected := s.sample(survivors, s.cfg.MaxTracks)

	if runType == models.RunLong && distanceKm >= s.cfg.ProgressiveKm {
		selected = s.progressiveOrder(selected)
		outcome.Progressive = true
	} else {
		s.shuffle(selected)
	}

	outcome.Status = SelectionOK
	outcome.Tracks = selected
	return outcome
}

func (s *Selector) filter(tracks []models.Track, target models.MusicTarget, tol Tolerance) []models.Track {
	var kept []models.Track
	for _, t := range tracks {
		f := t.Features
		if math.Abs(f.Tempo-float64(target.Tempo)) <= tol.TempoBPM &&
			math.Abs(f.Energy-target.Energy) <= tol.Energy &&
			math.Abs(f.Valence-target.Valence) <= tol.Valence {
			kept = append(kept, t)
		}
	}
	return kept
}

// sample draws up to n tracks uniformly without replacement.
func (s *Selector) sample(tracks []models.Track, n int) []models.Track {
	if n <= 0 || len(tracks) <= n {
		out := make([]models.Track, len(tracks))
		copy(out, tracks)
		return out
	}
	perm := s.rng.Perm(len(tracks))
	out := make([]models.Track, n)
	for i := 0; i < n; i++ {
		out[i] = tracks[perm[i]]
	}
	return out
}

func (s *Selector) shuffle(tracks []models.Track) {
	s.rng.Shuffle(len(tracks), func(i, j int) {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	})
}

// progressiveOrder partitions the selection into warm-up, main, and finish
// segments for long runs. Warm-up takes the slowest tracks, finish the
// fastest, so intensity rises across the playlist; each segment is shuffled
// internally but the segment order is fixed.
func (s *Selector) progressiveOrder(tracks []models.Track) []models.Track {
	n := len(tracks)
	warmN := int(math.Round(float64(n) * s.cfg.WarmupFrac))
	finishN := int(math.Round(float64(n) * s.cfg.FinishFrac))
	if warmN+finishN >= n {
		s.shuffle(tracks)
		return tracks
	}

	byTempo := make([]models.Track, n)
	copy(byTempo, tracks)
	sortByTempo(byTempo)

	warmup := byTempo[:warmN]
	finish := byTempo[n-finishN:]
	main := byTempo[warmN : n-finishN]

	s.shuffle(warmup)
	s.shuffle(main)
	s.shuffle(finish)

	ordered := make([]models.Track, 0, n)
	ordered = append(ordered, warmup...)
	ordered = append(ordered, main...)
	ordered = append(ordered, finish...)
	return ordered
}

// sortByTempo orders ascending by track tempo, stable on input order.
func sortByTempo(tracks []models.Track) {
	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].Features.Tempo < tracks[j].Features.Tempo
	})
}

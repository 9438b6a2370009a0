package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"golang.org/x/time/rate"
)

// TrackSearcher is the slice of the music service the sourcer needs.
type TrackSearcher interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error)
}

// SourcerConfig carries the query tables and limits for candidate sourcing.
type SourcerConfig struct {
	QueryTemplates map[models.RunType][]string
	DefaultQueries []string // run types without a template entry

	BroadenQuery string // issued once when the merged pool is too small
	MinUnique    int

	PerQueryLimit int
	RateLimit     float64 // searches per second

	// conditional extra queries on pace extremes
	FastPace  float64
	FastQuery string
	SlowPace  float64
	SlowQuery string
}

// DefaultSourcerConfig returns the canonical query tables.
func DefaultSourcerConfig() SourcerConfig {
	return SourcerConfig{
		QueryTemplates: map[models.RunType][]string{
			models.RunInterval: {"high intensity workout", "interval training music", "fast tempo running"},
			models.RunTempo:    {"tempo run playlist", "threshold running", "upbeat workout"},
			models.RunEasy:     {"easy running", "recovery run music", "chill workout"},
			models.RunRace:     {"race day music", "high energy running", "motivation workout"},
			models.RunLong:     {"long run playlist", "endurance running", "steady pace music"},
		},
		DefaultQueries: []string{"running music", "jogging playlist", "workout mix"},
		BroadenQuery:   "running music",
		MinUnique:      15,
		PerQueryLimit:  50,
		RateLimit:      5.0,
		FastPace:       5.0,
		FastQuery:      "fast running music",
		SlowPace:       6.5,
		SlowQuery:      "slow jog playlist",
	}
}

// GenreClause formats a genre preference list into the query suffix, e.g.
// "(pop OR indie OR rap)". Empty input yields an empty clause.
func GenreClause(genres []string) string {
	if len(genres) == 0 {
		return ""
	}
	return "(" + strings.Join(genres, " OR ") + ")"
}

// Sourcer gathers candidate tracks from the search collaborator: a handful
// of run-type-specific queries, merged and deduplicated by track ID, with a
// single broadening pass when the pool comes up short. Searches are paced by
// a rate limiter but remain strictly sequential.
type Sourcer struct {
	search  TrackSearcher
	cfg     SourcerConfig
	genres  string
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewSourcer builds a Sourcer over the given searcher. genres is the
// preferred-genre list appended to every query.
func NewSourcer(search TrackSearcher, cfg SourcerConfig, genres []string, logger *log.Logger) *Sourcer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 5.0
	}
	return &Sourcer{
		search:  search,
		cfg:     cfg,
		genres:  GenreClause(genres),
		limiter: rate.NewLimiter(rate.Limit(limit), 1),
		logger:  logger,
	}
}

// Queries builds the query list for a feature set: the run type's templates
// (or the defaults), plus pace-conditional extras, each suffixed with the
// genre clause. The order is stable because merge order decides which
// duplicate survives.
func (s *Sourcer) Queries(fs models.FeatureSet) []string {
	templates, ok := s.cfg.QueryTemplates[fs.RunType]
	if !ok {
		templates = s.cfg.DefaultQueries
	}

	queries := make([]string, 0, len(templates)+1)
	for _, t := range templates {
		queries = append(queries, s.withGenres(t))
	}

	if fs.AvgPaceMinKm > 0 {
		if fs.AvgPaceMinKm < s.cfg.FastPace {
			queries = append(queries, s.withGenres(s.cfg.FastQuery))
		} else if fs.AvgPaceMinKm > s.cfg.SlowPace {
			queries = append(queries, s.withGenres(s.cfg.SlowQuery))
		}
	}
	return queries
}

// IntentQueries builds the query list for a quick-generation intent.
func (s *Sourcer) IntentQueries(intent models.Intent) []string {
	var templates []string
	switch intent {
	case models.IntentFast:
		templates = s.cfg.QueryTemplates[models.RunRace]
	case models.IntentSlow:
		templates = s.cfg.QueryTemplates[models.RunEasy]
	default:
		templates = s.cfg.DefaultQueries
	}
	if len(templates) == 0 {
		templates = s.cfg.DefaultQueries
	}
	queries := make([]string, 0, len(templates))
	for _, t := range templates {
		queries = append(queries, s.withGenres(t))
	}
	return queries
}

// Source runs the feature set's queries and returns the merged candidates.
func (s *Sourcer) Source(ctx context.Context, prog chan<- ProgressUpdate, fs models.FeatureSet) ([]models.Track, error) {
	return s.SourceQueries(ctx, prog, s.Queries(fs))
}

// SourceQueries issues each query in order, merges results first-seen-wins,
// and broadens once when too few unique tracks came back.
func (s *Sourcer) SourceQueries(ctx context.Context, prog chan<- ProgressUpdate, queries []string) ([]models.Track, error) {
	if s.search == nil {
		return nil, fmt.Errorf("%w: music service not initialized", shared.ErrServiceUnavailable)
	}

	seen := make(map[string]bool)
	var merged []models.Track

	runQuery := func(query string) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		tracks, err := s.search.SearchTracks(ctx, query, s.cfg.PerQueryLimit)
		if err != nil {
			return fmt.Errorf("search %q failed: %w", query, err)
		}
		for _, t := range tracks {
			if t.ID == "" || seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			merged = append(merged, t)
		}
		return nil
	}

	for i, query := range queries {
		sendProgress(prog, sourceQueryUpdate(i+1, len(queries), query))
		if err := runQuery(query); err != nil {
			return nil, err
		}
	}

	if len(merged) < s.cfg.MinUnique && s.cfg.BroadenQuery != "" {
		broadened := s.withGenres(s.cfg.BroadenQuery)
		s.logger.Info("broadening search", "unique", len(merged), "query", broadened)
		sendProgress(prog, sourceQueryUpdate(len(queries)+1, len(queries)+1, broadened))
		if err := runQuery(broadened); err != nil {
			return nil, err
		}
	}

	sendProgress(prog, sourcedUpdate(len(merged)))
	return merged, nil
}

func (s *Sourcer) withGenres(query string) string {
	if s.genres == "" {
		return query
	}
	return query + " " + s.genres
}

package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "albumlog_metadata_lookups_total",
	Help: "Metadata lookups by outcome.",
}, []string{"outcome"})

// Config tunes a Resolver.
type Config struct {
	// Strategies is the search cascade, tried in order. Defaults to
	// StrictStrategies.
	Strategies []Strategy

	// Country scopes StrategyArtistRegion searches.
	Country string
}

// Resolver maps a title and artist to release metadata from one provider.
type Resolver struct {
	provider   Provider
	cache      Cache
	strategies []Strategy
	country    string
}

// NewResolver creates a Resolver. cache may be nil, in which case nothing is
// cached.
func NewResolver(provider Provider, cache Cache, cfg Config) *Resolver {
	strategies := cfg.Strategies
	if len(strategies) == 0 {
		strategies = StrictStrategies
	}

	return &Resolver{
		provider:   provider,
		cache:      cache,
		strategies: strategies,
		country:    cfg.Country,
	}
}

// Resolve looks up metadata for req. A lookup that matches nothing returns a
// Result with Found set to false and no error.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Artist = strings.TrimSpace(req.Artist)
	if req.Title == "" || req.Artist == "" {
		return nil, ErrInvalidRequest
	}

	if res := r.cached(ctx, req); res != nil {
		lookups.WithLabelValues("cache_hit").Inc()
		return res, nil
	}

	res, err := r.resolve(ctx, req)
	switch {
	case err != nil:
		lookups.WithLabelValues("error").Inc()
		return nil, err
	case !res.Found:
		lookups.WithLabelValues("not_found").Inc()
		return res, nil
	}
	lookups.WithLabelValues("found").Inc()

	if req.AlbumID != 0 && r.cache != nil {
		err = r.cache.PutMetadata(ctx, &Record{
			AlbumID:   req.AlbumID,
			ReleaseID: res.ReleaseID,
			CoverURL:  deref(res.CoverURL),
			Year:      deref(res.Resolved.Year),
			Tracks:    res.Tracks,
			Source:    res.Source,
		})
		if err != nil {
			slog.Error("could not cache metadata", "album", req.AlbumID, "error", err)
		}
	}

	return res, nil
}

func (r *Resolver) cached(ctx context.Context, req Request) *Result {
	if req.AlbumID == 0 || r.cache == nil {
		return nil
	}

	rec, err := r.cache.GetMetadata(ctx, req.AlbumID)
	if err != nil {
		slog.Warn("could not read metadata cache", "album", req.AlbumID, "error", err)
		return nil
	}
	if rec == nil {
		return nil
	}

	source := rec.Source
	if source == "" {
		source = r.provider.Name()
	}

	return &Result{
		Found:     true,
		FromCache: true,
		Source:    source,
		ReleaseID: rec.ReleaseID,
		Input:     Names{Title: req.Title, Artist: req.Artist},
		Resolved: Resolved{
			Title:  req.Title,
			Artist: req.Artist,
			Year:   optional(rec.Year),
		},
		Tracks:   nonNil(rec.Tracks),
		CoverURL: optional(rec.CoverURL),
	}
}

func (r *Resolver) resolve(ctx context.Context, req Request) (*Result, error) {
	if err := r.provider.Ready(); err != nil {
		return nil, err
	}

	candidate, ok, err := r.search(ctx, req)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Result{Found: false, Input: Names{Title: req.Title, Artist: req.Artist}}, nil
	}

	release, err := r.provider.Release(ctx, candidate.ID)
	if err != nil {
		if errors.Is(err, ErrConfig) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: release %s: %w", ErrUpstream, candidate.ID, err)
	}

	title := release.Title
	if title == "" {
		title = req.Title
	}
	artist := release.Artist
	if artist == "" {
		artist = req.Artist
	}
	id := release.ID
	if id == "" {
		id = candidate.ID
	}

	return &Result{
		Found:     true,
		Source:    r.provider.Name(),
		ReleaseID: id,
		Input:     Names{Title: req.Title, Artist: req.Artist},
		Resolved: Resolved{
			Title:  title,
			Artist: artist,
			Year:   optional(release.Year),
			Date:   optional(release.Date),
		},
		Tracks:   nonNil(release.Tracks),
		CoverURL: optional(release.CoverURL),
	}, nil
}

// search runs the strategy cascade and stops at the first strategy that
// yields an acceptable candidate.
func (r *Resolver) search(ctx context.Context, req Request) (Candidate, bool, error) {
	for _, strategy := range r.strategies {
		candidates, err := r.provider.Search(ctx, Query{
			Strategy: strategy,
			Title:    req.Title,
			Artist:   req.Artist,
			Country:  r.country,
		})
		if err != nil {
			if errors.Is(err, ErrConfig) {
				return Candidate{}, false, err
			}
			return Candidate{}, false, fmt.Errorf("%w: %s search: %w", ErrUpstream, strategy, err)
		}

		best, score, ok := Best(candidates, req.Title, req.Artist)
		slog.Debug("metadata search",
			"provider", r.provider.Name(),
			"strategy", strategy.String(),
			"candidates", len(candidates),
			"score", score,
		)
		if ok {
			return best, true, nil
		}
	}

	return Candidate{}, false, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNil(tracks []string) []string {
	if tracks == nil {
		return []string{}
	}
	return tracks
}

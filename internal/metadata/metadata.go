// Package metadata resolves album metadata (release year, tracklist and cover
// art) from an external music catalog and caches the result per album.
package metadata

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when a lookup is missing its title or artist.
	ErrInvalidRequest = errors.New("title and artist are required")

	// ErrConfig marks a provider that cannot be queried at all, e.g. because
	// its credentials are missing.
	ErrConfig = errors.New("metadata provider is not configured")

	// ErrUpstream marks a transport failure talking to a provider, or a
	// failed release detail request after a candidate was chosen.
	ErrUpstream = errors.New("metadata provider request failed")
)

// Strategy is one way of asking a provider for release candidates.
type Strategy int

const (
	// StrategyStrict searches with field-qualified title and artist.
	StrategyStrict Strategy = iota
	// StrategyArtistRegion searches by artist only, scoped to a country.
	StrategyArtistRegion
	// StrategyTitle searches by release title only.
	StrategyTitle
	// StrategyFreeText searches for "title artist" as plain terms.
	StrategyFreeText
)

func (s Strategy) String() string {
	switch s {
	case StrategyStrict:
		return "strict"
	case StrategyArtistRegion:
		return "artist-region"
	case StrategyTitle:
		return "title"
	case StrategyFreeText:
		return "free-text"
	}
	return "unknown"
}

var (
	// StrictStrategies is the default cascade: a precise query, then a
	// looser free-text one.
	StrictStrategies = []Strategy{StrategyStrict, StrategyFreeText}

	// ExtendedStrategies additionally tries artist-only and title-only
	// searches before falling back to free text.
	ExtendedStrategies = []Strategy{StrategyStrict, StrategyArtistRegion, StrategyTitle, StrategyFreeText}
)

// ParseStrategies maps a cascade name to its strategies.
func ParseStrategies(name string) ([]Strategy, error) {
	switch name {
	case "", "strict":
		return StrictStrategies, nil
	case "extended":
		return ExtendedStrategies, nil
	}
	return nil, fmt.Errorf("unknown search strategy %q", name)
}

// Query is a single search request sent to a provider.
type Query struct {
	Strategy Strategy
	Title    string
	Artist   string
	Country  string
}

// Candidate is one search hit, before its release detail is fetched.
type Candidate struct {
	ID     string
	Title  string
	Artist string
}

// Release is the normalized detail of a chosen candidate.
type Release struct {
	ID       string
	Title    string
	Artist   string
	Year     string
	Date     string
	Tracks   []string
	CoverURL string
}

// Provider is an external music catalog.
type Provider interface {
	// Name is the source tag stored alongside cached metadata.
	Name() string

	// Ready reports an ErrConfig-wrapped error when the provider cannot be
	// queried.
	Ready() error

	// Search returns candidates for the query. A non-success response is
	// reported as no candidates, not as an error.
	Search(ctx context.Context, q Query) ([]Candidate, error)

	// Release fetches the detail of a candidate.
	Release(ctx context.Context, id string) (*Release, error)
}

// Record is a cached resolution for one album.
type Record struct {
	AlbumID   uint64
	ReleaseID string
	CoverURL  string
	Year      string
	Tracks    []string
	Source    string
}

// Cache persists resolutions keyed by album id.
type Cache interface {
	// GetMetadata returns nil and no error when the album was never resolved.
	GetMetadata(ctx context.Context, albumID uint64) (*Record, error)
	PutMetadata(ctx context.Context, rec *Record) error
}

// Request is a metadata lookup. AlbumID is zero when the lookup is not tied
// to a stored album.
type Request struct {
	AlbumID uint64
	Title   string
	Artist  string
}

type Names struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

type Resolved struct {
	Title  string  `json:"title"`
	Artist string  `json:"artist"`
	Year   *string `json:"year"`
	Date   *string `json:"date"`
}

// Result is the outcome of a lookup. Found is false when no candidate was
// good enough.
type Result struct {
	Found     bool     `json:"found"`
	FromCache bool     `json:"fromCache"`
	Source    string   `json:"source,omitempty"`
	ReleaseID string   `json:"releaseId,omitempty"`
	Input     Names    `json:"input"`
	Resolved  Resolved `json:"resolved"`
	Tracks    []string `json:"tracks"`
	CoverURL  *string  `json:"coverUrl"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

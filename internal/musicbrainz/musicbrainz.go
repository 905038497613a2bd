// Package musicbrainz looks up releases in MusicBrainz and their front
// covers in the Cover Art Archive.
package musicbrainz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"albumlog/internal/metadata"
	"albumlog/internal/upstream"
)

const (
	// BaseURL is the MusicBrainz API base URL.
	BaseURL = "https://musicbrainz.org/ws/2"

	// CoverArtBaseURL is the Cover Art Archive base URL.
	CoverArtBaseURL = "https://coverartarchive.org"

	Name = "musicbrainz"

	limit = "10"
)

type Client struct {
	baseURL     string
	coverArtURL string
	http        *upstream.Client
	coverArt    *upstream.Client
}

// NewClient creates a client. MusicBrainz asks for at most one request per
// second, so hc should be rate limited accordingly. Cover Art Archive
// requests go through coverHC so that its failures never open the circuit
// in front of MusicBrainz.
func NewClient(baseURL, coverArtURL string, hc, coverHC *upstream.Client) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	if coverArtURL == "" {
		coverArtURL = CoverArtBaseURL
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		coverArtURL: strings.TrimRight(coverArtURL, "/"),
		http:        hc,
		coverArt:    coverHC,
	}
}

func (c *Client) Name() string { return Name }

// Ready always succeeds; MusicBrainz needs no credentials.
func (c *Client) Ready() error { return nil }

func (c *Client) Search(ctx context.Context, q metadata.Query) ([]metadata.Candidate, error) {
	query := buildQuery(q)
	if query == "" {
		return nil, nil
	}

	params := url.Values{
		"query": {query},
		"fmt":   {"json"},
		"limit": {limit},
	}

	var resp searchResponse
	err := c.http.GetJSON(ctx, c.baseURL+"/release/?"+params.Encode(), nil, &resp)
	if err != nil {
		var se *upstream.StatusError
		if errors.As(err, &se) {
			slog.Warn("musicbrainz search failed", "status", se.Code, "strategy", q.Strategy.String())
			return nil, nil
		}
		return nil, err
	}

	// Albums first so they win ties against singles and compilations.
	releases := resp.Releases
	sort.SliceStable(releases, func(i, j int) bool {
		return releases[i].isAlbum() && !releases[j].isAlbum()
	})

	candidates := make([]metadata.Candidate, 0, len(releases))
	for _, r := range releases {
		candidates = append(candidates, metadata.Candidate{
			ID:     r.ID,
			Title:  r.Title,
			Artist: firstArtist(r.ArtistCredit),
		})
	}
	return candidates, nil
}

func (c *Client) Release(ctx context.Context, id string) (*metadata.Release, error) {
	params := url.Values{
		"inc": {"recordings artist-credits"},
		"fmt": {"json"},
	}

	var rel release
	err := c.http.GetJSON(ctx, c.baseURL+"/release/"+url.PathEscape(id)+"?"+params.Encode(), nil, &rel)
	if err != nil {
		return nil, fmt.Errorf("musicbrainz release detail: %w", err)
	}

	out := &metadata.Release{
		ID:       rel.ID,
		Title:    rel.Title,
		Artist:   firstArtist(rel.ArtistCredit),
		Date:     rel.Date,
		Tracks:   rel.tracks(),
		CoverURL: c.CoverURL(ctx, id),
	}
	if out.ID == "" {
		out.ID = id
	}
	if len(rel.Date) >= 4 {
		out.Year = rel.Date[:4]
	}

	return out, nil
}

// CoverURL returns the front cover of a release, or the empty string when
// the archive has none or cannot be reached.
func (c *Client) CoverURL(ctx context.Context, id string) string {
	var resp coverArtResponse
	err := c.coverArt.GetJSON(ctx, c.coverArtURL+"/release/"+url.PathEscape(id), nil, &resp)
	if err != nil {
		slog.Warn("cover art lookup failed", "release", id, "error", err)
		return ""
	}
	if len(resp.Images) == 0 {
		return ""
	}

	img := resp.Images[0]
	for _, i := range resp.Images {
		if i.Front {
			img = i
			break
		}
	}
	return img.Image
}

func buildQuery(q metadata.Query) string {
	switch q.Strategy {
	case metadata.StrategyStrict:
		return fmt.Sprintf("release:%s AND artist:%s", quote(q.Title), quote(q.Artist))
	case metadata.StrategyArtistRegion:
		if q.Country == "" {
			return "artist:" + quote(q.Artist)
		}
		return fmt.Sprintf("artist:%s AND country:%s", quote(q.Artist), quote(q.Country))
	case metadata.StrategyTitle:
		return "release:" + quote(q.Title)
	case metadata.StrategyFreeText:
		return q.Title + " " + q.Artist
	}
	return ""
}

// quote makes s a Lucene phrase.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func firstArtist(credits []artistCredit) string {
	if len(credits) == 0 {
		return ""
	}
	if credits[0].Artist.Name != "" {
		return credits[0].Artist.Name
	}
	return credits[0].Name
}

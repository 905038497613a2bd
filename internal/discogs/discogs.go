// Package discogs looks up releases in the Discogs database.
package discogs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"albumlog/internal/metadata"
	"albumlog/internal/upstream"
)

const (
	// BaseURL is the Discogs API base URL.
	BaseURL = "https://api.discogs.com"

	Name = "discogs"

	perPage = "10"
)

type Client struct {
	baseURL string
	token   string
	http    *upstream.Client
}

func NewClient(baseURL, token string, hc *upstream.Client) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    hc,
	}
}

func (c *Client) Name() string { return Name }

func (c *Client) Ready() error {
	if c.token == "" {
		return fmt.Errorf("%w: discogs token is missing", metadata.ErrConfig)
	}
	return nil
}

func (c *Client) Search(ctx context.Context, q metadata.Query) ([]metadata.Candidate, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}

	params := url.Values{
		"type":     {"release"},
		"per_page": {perPage},
	}
	switch q.Strategy {
	case metadata.StrategyStrict:
		params.Set("release_title", q.Title)
		params.Set("artist", q.Artist)
	case metadata.StrategyArtistRegion:
		params.Set("artist", q.Artist)
		if q.Country != "" {
			params.Set("country", q.Country)
		}
	case metadata.StrategyTitle:
		params.Set("release_title", q.Title)
	case metadata.StrategyFreeText:
		params.Set("q", q.Title+" "+q.Artist)
	default:
		return nil, nil
	}

	var resp searchResponse
	err := c.http.GetJSON(ctx, c.baseURL+"/database/search?"+params.Encode(), c.header(), &resp)
	if err != nil {
		var se *upstream.StatusError
		if errors.As(err, &se) {
			slog.Warn("discogs search failed", "status", se.Code, "strategy", q.Strategy.String())
			return nil, nil
		}
		return nil, err
	}

	candidates := make([]metadata.Candidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		candidates = append(candidates, r.candidate())
	}
	return candidates, nil
}

func (c *Client) Release(ctx context.Context, id string) (*metadata.Release, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}

	var rel release
	err := c.http.GetJSON(ctx, c.baseURL+"/releases/"+url.PathEscape(id), c.header(), &rel)
	if err != nil {
		return nil, fmt.Errorf("discogs release detail: %w", err)
	}

	out := &metadata.Release{
		ID:       strconv.FormatInt(rel.ID, 10),
		Title:    rel.Title,
		Date:     rel.Released,
		Tracks:   rel.tracks(),
		CoverURL: rel.coverURL(),
	}
	if rel.ID == 0 {
		out.ID = id
	}
	if rel.Year > 0 {
		out.Year = strconv.Itoa(rel.Year)
	} else if len(rel.Released) >= 4 {
		out.Year = rel.Released[:4]
	}
	if len(rel.Artists) > 0 {
		out.Artist = rel.Artists[0].Name
	}

	return out, nil
}

func (c *Client) header() http.Header {
	return http.Header{"Authorization": {"Discogs token=" + c.token}}
}

package discogs

import (
	"strconv"
	"strings"

	"albumlog/internal/metadata"
)

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Artist  string `json:"artist,omitempty"`
	Country string `json:"country,omitempty"`
	Year    string `json:"year,omitempty"`
}

// candidate splits the "Artist - Title" form Discogs uses for search hits.
func (r searchResult) candidate() metadata.Candidate {
	c := metadata.Candidate{
		ID:     strconv.FormatInt(r.ID, 10),
		Title:  r.Title,
		Artist: r.Artist,
	}
	if c.Artist == "" {
		if artist, title, ok := strings.Cut(r.Title, " - "); ok {
			c.Artist = strings.TrimSpace(artist)
			c.Title = strings.TrimSpace(title)
		}
	}
	return c
}

type release struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title"`
	Year      int      `json:"year"`
	Released  string   `json:"released"`
	Artists   []artist `json:"artists"`
	Tracklist []track  `json:"tracklist"`
	Images    []image  `json:"images"`
}

type artist struct {
	Name string `json:"name"`
}

type track struct {
	Position string `json:"position"`
	Type     string `json:"type_"`
	Title    string `json:"title"`
}

type image struct {
	Type        string `json:"type"`
	URI         string `json:"uri"`
	URIHTTPS    string `json:"uri_https"`
	ResourceURL string `json:"resource_url"`
}

func (r *release) tracks() []string {
	tracks := make([]string, 0, len(r.Tracklist))
	for _, t := range r.Tracklist {
		// Headings name sides or discs, not songs.
		if t.Type == "heading" {
			continue
		}
		if title := strings.TrimSpace(t.Title); title != "" {
			tracks = append(tracks, title)
		}
	}
	return tracks
}

func (r *release) coverURL() string {
	if len(r.Images) == 0 {
		return ""
	}

	img := r.Images[0]
	for _, i := range r.Images {
		if i.Type == "primary" {
			img = i
			break
		}
	}

	switch {
	case img.URIHTTPS != "":
		return img.URIHTTPS
	case img.URI != "":
		return img.URI
	}
	return img.ResourceURL
}

package musicbrainz

import "strings"

type searchResponse struct {
	Count    int       `json:"count"`
	Releases []release `json:"releases"`
}

type release struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Date         string         `json:"date,omitempty"`
	Country      string         `json:"country,omitempty"`
	ArtistCredit []artistCredit `json:"artist-credit,omitempty"`
	ReleaseGroup releaseGroup   `json:"release-group"`
	Media        []medium       `json:"media,omitempty"`
}

func (r *release) isAlbum() bool {
	return r.ReleaseGroup.PrimaryType == "Album"
}

func (r *release) tracks() []string {
	var tracks []string
	for _, m := range r.Media {
		for _, t := range m.Tracks {
			if title := strings.TrimSpace(t.Title); title != "" {
				tracks = append(tracks, title)
			}
		}
	}
	return tracks
}

type releaseGroup struct {
	ID          string `json:"id"`
	PrimaryType string `json:"primary-type,omitempty"`
}

type medium struct {
	Position int     `json:"position"`
	Tracks   []track `json:"tracks,omitempty"`
}

type track struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
}

type artistCredit struct {
	Name   string `json:"name"`
	Artist struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

type coverArtResponse struct {
	Images []struct {
		Image string `json:"image"`
		Front bool   `json:"front"`
	} `json:"images"`
}

package main

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"albumlog/internal/metadata"
)

// tracklistSeparator joins track titles in Album.Tracklist.
const tracklistSeparator = "; "

type newAlbumRequest struct {
	Title  string  `json:"title"`
	Artist string  `json:"artist"`
	Genre  *string `json:"genre"`
	Year   *string `json:"year"`
}

func (s *server) getAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := s.db.GetAlbums(r.Context())
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err)
		return
	}

	s.renderJSON(w, http.StatusOK, map[string]interface{}{
		"albums": albums,
	})
}

func (s *server) getAlbum(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.renderError(w, http.StatusBadRequest, errors.New("album id must be a positive integer"))
		return
	}

	album, err := s.db.GetAlbum(r.Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.renderError(w, http.StatusNotFound, nil)
		return
	} else if err != nil {
		s.renderError(w, http.StatusInternalServerError, err)
		return
	}

	s.renderJSON(w, http.StatusOK, map[string]interface{}{
		"album": album,
	})
}

// postAlbum stores a new album and fills in its cover, year and tracklist
// from the metadata provider. A failed lookup leaves the album as submitted.
func (s *server) postAlbum(w http.ResponseWriter, r *http.Request) {
	var req newAlbumRequest
	err := decodeBody(w, r, &req)
	if err != nil {
		s.renderError(w, http.StatusBadRequest, err)
		return
	}

	title := strings.TrimSpace(req.Title)
	artist := strings.TrimSpace(req.Artist)
	if title == "" || artist == "" {
		s.renderError(w, http.StatusBadRequest, errors.New("title or artist is missing"))
		return
	}

	sequence, err := s.db.NextSequence(r.Context())
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err)
		return
	}

	album := &Album{
		Sequence: sequence,
		Title:    title,
		Artist:   artist,
		Genre:    trimmed(req.Genre),
		Year:     trimmed(req.Year),
	}

	err = s.db.CreateAlbum(r.Context(), album)
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err)
		return
	}

	res, err := s.resolver.Resolve(r.Context(), metadata.Request{
		AlbumID: album.ID,
		Title:   title,
		Artist:  artist,
	})
	if err != nil {
		slog.Warn("could not resolve metadata", "album", album.String(), "error", err)
	}
	if err != nil || !res.Found {
		s.renderJSON(w, http.StatusOK, map[string]interface{}{
			"album":    album,
			"metadata": nil,
		})
		return
	}

	album.CoverURL = res.CoverURL
	if res.Resolved.Year != nil {
		album.Year = res.Resolved.Year
	}
	if len(res.Tracks) > 0 {
		album.Tracklist = optional(strings.Join(res.Tracks, tracklistSeparator))
	}

	err = s.db.UpdateAlbum(r.Context(), album)
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err)
		return
	}

	s.renderJSON(w, http.StatusOK, map[string]interface{}{
		"album":    album,
		"metadata": res,
	})
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	return optional(strings.TrimSpace(*s))
}

package main

import (
	"errors"
	"log/slog"
	"net/http"

	"albumlog/internal/metadata"
)

func (s *server) getMetadata(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	title := query.Get("title")
	artist := query.Get("artist")
	if title == "" || artist == "" {
		s.renderError(w, http.StatusBadRequest, errors.New("missing required query params: title, artist"))
		return
	}

	albumID, err := queryAlbumID(r)
	if err != nil {
		s.renderError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.resolver.Resolve(r.Context(), metadata.Request{
		AlbumID: albumID,
		Title:   title,
		Artist:  artist,
	})
	switch {
	case errors.Is(err, metadata.ErrInvalidRequest):
		s.renderError(w, http.StatusBadRequest, err)
		return
	case errors.Is(err, metadata.ErrConfig):
		slog.Error("metadata provider misconfigured", "error", err)
		s.renderJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":   "CONFIG_ERROR",
			"message": err.Error(),
		})
		return
	case errors.Is(err, metadata.ErrUpstream):
		slog.Error("metadata provider failed", "error", err)
		s.renderJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":   "UPSTREAM_ERROR",
			"message": err.Error(),
		})
		return
	case err != nil:
		slog.Error("metadata lookup failed", "error", err)
		s.renderJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":   "INTERNAL_ERROR",
			"message": err.Error(),
		})
		return
	}

	if !res.Found {
		s.renderJSON(w, http.StatusNotFound, map[string]interface{}{
			"found":   false,
			"reason":  "NO_MATCH",
			"message": "no matching release found",
		})
		return
	}

	s.renderJSON(w, http.StatusOK, res)
}

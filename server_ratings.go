package main

import (
	"errors"
	"net/http"
	"strings"
)

const modeAllForAlbum = "allForAlbum"

type ratingRequest struct {
	AlbumID    albumID  `json:"albumId"`
	ProfileKey string   `json:"profileKey"`
	Score      *float64 `json:"score"`
}

func (s *server) getRatings(w http.ResponseWriter, r *http.Request) {
	id, err := queryAlbumID(r)
	if err != nil {
		s.renderError(w, http.StatusBadRequest, err)
		return
	}

	filter := profileFilter{
		AlbumID:    id,
		ProfileKey: strings.TrimSpace(r.URL.Query().Get("profileKey")),
	}
	if r.URL.Query().Get("mode") == modeAllForAlbum {
		if id == 0 {
			s.renderError(w, http.StatusBadRequest, errors.New("albumId is required"))
			return
		}
		filter.ProfileKey = ""
	}

	ratings, err := s.db.GetRatings(r.Context(), filter)
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err)
		return
	}

	s.renderJSON(w, http.StatusOK, map[string]interface{}{
		"ratings": ratings,
	})
}

func (s *server) postRating(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	err := decodeBody(w, r, &req)
	if err != nil {
		s.renderError(w, http.StatusBadRequest, err)
		return
	}

	profileKey := strings.TrimSpace(req.ProfileKey)
	if req.AlbumID == 0 || profileKey == "" || req.Score == nil {
		s.renderError(w, http.StatusBadRequest, errors.New("albumId, profileKey, score are required"))
		return
	}

	rating, err := s.db.UpsertRating(r.Context(), &Rating{
		AlbumID:    uint64(req.AlbumID),
		ProfileKey: profileKey,
		Score:      *req.Score,
	})
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err)
		return
	}

	s.renderJSON(w, http.StatusOK, map[string]interface{}{
		"rating": rating,
	})
}

func (s *server) deleteRating(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	err := decodeBody(w, r, &req)
	if err != nil {
		s.renderError(w, http.StatusBadRequest, err)
		return
	}

	profileKey := strings.TrimSpace(req.ProfileKey)
	if req.AlbumID == 0 || profileKey == "" {
		s.renderError(w, http.StatusBadRequest, errors.New("albumId and profileKey are required"))
		return
	}

	deleted, err := s.db.DeleteRating(r.Context(), uint64(req.AlbumID), profileKey)
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err)
		return
	}

	s.renderJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": deleted,
	})
}

package main

import (
	"errors"
	"net/http"
	"strings"
)

type noteRequest struct {
	AlbumID    albumID `json:"albumId"`
	ProfileKey string  `json:"profileKey"`
	Content    string  `json:"content"`
}

func (s *server) getNotes(w http.ResponseWriter, r *http.Request) {
	id, err := queryAlbumID(r)
	if err != nil {
		s.renderError(w, http.StatusBadRequest, err)
		return
	}

	notes, err := s.db.GetNotes(r.Context(), profileFilter{
		AlbumID:    id,
		ProfileKey: strings.TrimSpace(r.URL.Query().Get("profileKey")),
	})
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err)
		return
	}

	s.renderJSON(w, http.StatusOK, map[string]interface{}{
		"notes": notes,
	})
}

// postNote saves the whole note on every edit; the client autosaves.
func (s *server) postNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
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

	note, err := s.db.UpsertNote(r.Context(), &Note{
		AlbumID:    uint64(req.AlbumID),
		ProfileKey: profileKey,
		Content:    req.Content,
	})
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err)
		return
	}

	s.renderJSON(w, http.StatusOK, map[string]interface{}{
		"note": note,
	})
}

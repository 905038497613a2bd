package main

import (
	"crypto/subtle"
	"errors"
	"net/http"
)

// mustAuthenticated lets through requests carrying a valid session, either
// as the jwt cookie or a bearer token, or the static API token.
func (s *server) mustAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.hasAPIToken(r) || s.isLoggedIn(r) {
			next.ServeHTTP(w, r)
			return
		}

		s.renderError(w, http.StatusUnauthorized, errors.New("login required"))
	})
}

func (s *server) hasAPIToken(r *http.Request) bool {
	if s.apiToken == "" {
		return false
	}
	got := []byte(r.Header.Get("Authorization"))
	want := []byte("Token " + s.apiToken)
	return subtle.ConstantTimeCompare(got, want) == 1
}

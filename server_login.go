package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionSubject  string = "Album Log Session"
	sessionCookie   string = "jwt"
	sessionLifetime        = time.Hour * 24 * 7
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *server) postLogin(w http.ResponseWriter, r *http.Request) {
	if !s.authEnabled() {
		s.renderError(w, http.StatusNotFound, errors.New("authentication is disabled"))
		return
	}

	var req loginRequest
	err := decodeBody(w, r, &req)
	if err != nil {
		s.renderError(w, http.StatusBadRequest, err)
		return
	}

	correctPassword := bcrypt.CompareHashAndPassword([]byte(s.password), []byte(req.Password)) == nil
	if req.Username != s.username || !correctPassword {
		s.renderError(w, http.StatusUnauthorized, errors.New("invalid credentials"))
		return
	}

	expiration := time.Now().Add(sessionLifetime)

	_, signed, err := s.jwtAuth.Encode(map[string]interface{}{
		jwt.SubjectKey:    sessionSubject,
		jwt.IssuedAtKey:   time.Now().Unix(),
		jwt.ExpirationKey: expiration,
	})
	if err != nil {
		s.renderError(w, http.StatusInternalServerError, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    signed,
		Expires:  expiration,
		Secure:   r.TLS != nil,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})

	s.renderJSON(w, http.StatusOK, map[string]interface{}{
		"token":   signed,
		"expires": expiration.UTC().Format(time.RFC3339),
	})
}

func (s *server) postLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		MaxAge:   -1,
		Secure:   r.TLS != nil,
		Path:     "/",
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) isLoggedIn(r *http.Request) bool {
	token, _, err := jwtauth.FromContext(r.Context())
	if err != nil || token == nil {
		return false
	}

	if subject, _ := token.Subject(); subject != sessionSubject {
		return false
	}

	return true
}

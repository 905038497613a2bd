package main

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-chi/jwtauth/v5"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"albumlog/internal/metadata"
)

const (
	// metadataRequestsPerMinute bounds metadata lookups per client IP, as each
	// cache miss costs several provider requests.
	metadataRequestsPerMinute = 30

	maxBodyBytes = 1 << 20
)

type serverConfig struct {
	Username     string
	PasswordHash string
	JWTSecret    string
	APIToken     string
	CORSOrigins  []string
}

type server struct {
	router   chi.Router
	db       *database
	resolver *metadata.Resolver
	jwtAuth  *jwtauth.JWTAuth
	username string
	password string
	apiToken string
}

func newServer(cfg serverConfig, db *database, resolver *metadata.Resolver) (*server, error) {
	s := &server{
		db:       db,
		resolver: resolver,
		username: cfg.Username,
		password: cfg.PasswordHash,
		apiToken: cfg.APIToken,
	}

	if s.authEnabled() {
		if cfg.PasswordHash == "" || cfg.JWTSecret == "" {
			return nil, errors.New("password hash and jwt secret are required when a username is set")
		}
		s.jwtAuth = jwtauth.New("HS256", []byte(cfg.JWTSecret), nil)
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	// Credentials are only shared with origins that were named explicitly.
	allowCredentials := !slices.Contains(origins, "*")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.postLogin)
		r.Post("/logout", s.postLogout)

		r.Group(func(r chi.Router) {
			if s.authEnabled() {
				r.Use(jwtauth.Verifier(s.jwtAuth))
				r.Use(s.mustAuthenticated)
			}

			r.Get("/albums", s.getAlbums)
			r.Post("/albums", s.postAlbum)
			r.Get("/albums/{id}", s.getAlbum)

			r.With(httprate.LimitByIP(metadataRequestsPerMinute, time.Minute)).Get("/metadata", s.getMetadata)

			r.Get("/ratings", s.getRatings)
			r.Post("/ratings", s.postRating)
			r.Delete("/ratings", s.deleteRating)

			r.Get("/notes", s.getNotes)
			r.Post("/notes", s.postNote)
		})
	})

	s.router = r
	return s, nil
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *server) authEnabled() bool {
	return s.username != ""
}

func (s *server) renderJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("serving json", "error", err)
	}
}

func (s *server) renderError(w http.ResponseWriter, code int, reqErr error) {
	data := map[string]interface{}{
		"error": http.StatusText(code),
	}

	if reqErr != nil {
		if code >= http.StatusInternalServerError {
			slog.Error("serving request", "status", code, "error", reqErr)
		}
		data["error"] = reqErr.Error()
	}

	s.renderJSON(w, code, data)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

// albumID accepts both JSON numbers and numeric strings, as clients keep
// album ids as strings.
type albumID uint64

func (id *albumID) UnmarshalJSON(b []byte) error {
	str := strings.Trim(string(b), `"`)
	if str == "" || str == "null" {
		*id = 0
		return nil
	}

	n, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return errors.New("album id must be a positive integer")
	}
	*id = albumID(n)
	return nil
}

// queryAlbumID parses the optional albumId query parameter.
func queryAlbumID(r *http.Request) (uint64, error) {
	str := strings.TrimSpace(r.URL.Query().Get("albumId"))
	if str == "" {
		return 0, nil
	}

	id, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return 0, errors.New("albumId must be a positive integer")
	}
	return id, nil
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

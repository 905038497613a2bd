package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"albumlog/internal/metadata"
)

type stubProvider struct {
	ready      error
	candidates []metadata.Candidate
	searchErr  error
	release    *metadata.Release

	calls int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Ready() error { return p.ready }

func (p *stubProvider) Search(context.Context, metadata.Query) ([]metadata.Candidate, error) {
	p.calls++
	return p.candidates, p.searchErr
}

func (p *stubProvider) Release(_ context.Context, id string) (*metadata.Release, error) {
	p.calls++
	if p.release == nil {
		return nil, fmt.Errorf("no release %s", id)
	}
	return p.release, nil
}

func newTestDatabase(t *testing.T) *database {
	t.Helper()
	db, err := newDatabase(filepath.Join(t.TempDir(), "albumlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestServer(t *testing.T, p metadata.Provider) (*server, *database) {
	t.Helper()
	return newTestServerWithConfig(t, p, serverConfig{})
}

func newTestServerWithConfig(t *testing.T, p metadata.Provider, cfg serverConfig) (*server, *database) {
	t.Helper()
	db := newTestDatabase(t)
	s, err := newServer(cfg, db, metadata.NewResolver(p, db, metadata.Config{}))
	require.NoError(t, err)
	return s, db
}

func do(t *testing.T, s http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func kidA() *stubProvider {
	return &stubProvider{
		candidates: []metadata.Candidate{{ID: "249504", Title: "Kid A", Artist: "Radiohead"}},
		release: &metadata.Release{
			ID:       "249504",
			Title:    "Kid A",
			Artist:   "Radiohead",
			Year:     "2000",
			Date:     "2000-10-02",
			Tracks:   []string{"Everything In Its Right Place", "Kid A", "The National Anthem"},
			CoverURL: "https://img.example/kida.jpg",
		},
	}
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, &stubProvider{})

	rec := do(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t, &stubProvider{})

	rec := do(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPostAlbum_MissingFields(t *testing.T) {
	p := kidA()
	s, db := newTestServer(t, p)

	for _, body := range []interface{}{
		map[string]string{"title": "Kid A"},
		map[string]string{"artist": "Radiohead"},
		map[string]string{"title": "  ", "artist": "Radiohead"},
	} {
		rec := do(t, s, http.MethodPost, "/api/albums", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}

	rec := do(t, s, http.MethodPost, "/api/albums", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	albums, err := db.GetAlbums(context.Background())
	require.NoError(t, err)
	assert.Empty(t, albums)
	assert.Zero(t, p.calls)
}

func TestPostAlbum_NoMatch(t *testing.T) {
	p := &stubProvider{candidates: []metadata.Candidate{{ID: "1", Title: "Abbey Road", Artist: "The Beatles"}}}
	s, db := newTestServer(t, p)

	rec := do(t, s, http.MethodPost, "/api/albums", map[string]string{"title": "X", "artist": "Y"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Album    *Album      `json:"album"`
		Metadata interface{} `json:"metadata"`
	}
	decode(t, rec, &resp)

	require.NotNil(t, resp.Album)
	assert.Equal(t, "X", resp.Album.Title)
	assert.Equal(t, "Y", resp.Album.Artist)
	assert.Equal(t, uint64(1), resp.Album.Sequence)
	assert.Nil(t, resp.Metadata)

	stored, err := db.GetAlbum(context.Background(), resp.Album.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.CoverURL)
	assert.Nil(t, stored.Tracklist)

	cached, err := db.GetMetadata(context.Background(), resp.Album.ID)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestPostAlbum_ProviderErrorStillCreates(t *testing.T) {
	p := &stubProvider{ready: fmt.Errorf("%w: token missing", metadata.ErrConfig)}
	s, _ := newTestServer(t, p)

	rec := do(t, s, http.MethodPost, "/api/albums", map[string]string{"title": "X", "artist": "Y", "year": "1999"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Album    *Album      `json:"album"`
		Metadata interface{} `json:"metadata"`
	}
	decode(t, rec, &resp)
	require.NotNil(t, resp.Album)
	assert.Equal(t, "1999", *resp.Album.Year)
	assert.Nil(t, resp.Metadata)
}

func TestPostAlbum_FillsMetadata(t *testing.T) {
	s, db := newTestServer(t, kidA())

	rec := do(t, s, http.MethodPost, "/api/albums", map[string]string{
		"title":  " Kid A ",
		"artist": "Radiohead",
		"genre":  "Electronic",
		"year":   "2001",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Album    *Album           `json:"album"`
		Metadata *metadata.Result `json:"metadata"`
	}
	decode(t, rec, &resp)

	require.NotNil(t, resp.Metadata)
	assert.True(t, resp.Metadata.Found)
	assert.False(t, resp.Metadata.FromCache)
	assert.Equal(t, "stub", resp.Metadata.Source)

	album, err := db.GetAlbum(context.Background(), resp.Album.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kid A", album.Title)
	assert.Equal(t, "Electronic", *album.Genre)
	assert.Equal(t, "2000", *album.Year)
	assert.Equal(t, "https://img.example/kida.jpg", *album.CoverURL)
	assert.Equal(t, "Everything In Its Right Place; Kid A; The National Anthem", *album.Tracklist)

	cached, err := db.GetMetadata(context.Background(), album.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "249504", cached.ReleaseID)
	assert.Equal(t, "stub", cached.Source)
	assert.Equal(t, []string{"Everything In Its Right Place", "Kid A", "The National Anthem"}, cached.Tracks)
}

func TestGetAlbums_NewestSequenceFirst(t *testing.T) {
	s, _ := newTestServer(t, &stubProvider{})

	for _, title := range []string{"First", "Second", "Third"} {
		rec := do(t, s, http.MethodPost, "/api/albums", map[string]string{"title": title, "artist": "Someone"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := do(t, s, http.MethodGet, "/api/albums", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Albums []*Album `json:"albums"`
	}
	decode(t, rec, &resp)

	require.Len(t, resp.Albums, 3)
	assert.Equal(t, "Third", resp.Albums[0].Title)
	assert.Equal(t, uint64(3), resp.Albums[0].Sequence)
	assert.Equal(t, "First", resp.Albums[2].Title)
	assert.Equal(t, uint64(1), resp.Albums[2].Sequence)
}

func TestGetAlbum(t *testing.T) {
	s, _ := newTestServer(t, &stubProvider{})

	rec := do(t, s, http.MethodPost, "/api/albums", map[string]string{"title": "Blue", "artist": "Joni Mitchell"})
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Album *Album `json:"album"`
	}
	decode(t, rec, &created)

	rec = do(t, s, http.MethodGet, fmt.Sprintf("/api/albums/%d", created.Album.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Album *Album `json:"album"`
	}
	decode(t, rec, &got)
	assert.Equal(t, "Blue", got.Album.Title)

	rec = do(t, s, http.MethodGet, "/api/albums/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/albums/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMetadata_MissingParams(t *testing.T) {
	p := kidA()
	s, _ := newTestServer(t, p)

	for _, target := range []string{
		"/api/metadata",
		"/api/metadata?title=Kid+A",
		"/api/metadata?artist=Radiohead&albumId=1",
		"/api/metadata?title=+&artist=Radiohead",
	} {
		rec := do(t, s, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	assert.Zero(t, p.calls)
}

func TestGetMetadata_InvalidAlbumID(t *testing.T) {
	s, _ := newTestServer(t, kidA())

	rec := do(t, s, http.MethodGet, "/api/metadata?albumId=abc&title=Kid+A&artist=Radiohead", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMetadata_FreshThenCached(t *testing.T) {
	p := kidA()
	s, _ := newTestServer(t, p)

	rec := do(t, s, http.MethodGet, "/api/metadata?albumId=9&title=Kid+A&artist=Radiohead", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var fresh metadata.Result
	decode(t, rec, &fresh)
	assert.True(t, fresh.Found)
	assert.False(t, fresh.FromCache)
	assert.Equal(t, "249504", fresh.ReleaseID)
	assert.Equal(t, "2000", *fresh.Resolved.Year)

	calls := p.calls

	rec = do(t, s, http.MethodGet, "/api/metadata?albumId=9&title=Kid+A&artist=Radiohead", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cached metadata.Result
	decode(t, rec, &cached)
	assert.True(t, cached.FromCache)
	assert.Equal(t, "249504", cached.ReleaseID)
	assert.Equal(t, fresh.Tracks, cached.Tracks)
	assert.Equal(t, *fresh.CoverURL, *cached.CoverURL)
	assert.Equal(t, calls, p.calls)
}

func TestGetMetadata_CacheHitWithoutProvider(t *testing.T) {
	p := &stubProvider{ready: fmt.Errorf("%w: token missing", metadata.ErrConfig)}
	s, db := newTestServer(t, p)

	require.NoError(t, db.PutMetadata(context.Background(), &metadata.Record{
		AlbumID:   4,
		ReleaseID: "77",
		Year:      "1991",
		Tracks:    []string{"Smells Like Teen Spirit"},
		Source:    "discogs",
	}))

	rec := do(t, s, http.MethodGet, "/api/metadata?albumId=4&title=Nevermind&artist=Nirvana", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res metadata.Result
	decode(t, rec, &res)
	assert.True(t, res.FromCache)
	assert.Equal(t, "discogs", res.Source)
	assert.Nil(t, res.CoverURL)
	assert.Zero(t, p.calls)
}

func TestGetMetadata_NotFound(t *testing.T) {
	s, _ := newTestServer(t, &stubProvider{})

	rec := do(t, s, http.MethodGet, "/api/metadata?title=Kid+A&artist=Radiohead", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]interface{}
	decode(t, rec, &resp)
	assert.Equal(t, false, resp["found"])
	assert.Equal(t, "NO_MATCH", resp["reason"])
}

func TestGetMetadata_ConfigError(t *testing.T) {
	s, _ := newTestServer(t, &stubProvider{ready: fmt.Errorf("%w: token missing", metadata.ErrConfig)})

	rec := do(t, s, http.MethodGet, "/api/metadata?title=Kid+A&artist=Radiohead", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp map[string]interface{}
	decode(t, rec, &resp)
	assert.Equal(t, "CONFIG_ERROR", resp["error"])
}

func TestGetMetadata_UpstreamError(t *testing.T) {
	s, _ := newTestServer(t, &stubProvider{searchErr: errors.New("connection refused")})

	rec := do(t, s, http.MethodGet, "/api/metadata?title=Kid+A&artist=Radiohead", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp map[string]interface{}
	decode(t, rec, &resp)
	assert.Equal(t, "UPSTREAM_ERROR", resp["error"])
}

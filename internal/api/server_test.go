package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel0/ragdex/internal/log"
)

type fakeIndex struct {
	chunks map[string]int
}

func (f *fakeIndex) IDsBySource(source string) []string {
	return make([]string, f.chunks[source])
}

type fakeSearcher struct {
	out string
	err error
}

func (f *fakeSearcher) Search(context.Context, string, int) (string, error) {
	return f.out, f.err
}

type fakeAsker struct {
	out string
	err error

	lastQuery string
	lastForce bool
}

func (f *fakeAsker) Ask(_ context.Context, query string, force bool) (string, error) {
	f.lastQuery = query
	f.lastForce = force
	return f.out, f.err
}

func newTestServer(t *testing.T, folder string, asker Asker) *Server {
	t.Helper()
	return NewServer(
		Config{Folder: folder},
		&fakeIndex{chunks: map[string]int{}},
		&fakeSearcher{out: "--- Result 1 ---"},
		asker,
		log.NewNop(),
	)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestListFiles(t *testing.T) {
	folder := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(folder, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(folder, ".hidden.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(folder, "sub"), 0o755))

	srv := NewServer(
		Config{Folder: folder},
		&fakeIndex{chunks: map[string]int{filepath.Join(folder, "a.txt"): 3}},
		&fakeSearcher{},
		nil,
		log.NewNop(),
	)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Files []FileInfo `json:"files"`
		Total int        `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "a.txt", resp.Files[0].Name)
	assert.EqualValues(t, 5, resp.Files[0].Size)
	assert.Equal(t, 3, resp.Files[0].Chunks)
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	folder := t.TempDir()
	srv := newTestServer(t, folder, nil)

	body, contentType := multipartBody(t, "report.txt", "uploaded content")
	req := httptest.NewRequest(http.MethodPost, "/api/files", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	data, err := os.ReadFile(filepath.Join(folder, "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "uploaded content", string(data))
}

func TestUpload_SanitizesPath(t *testing.T) {
	folder := t.TempDir()
	srv := newTestServer(t, folder, nil)

	// Traversal attempts collapse to the base name inside the folder.
	body, contentType := multipartBody(t, "../../escape.txt", "content")
	req := httptest.NewRequest(http.MethodPost, "/api/files", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	_, err := os.Stat(filepath.Join(folder, "escape.txt"))
	assert.NoError(t, err)
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
	}{
		{name: "hidden file", filename: ".secret.txt"},
		{name: "unsupported extension", filename: "binary.exe"},
		{name: "no extension", filename: "README"},
	}

	srv := newTestServer(t, t.TempDir(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.filename, "content")
			req := httptest.NewRequest(http.MethodPost, "/api/files", body)
			req.Header.Set("Content-Type", contentType)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		})
	}
}

func TestDeleteFile(t *testing.T) {
	folder := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(folder, "gone.txt"), []byte("x"), 0o644))
	srv := newTestServer(t, folder, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/files/gone.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := os.Stat(filepath.Join(folder, "gone.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDeleteFile_NotFound(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/files/missing.txt", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchEndpoint(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"query":"cats","n_results":2}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "--- Result 1 ---")
}

func TestSearchEndpoint_EmptyQuery(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"  "}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestQueryEndpoint(t *testing.T) {
	asker := &fakeAsker{out: "the answer"}
	srv := newTestServer(t, t.TempDir(), asker)

	req := httptest.NewRequest(http.MethodPost, "/api/query",
		strings.NewReader(`{"query":"what is in my documents?","force_retrieval":true}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "the answer")
	assert.Equal(t, "what is in my documents?", asker.lastQuery)
	assert.True(t, asker.lastForce)
}

func TestQueryEndpoint_NoAgent(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"hi"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestQueryEndpoint_AgentError(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), &fakeAsker{err: errors.New("model down")})

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"hi"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRateLimit(t *testing.T) {
	srv := NewServer(
		Config{Folder: t.TempDir(), RateBurst: 2},
		&fakeIndex{}, &fakeSearcher{}, nil, log.NewNop(),
	)
	handler := srv.Handler()

	for range 2 {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different client has its own bucket.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	srv := NewServer(
		Config{Folder: t.TempDir(), CORSOrigins: []string{"https://app.example.com"}},
		&fakeIndex{}, &fakeSearcher{}, nil, log.NewNop(),
	)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/files", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com",
		rec.Header().Get("Access-Control-Allow-Origin"))

	// Unknown origins get no CORS headers.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), nil)

	panics := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	rec := httptest.NewRecorder()
	srv.recoveryMiddleware(panics).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWriteJSON_EncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]any{"bad": make(chan int)})

	// The body is encoded before the header, so the client sees a 500
	// rather than a truncated 200.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

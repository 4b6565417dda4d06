package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chartwell/trellis/internal/db"
)

// newTestServer creates a server over a fresh project directory.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	srv, err := New(&Config{
		Addr:    ":0",
		WorkDir: t.TempDir(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	return srv
}

// doRequest runs one request through the server's mux.
func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)
	return w
}

// createTestProject creates a project and returns it.
func createTestProject(t *testing.T, srv *Server) *db.Project {
	t.Helper()

	w := doRequest(t, srv, "POST", "/api/projects", map[string]string{"name": "test project"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create project: status %d: %s", w.Code, w.Body.String())
	}

	var proj db.Project
	if err := json.NewDecoder(w.Body).Decode(&proj); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	return &proj
}

// createTestTask creates a task from the given request body.
func createTestTask(t *testing.T, srv *Server, body map[string]any) *db.Task {
	t.Helper()

	w := doRequest(t, srv, "POST", "/api/tasks", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create task: status %d: %s", w.Code, w.Body.String())
	}

	var task db.Task
	if err := json.NewDecoder(w.Body).Decode(&task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	return &task
}

// decodeAPIError decodes an error response body.
func decodeAPIError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()

	var apiErr APIError
	if err := json.NewDecoder(w.Body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return apiErr
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(t, srv, "GET", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(t, srv, "GET", "/api/health", nil)
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header to be set")
	}

	w = doRequest(t, srv, "OPTIONS", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for preflight, got %d", w.Code)
	}
}

func TestNewDefaults(t *testing.T) {
	dir := t.TempDir()
	srv, err := New(&Config{WorkDir: dir})
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	defer func() { _ = srv.Close() }()

	if srv.addr != ":8080" {
		t.Errorf("expected default addr :8080, got %q", srv.addr)
	}
	if srv.Handler() == nil {
		t.Error("expected non-nil handler")
	}
}

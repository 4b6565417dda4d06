// Package api provides the REST and WebSocket server for trellis.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/chartwell/trellis/internal/db"
	trelliserrors "github.com/chartwell/trellis/internal/errors"
	"github.com/chartwell/trellis/internal/events"
	"github.com/chartwell/trellis/internal/hierarchy"
	"github.com/chartwell/trellis/internal/phases"
)

// statsTTL bounds how stale a cached /api/stats payload may be.
const statsTTL = 5 * time.Second

// Server serves the task hierarchy over HTTP.
type Server struct {
	addr      string
	workDir   string
	mux       *http.ServeMux
	logger    *slog.Logger
	pdb       *db.ProjectDB
	svc       *hierarchy.Service
	resolver  *phases.Resolver
	publisher events.Publisher
	wsHandler *WSHandler
	stats     *statsCache
}

// Config holds server configuration.
type Config struct {
	// Addr is the address to listen on (e.g. ":8080").
	Addr string
	// WorkDir is the project root; the database lives under its
	// .trellis directory.
	WorkDir string
	// EventBuffer is the per-subscriber event channel capacity.
	// Zero means the publisher default.
	EventBuffer int
	// Logger for server operations. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:    ":8080",
		WorkDir: ".",
		Logger:  slog.Default(),
	}
}

// New creates a server rooted at cfg.WorkDir, opening and migrating
// the project database under .trellis/. The caller owns the returned
// server and should Close it when done.
func New(cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = "."
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pdb, err := db.OpenProject(workDir)
	if err != nil {
		return nil, err
	}

	resolver := phases.NewResolverFromTrellisDir(filepath.Join(workDir, db.TrellisDir))
	publisher := events.NewMemoryPublisher(cfg.EventBuffer)
	svc := hierarchy.New(pdb, resolver, publisher, logger)

	s := &Server{
		addr:      addr,
		workDir:   workDir,
		mux:       http.NewServeMux(),
		logger:    logger,
		pdb:       pdb,
		svc:       svc,
		resolver:  resolver,
		publisher: publisher,
	}
	s.stats = newStatsCache(svc, statsTTL)
	s.wsHandler = NewWSHandler(publisher, s, logger)
	s.registerRoutes()

	return s, nil
}

// Close releases the server's resources.
func (s *Server) Close() error {
	s.wsHandler.Close()
	s.publisher.Close()
	return s.pdb.Close()
}

// registerRoutes sets up all API routes.
func (s *Server) registerRoutes() {
	cors := CORS

	// Method-specific patterns never match preflight requests, so
	// OPTIONS gets a catch-all. CORS answers it before the handler runs.
	s.mux.HandleFunc("OPTIONS /", cors(func(http.ResponseWriter, *http.Request) {}))

	s.mux.HandleFunc("GET /api/health", cors(s.handleHealth))

	// Projects
	s.mux.HandleFunc("POST /api/projects", cors(s.handleCreateProject))
	s.mux.HandleFunc("GET /api/projects", cors(s.handleListProjects))
	s.mux.HandleFunc("GET /api/projects/{id}", cors(s.handleGetProject))

	// Tasks
	s.mux.HandleFunc("POST /api/tasks", cors(s.handleCreateTask))
	s.mux.HandleFunc("GET /api/tasks", cors(s.handleListTasks))
	s.mux.HandleFunc("GET /api/tasks/{id}", cors(s.handleGetTask))
	s.mux.HandleFunc("PATCH /api/tasks/{id}", cors(s.handleUpdateTask))
	s.mux.HandleFunc("DELETE /api/tasks/{id}", cors(s.handleDeleteTask))
	s.mux.HandleFunc("GET /api/tasks/{id}/parent", cors(s.handleTaskParent))
	s.mux.HandleFunc("GET /api/tasks/{id}/children", cors(s.handleTaskChildren))
	s.mux.HandleFunc("POST /api/tasks/{id}/phases", cors(s.handleEnsurePhases))

	// Workspaces
	s.mux.HandleFunc("POST /api/workspaces", cors(s.handleCreateWorkspace))
	s.mux.HandleFunc("GET /api/workspaces/{id}", cors(s.handleGetWorkspace))
	s.mux.HandleFunc("GET /api/workspaces/{id}/relationships", cors(s.handleWorkspaceRelationships))

	// Tracks and stats
	s.mux.HandleFunc("GET /api/tracks", cors(s.handleListTracks))
	s.mux.HandleFunc("GET /api/stats", cors(s.handleStats))

	// WebSocket
	s.mux.Handle("GET /api/events/ws", s.wsHandler)
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.mux)
}

// StartContext starts the HTTP server and shuts it down gracefully
// when ctx is cancelled.
func (s *Server) StartContext(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting API server", "addr", s.addr)
	err := server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Handler returns the server's HTTP handler, for mounting in tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// handleHealth returns a basic health check response.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	JSONResponse(w, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, data any) {
	JSONResponse(w, data)
}

// jsonError writes a JSON error response.
func (s *Server) jsonError(w http.ResponseWriter, message string, status int) {
	JSONError(w, message, status)
}

// handleError writes a structured error response and logs server-side
// failures.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if te := trelliserrors.AsTrellisError(err); te == nil || te.HTTPStatus() >= 500 {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	HandleError(w, err)
}

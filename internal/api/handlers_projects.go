package api

import (
	"encoding/json"
	"net/http"
	"strings"

	trelliserrors "github.com/chartwell/trellis/internal/errors"

	"github.com/chartwell/trellis/internal/db"
)

// createProjectRequest is the request body for creating a project.
type createProjectRequest struct {
	Name string `json:"name"`
}

// handleCreateProject creates a project.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		s.jsonError(w, "name required", http.StatusBadRequest)
		return
	}

	proj := &db.Project{Name: name}
	if err := s.pdb.CreateProject(r.Context(), proj); err != nil {
		s.handleError(w, r, err)
		return
	}

	JSONResponseStatus(w, http.StatusCreated, proj)
}

// handleListProjects returns all projects.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.pdb.ListProjects(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if projects == nil {
		projects = []*db.Project{}
	}

	s.jsonResponse(w, projects)
}

// handleGetProject returns a single project by id.
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	proj, err := s.pdb.GetProject(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if proj == nil {
		s.handleError(w, r, trelliserrors.ErrProjectNotFound(id.String()))
		return
	}

	s.jsonResponse(w, proj)
}

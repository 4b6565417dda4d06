package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/chartwell/trellis/internal/db"
	trelliserrors "github.com/chartwell/trellis/internal/errors"
)

// createWorkspaceRequest is the request body for creating a workspace.
type createWorkspaceRequest struct {
	TaskID string `json:"task_id"`
	Name   string `json:"name,omitempty"`
}

// handleCreateWorkspace attaches a new workspace to a task.
func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req createWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	taskID, err := uuid.Parse(req.TaskID)
	if err != nil {
		s.jsonError(w, "invalid task_id", http.StatusBadRequest)
		return
	}

	// The store has no foreign key on task_id, so check here.
	if _, err := s.svc.Get(r.Context(), taskID); err != nil {
		s.handleError(w, r, err)
		return
	}

	ws := &db.Workspace{TaskID: taskID, Name: req.Name}
	if err := s.pdb.CreateWorkspace(r.Context(), ws); err != nil {
		s.handleError(w, r, err)
		return
	}

	JSONResponseStatus(w, http.StatusCreated, ws)
}

// handleGetWorkspace returns a single workspace by id.
func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	ws, err := s.pdb.GetWorkspace(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if ws == nil {
		s.handleError(w, r, trelliserrors.ErrWorkspaceNotFound(id.String()))
		return
	}

	s.jsonResponse(w, ws)
}

// handleWorkspaceRelationships returns the task a workspace belongs
// to, along with that task's parent and children.
func (s *Server) handleWorkspaceRelationships(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	rel, err := s.svc.Relationships(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.jsonResponse(w, rel)
}

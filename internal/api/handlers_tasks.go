package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/chartwell/trellis/internal/db"
	"github.com/chartwell/trellis/internal/hierarchy"
)

// createTaskRequest is the request body for creating a task.
type createTaskRequest struct {
	ProjectID         string  `json:"project_id"`
	Title             string  `json:"title"`
	Description       string  `json:"description,omitempty"`
	Track             string  `json:"track,omitempty"`
	Status            string  `json:"status,omitempty"`
	ParentWorkspaceID *string `json:"parent_workspace_id,omitempty"`
	ParentTaskID      *string `json:"parent_task_id,omitempty"`
	PhaseKey          *string `json:"phase_key,omitempty"`
}

// updateTaskRequest is the request body for updating a task. Absent
// fields are left unchanged; placement fields cannot be patched.
type updateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Track       *string `json:"track,omitempty"`
}

// listTasksResponse pairs a page of tasks with the unpaged total.
type listTasksResponse struct {
	Tasks []*db.Task `json:"tasks"`
	Total int        `json:"total"`
}

// pathID parses the {id} path segment as a UUID, writing a 400 on
// failure.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.jsonError(w, "invalid id: "+r.PathValue("id"), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUID parses an optional UUID string from a request body or
// query parameter.
func optionalUUID(value *string) (*uuid.UUID, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// handleCreateTask creates a task. Root tasks on a track with a phase
// catalog get their phase children spawned before the response.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		s.jsonError(w, "invalid project_id", http.StatusBadRequest)
		return
	}
	parentWorkspaceID, err := optionalUUID(req.ParentWorkspaceID)
	if err != nil {
		s.jsonError(w, "invalid parent_workspace_id", http.StatusBadRequest)
		return
	}
	parentTaskID, err := optionalUUID(req.ParentTaskID)
	if err != nil {
		s.jsonError(w, "invalid parent_task_id", http.StatusBadRequest)
		return
	}

	task, err := s.svc.Create(r.Context(), hierarchy.CreateRequest{
		ProjectID:         projectID,
		Title:             req.Title,
		Description:       req.Description,
		Track:             db.Track(req.Track),
		Status:            db.Status(req.Status),
		ParentWorkspaceID: parentWorkspaceID,
		ParentTaskID:      parentTaskID,
		PhaseKey:          req.PhaseKey,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.stats.Invalidate()
	JSONResponseStatus(w, http.StatusCreated, task)
}

// handleListTasks returns tasks matching the query filters.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := db.ListOpts{
		Status: db.Status(q.Get("status")),
		Track:  db.Track(q.Get("track")),
	}

	if project := q.Get("project"); project != "" {
		id, err := uuid.Parse(project)
		if err != nil {
			s.jsonError(w, "invalid project filter", http.StatusBadRequest)
			return
		}
		opts.ProjectID = &id
	}
	if parent := q.Get("parent"); parent != "" {
		id, err := uuid.Parse(parent)
		if err != nil {
			s.jsonError(w, "invalid parent filter", http.StatusBadRequest)
			return
		}
		opts.ParentTaskID = &id
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			s.jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		opts.Limit = n
	}
	if offset := q.Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			s.jsonError(w, "invalid offset", http.StatusBadRequest)
			return
		}
		opts.Offset = n
	}

	tasks, total, err := s.svc.List(r.Context(), opts)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []*db.Task{}
	}

	s.jsonResponse(w, listTasksResponse{Tasks: tasks, Total: total})
}

// handleGetTask returns a single task by id.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	task, err := s.svc.Get(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.jsonResponse(w, task)
}

// handleUpdateTask applies a partial update to a task.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	update := hierarchy.UpdateRequest{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Status != nil {
		status := db.Status(*req.Status)
		update.Status = &status
	}
	if req.Track != nil {
		track := db.Track(*req.Track)
		update.Track = &track
	}

	task, err := s.svc.Update(r.Context(), id, update)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.stats.Invalidate()
	s.jsonResponse(w, task)
}

// handleDeleteTask deletes a task. ?force=true cascades to children.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	force := r.URL.Query().Get("force") == "true"
	if _, err := s.svc.Delete(r.Context(), id, force); err != nil {
		s.handleError(w, r, err)
		return
	}

	s.stats.Invalidate()
	NoContent(w)
}

// handleTaskParent returns the task's parent, or null for roots.
func (s *Server) handleTaskParent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	parent, err := s.svc.Parent(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.jsonResponse(w, parent)
}

// handleTaskChildren returns the task's children, oldest first. The
// result is an empty array, never null.
func (s *Server) handleTaskChildren(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	children, err := s.svc.Children(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.jsonResponse(w, children)
}

// handleEnsurePhases spawns any missing phase children for the task's
// track and returns the full child list.
func (s *Server) handleEnsurePhases(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	children, err := s.svc.EnsurePhases(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.stats.Invalidate()
	s.jsonResponse(w, children)
}

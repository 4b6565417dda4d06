// Package hierarchy coordinates task placement.
//
// The service owns the write paths that touch parent/child structure:
// creation with parent validation, deletion policy for tasks with children,
// relationship lookups, and the phase spawner. Reads and writes go through
// the stores in internal/db; structural conflicts surface as coded errors
// from internal/errors.
package hierarchy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/chartwell/trellis/internal/db"
	trelliserrors "github.com/chartwell/trellis/internal/errors"
	"github.com/chartwell/trellis/internal/events"
	"github.com/chartwell/trellis/internal/phases"
)

// Service coordinates task placement over a project database.
type Service struct {
	pdb       *db.ProjectDB
	resolver  *phases.Resolver
	publisher events.Publisher
	logger    *slog.Logger
}

// New creates a hierarchy service. A nil publisher disables events and a
// nil resolver falls back to the embedded catalogs.
func New(pdb *db.ProjectDB, resolver *phases.Resolver, publisher events.Publisher, logger *slog.Logger) *Service {
	if resolver == nil {
		resolver = phases.NewResolver()
	}
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pdb:       pdb,
		resolver:  resolver,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateRequest carries the fields for a new task. Zero-valued Track and
// Status default to quick/todo.
type CreateRequest struct {
	ProjectID         uuid.UUID
	Title             string
	Description       string
	Track             db.Track
	Status            db.Status
	ParentWorkspaceID *uuid.UUID
	ParentTaskID      *uuid.UUID
	PhaseKey          *string
}

// Create validates and inserts a task. When a parent is named, its
// existence is checked inside the same transaction as the insert, so a
// concurrent parent deletion cannot leave a dangling reference behind.
// Creating a task on a track with a phase catalog spawns its phase
// children before returning.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*db.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, trelliserrors.ErrTaskInvalid("title is required")
	}
	if req.ProjectID == uuid.Nil {
		return nil, trelliserrors.ErrTaskInvalid("project id is required")
	}

	track := req.Track
	if track == "" {
		track = db.TrackQuick
	}
	if err := s.validateTrack(track); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = db.StatusTodo
	}
	if !db.ValidStatus(status) {
		return nil, trelliserrors.ErrTaskInvalid(fmt.Sprintf("unknown status %q", status))
	}

	// A phase label without a parent has no slot to occupy.
	if req.PhaseKey != nil && strings.TrimSpace(*req.PhaseKey) == "" {
		return nil, trelliserrors.ErrPhaseSlotInvalid()
	}
	if req.PhaseKey != nil && req.ParentTaskID == nil {
		return nil, trelliserrors.ErrPhaseSlotInvalid()
	}

	task := &db.Task{
		ProjectID:         req.ProjectID,
		Title:             title,
		Description:       req.Description,
		Status:            status,
		Track:             track,
		ParentWorkspaceID: req.ParentWorkspaceID,
		ParentTaskID:      req.ParentTaskID,
		PhaseKey:          req.PhaseKey,
	}

	err := s.pdb.RunInTx(ctx, func(tx *db.TxOps) error {
		if task.ParentTaskID != nil {
			parent, err := db.GetTaskTx(tx, *task.ParentTaskID)
			if err != nil {
				return fmt.Errorf("check parent: %w", err)
			}
			if parent == nil {
				return trelliserrors.ErrParentNotFound(task.ParentTaskID.String())
			}
		}
		if err := db.CreateTaskTx(tx, task); err != nil {
			if errors.Is(err, db.ErrPhaseOccupied) && task.IsPhaseChild() {
				parent, key, _ := task.PhaseSlot()
				return trelliserrors.ErrPhaseSlotTaken(parent.String(), key)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task created",
		"task", task.ID,
		"track", task.Track,
		"parent", task.ParentTaskID,
		"phase", task.PhaseKey)
	s.publisher.Publish(events.NewEvent(events.EventTaskCreated, task.ID.String(), task))

	if task.IsRoot() && s.resolver.Known(string(task.Track)) {
		if _, err := s.ensurePhases(ctx, task); err != nil {
			return nil, fmt.Errorf("spawn phases for %s: %w", task.ID, err)
		}
	}

	return task, nil
}

// Get returns a task or TASK_NOT_FOUND.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*db.Task, error) {
	task, err := s.pdb.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, trelliserrors.ErrTaskNotFound(id.String())
	}
	return task, nil
}

// List returns tasks matching opts plus the unpaged total.
func (s *Service) List(ctx context.Context, opts db.ListOpts) ([]*db.Task, int, error) {
	return s.pdb.ListTasks(ctx, opts)
}

// UpdateRequest carries partial task updates. Nil fields are untouched.
// Placement (parent, phase) is fixed at creation and cannot be updated.
type UpdateRequest struct {
	Title       *string
	Description *string
	Status      *db.Status
	Track       *db.Track
}

// Update applies the request to an existing task and publishes the change.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*db.Task, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, trelliserrors.ErrTaskInvalid("title cannot be empty")
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		if !db.ValidStatus(*req.Status) {
			return nil, trelliserrors.ErrTaskInvalid(fmt.Sprintf("unknown status %q", *req.Status))
		}
		task.Status = *req.Status
	}
	if req.Track != nil {
		if err := s.validateTrack(*req.Track); err != nil {
			return nil, err
		}
		task.Track = *req.Track
	}

	if err := s.pdb.UpdateTask(ctx, task); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, trelliserrors.ErrTaskNotFound(id.String())
		}
		return nil, err
	}

	s.publisher.Publish(events.NewEvent(events.EventTaskUpdated, task.ID.String(), task))
	return task, nil
}

// Delete removes a task. A task that still has children is rejected with
// TASK_HAS_CHILDREN unless force is set, in which case the whole subtree
// is removed in one transaction. Returns the number of cascaded children.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, force bool) (int, error) {
	cascaded := 0
	err := s.pdb.RunInTx(ctx, func(tx *db.TxOps) error {
		task, err := db.GetTaskTx(tx, id)
		if err != nil {
			return err
		}
		if task == nil {
			return trelliserrors.ErrTaskNotFound(id.String())
		}

		count, err := db.CountChildrenTx(tx, id)
		if err != nil {
			return err
		}
		if count > 0 && !force {
			return trelliserrors.ErrTaskHasChildren(id.String(), count)
		}

		total, err := deleteSubtreeTx(tx, id)
		if err != nil {
			return err
		}
		cascaded = total - 1
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("task deleted", "task", id, "cascaded", cascaded)
	s.publisher.Publish(events.NewEvent(events.EventTaskDeleted, id.String(),
		events.TaskDeletedData{TaskID: id.String(), Cascaded: cascaded}))
	return cascaded, nil
}

// deleteSubtreeTx removes a task and its descendants depth-first and
// returns how many rows went away.
func deleteSubtreeTx(tx *db.TxOps, id uuid.UUID) (int, error) {
	children, err := db.GetChildTasksTx(tx, id)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, child := range children {
		n, err := deleteSubtreeTx(tx, child.ID)
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	if err := db.DeleteTaskTx(tx, id); err != nil {
		return deleted, err
	}
	return deleted + 1, nil
}

// Parent returns the task's parent, or nil for roots.
func (s *Service) Parent(ctx context.Context, taskID uuid.UUID) (*db.Task, error) {
	if _, err := s.Get(ctx, taskID); err != nil {
		return nil, err
	}
	return s.pdb.GetParentTask(ctx, taskID)
}

// Children returns the task's children in creation order, never nil.
func (s *Service) Children(ctx context.Context, taskID uuid.UUID) ([]*db.Task, error) {
	if _, err := s.Get(ctx, taskID); err != nil {
		return nil, err
	}
	children, err := s.pdb.GetChildTasks(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if children == nil {
		children = []*db.Task{}
	}
	return children, nil
}

// Relationships is the hierarchy neighborhood around a workspace's task.
type Relationships struct {
	Task     *db.Task   `json:"task"`
	Parent   *db.Task   `json:"parent_task"`
	Children []*db.Task `json:"children"`
}

// Relationships resolves a workspace to its task plus that task's parent
// and children.
func (s *Service) Relationships(ctx context.Context, workspaceID uuid.UUID) (*Relationships, error) {
	ws, err := s.pdb.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, trelliserrors.ErrWorkspaceNotFound(workspaceID.String())
	}

	task, err := s.Get(ctx, ws.TaskID)
	if err != nil {
		return nil, err
	}
	parent, err := s.pdb.GetParentTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	children, err := s.Children(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	return &Relationships{Task: task, Parent: parent, Children: children}, nil
}

// Stats summarizes the task population.
type Stats struct {
	TotalTasks    int            `json:"total_tasks"`
	ByStatus      map[string]int `json:"by_status"`
	ByTrack       map[string]int `json:"by_track"`
	RootTasks     int            `json:"root_tasks"`
	PhaseChildren int            `json:"phase_children"`
}

// Stats aggregates task counts for the dashboard endpoint.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.pdb.CountTasks(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		TotalTasks:    counts.Total,
		ByStatus:      counts.ByStatus,
		ByTrack:       counts.ByTrack,
		RootTasks:     counts.Roots,
		PhaseChildren: counts.PhaseChildren,
	}, nil
}

// validateTrack accepts built-in tracks and any track a catalog defines.
func (s *Service) validateTrack(track db.Track) error {
	if strings.TrimSpace(string(track)) == "" {
		return trelliserrors.ErrTrackInvalid(string(track))
	}
	if db.ValidTrack(track) || s.resolver.Known(string(track)) {
		return nil
	}
	return trelliserrors.ErrTrackUnknown(string(track))
}

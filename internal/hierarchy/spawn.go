package hierarchy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/chartwell/trellis/internal/db"
	"github.com/chartwell/trellis/internal/events"
	"github.com/chartwell/trellis/internal/phases"
)

// EnsurePhases materializes the track's phase catalog under a parent task
// and returns the parent's children in creation order.
//
// The pass is idempotent: each catalog entry is written with the dialect's
// insert-or-ignore form, so slots that already hold a child are left alone
// and concurrent or repeated calls converge on the same seven rows. Tasks
// that are not hierarchy roots, and tracks without a catalog (quick),
// spawn nothing.
func (s *Service) EnsurePhases(ctx context.Context, parentID uuid.UUID) ([]*db.Task, error) {
	parent, err := s.Get(ctx, parentID)
	if err != nil {
		return nil, err
	}
	return s.ensurePhases(ctx, parent)
}

func (s *Service) ensurePhases(ctx context.Context, parent *db.Task) ([]*db.Task, error) {
	// A task that already sits under a parent never spawns its own
	// catalog, whatever its track says.
	if !parent.IsRoot() {
		return s.Children(ctx, parent.ID)
	}

	rc, err := s.resolver.Resolve(string(parent.Track))
	if err != nil {
		if errors.Is(err, phases.ErrNotFound) {
			return s.Children(ctx, parent.ID)
		}
		return nil, err
	}
	catalog := rc.Catalog

	var spawned []*db.Task
	err = s.pdb.RunInTx(ctx, func(tx *db.TxOps) error {
		for _, phase := range catalog.Phases {
			key := phase.Key
			child := &db.Task{
				ProjectID:    parent.ProjectID,
				Title:        phase.Title,
				Description:  phase.Description,
				Status:       db.StatusTodo,
				Track:        parent.Track,
				ParentTaskID: &parent.ID,
				PhaseKey:     &key,
			}
			inserted, err := db.InsertPhaseChildTx(tx, child)
			if err != nil {
				return fmt.Errorf("insert phase %s: %w", key, err)
			}
			if inserted {
				spawned = append(spawned, child)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, child := range spawned {
		s.publisher.Publish(events.NewEvent(events.EventTaskCreated, child.ID.String(), child))
	}
	s.publisher.Publish(events.NewEvent(events.EventPhasesEnsured, parent.ID.String(),
		events.PhasesEnsuredData{
			ParentID: parent.ID.String(),
			Track:    string(parent.Track),
			Spawned:  len(spawned),
			Total:    len(catalog.Phases),
		}))
	if len(spawned) > 0 {
		s.logger.Info("phases spawned",
			"parent", parent.ID,
			"track", parent.Track,
			"count", len(spawned))
	}

	return s.Children(ctx, parent.ID)
}

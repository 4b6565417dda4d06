package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/chartwell/trellis/internal/config"
	"github.com/chartwell/trellis/internal/db"
	"github.com/chartwell/trellis/internal/db/driver"
	"github.com/chartwell/trellis/internal/events"
	"github.com/chartwell/trellis/internal/hierarchy"
	"github.com/chartwell/trellis/internal/phases"
)

// cliLogger builds a logger honoring --verbose and --quiet.
func cliLogger() *slog.Logger {
	if quiet {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openProject opens the project database in the current directory
// using the configured dialect.
func openProject(cfg *config.Config) (*db.ProjectDB, error) {
	if err := config.RequireInit("."); err != nil {
		return nil, err
	}

	switch cfg.Database.Dialect {
	case "postgres":
		return db.OpenProjectWithDialect(cfg.Database.DSN, driver.DialectPostgres)
	default:
		if cfg.Database.DSN != "" {
			return db.OpenProjectWithDialect(cfg.Database.DSN, driver.DialectSQLite)
		}
		return db.OpenProject(".")
	}
}

// newService opens the project database and wires up the hierarchy
// service for the current directory. The caller closes the returned
// database.
func newService() (*hierarchy.Service, *db.ProjectDB, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, nil, err
	}

	pdb, err := openProject(cfg)
	if err != nil {
		return nil, nil, err
	}

	tracksDir := filepath.Join(config.TrellisDir, "tracks")
	if cfg.Tracks.Dir != "" {
		tracksDir = cfg.Tracks.Dir
	}
	resolver := phases.NewResolver(phases.WithTracksDir(tracksDir))

	svc := hierarchy.New(pdb, resolver, events.NewNopPublisher(), cliLogger())
	return svc, pdb, nil
}

// findTask resolves a task argument to a task. Full UUIDs resolve
// directly; anything shorter matches as an ID prefix, git style.
func findTask(ctx context.Context, svc *hierarchy.Service, arg string) (*db.Task, error) {
	if id, err := uuid.Parse(arg); err == nil {
		return svc.Get(ctx, id)
	}

	tasks, _, err := svc.List(ctx, db.ListOpts{})
	if err != nil {
		return nil, err
	}

	var matches []*db.Task
	for _, t := range tasks {
		if strings.HasPrefix(t.ID.String(), strings.ToLower(arg)) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no task matches %q", arg)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("task id %q is ambiguous (%d matches)", arg, len(matches))
	}
}

// defaultProject returns the project to attach new tasks to: the one
// named by arg, the sole existing project, or a freshly created
// "default" project when none exist.
func defaultProject(ctx context.Context, pdb *db.ProjectDB, arg string) (*db.Project, error) {
	if arg != "" {
		if id, err := uuid.Parse(arg); err == nil {
			proj, err := pdb.GetProject(ctx, id)
			if err != nil {
				return nil, err
			}
			if proj == nil {
				return nil, fmt.Errorf("project %s not found", arg)
			}
			return proj, nil
		}

		projects, err := pdb.ListProjects(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range projects {
			if p.Name == arg {
				return p, nil
			}
		}
		return nil, fmt.Errorf("project %q not found", arg)
	}

	projects, err := pdb.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	switch len(projects) {
	case 0:
		proj := &db.Project{Name: "default"}
		if err := pdb.CreateProject(ctx, proj); err != nil {
			return nil, err
		}
		return proj, nil
	case 1:
		return projects[0], nil
	default:
		return nil, fmt.Errorf("multiple projects exist, pick one with --project")
	}
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// shortID returns the first 8 characters of a UUID for table output.
func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

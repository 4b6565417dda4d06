package cli

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/chartwell/trellis/internal/db"
	trelliserrors "github.com/chartwell/trellis/internal/errors"
	"github.com/chartwell/trellis/internal/hierarchy"
)

// newHelperFixture wires a hierarchy service over an in-memory database
// with one project, enough to exercise the resolution helpers without
// touching the working directory.
func newHelperFixture(t *testing.T) (*hierarchy.Service, *db.ProjectDB, *db.Project) {
	t.Helper()
	pdb := db.NewTestProjectDB(t)

	proj := &db.Project{Name: "helpers"}
	if err := pdb.CreateProject(context.Background(), proj); err != nil {
		t.Fatalf("create project: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := hierarchy.New(pdb, nil, nil, logger)
	return svc, pdb, proj
}

func seedHelperTask(t *testing.T, pdb *db.ProjectDB, projectID uuid.UUID, id, title string) *db.Task {
	t.Helper()
	task := &db.Task{ID: uuid.MustParse(id), ProjectID: projectID, Title: title}
	if err := pdb.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("create task %s: %v", title, err)
	}
	return task
}

func TestFindTask(t *testing.T) {
	svc, pdb, proj := newHelperFixture(t)
	ctx := context.Background()

	first := seedHelperTask(t, pdb, proj.ID, "11111111-1111-4111-8111-111111111111", "First")
	seedHelperTask(t, pdb, proj.ID, "11115555-2222-4222-8222-222222222222", "Second")
	third := seedHelperTask(t, pdb, proj.ID, "33333333-3333-4333-8333-333333333333", "Third")

	// Full UUID resolves directly.
	got, err := findTask(ctx, svc, first.ID.String())
	if err != nil {
		t.Fatalf("find by full id: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("find by full id = %s, want %s", got.ID, first.ID)
	}

	// Unique prefix resolves git style.
	got, err = findTask(ctx, svc, "3333")
	if err != nil {
		t.Fatalf("find by prefix: %v", err)
	}
	if got.ID != third.ID {
		t.Errorf("find by prefix = %s, want %s", got.ID, third.ID)
	}

	// Shared prefix is ambiguous.
	if _, err := findTask(ctx, svc, "1111"); err == nil {
		t.Error("expected error for ambiguous prefix")
	} else if !strings.Contains(err.Error(), "ambiguous") {
		t.Errorf("error should mention 'ambiguous', got: %v", err)
	}

	// No match.
	if _, err := findTask(ctx, svc, "ffff"); err == nil {
		t.Error("expected error for unmatched prefix")
	} else if !strings.Contains(err.Error(), "no task matches") {
		t.Errorf("error should mention 'no task matches', got: %v", err)
	}

	// Full UUID that does not exist surfaces the store error.
	_, err = findTask(ctx, svc, uuid.NewString())
	te := trelliserrors.AsTrellisError(err)
	if te == nil || te.Code != trelliserrors.CodeTaskNotFound {
		t.Errorf("expected TASK_NOT_FOUND, got: %v", err)
	}
}

func TestDefaultProject(t *testing.T) {
	_, pdb, proj := newHelperFixture(t)
	ctx := context.Background()

	// Sole project wins when no argument is given.
	got, err := defaultProject(ctx, pdb, "")
	if err != nil {
		t.Fatalf("default project: %v", err)
	}
	if got.ID != proj.ID {
		t.Errorf("default project = %s, want %s", got.ID, proj.ID)
	}

	// Lookup by name.
	got, err = defaultProject(ctx, pdb, "helpers")
	if err != nil {
		t.Fatalf("project by name: %v", err)
	}
	if got.ID != proj.ID {
		t.Errorf("project by name = %s, want %s", got.ID, proj.ID)
	}

	// Lookup by id.
	got, err = defaultProject(ctx, pdb, proj.ID.String())
	if err != nil {
		t.Fatalf("project by id: %v", err)
	}
	if got.ID != proj.ID {
		t.Errorf("project by id = %s, want %s", got.ID, proj.ID)
	}

	// Unknown name and unknown id both fail.
	if _, err := defaultProject(ctx, pdb, "nope"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("unknown name should fail with not found, got: %v", err)
	}
	if _, err := defaultProject(ctx, pdb, uuid.NewString()); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("unknown id should fail with not found, got: %v", err)
	}

	// A second project makes the bare form ambiguous.
	if err := pdb.CreateProject(ctx, &db.Project{Name: "other"}); err != nil {
		t.Fatalf("create second project: %v", err)
	}
	if _, err := defaultProject(ctx, pdb, ""); err == nil || !strings.Contains(err.Error(), "--project") {
		t.Errorf("multiple projects should require --project, got: %v", err)
	}
}

func TestDefaultProject_CreatesWhenEmpty(t *testing.T) {
	pdb := db.NewTestProjectDB(t)
	ctx := context.Background()

	proj, err := defaultProject(ctx, pdb, "")
	if err != nil {
		t.Fatalf("default project: %v", err)
	}
	if proj.Name != "default" {
		t.Errorf("created project name = %q, want %q", proj.Name, "default")
	}

	projects, err := pdb.ListProjects(ctx)
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("expected 1 project after auto-create, got %d", len(projects))
	}
	if projects[0].ID != proj.ID {
		t.Errorf("stored project id = %s, want %s", projects[0].ID, proj.ID)
	}
}

package cli

// NOTE: Tests in this file use os.Chdir() which is process-wide and not goroutine-safe.
// These tests MUST NOT use t.Parallel() and run sequentially within this package.

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/chartwell/trellis/internal/config"
	"github.com/chartwell/trellis/internal/db"
	trelliserrors "github.com/chartwell/trellis/internal/errors"
)

// withNewTestDir creates an initialized project directory, changes to it,
// and restores the original working directory when the test completes.
func withNewTestDir(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()

	if err := config.Init(tmpDir, false); err != nil {
		t.Fatalf("init project: %v", err)
	}

	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir to temp dir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(origDir); err != nil {
			t.Errorf("restore working directory: %v", err)
		}
	})
	return tmpDir
}

// openNewTestDB opens the project database in dir for seeding and
// verifying fixtures.
func openNewTestDB(t *testing.T, dir string) *db.ProjectDB {
	t.Helper()
	pdb, err := db.OpenProject(dir)
	if err != nil {
		t.Fatalf("open project db: %v", err)
	}
	return pdb
}

func TestNewCommand_Flags(t *testing.T) {
	cmd := newNewCmd()

	if cmd.Use != "new <title>" {
		t.Errorf("command Use = %q, want %q", cmd.Use, "new <title>")
	}

	if cmd.Flag("track") == nil {
		t.Error("missing --track flag")
	}
	if cmd.Flag("parent") == nil {
		t.Error("missing --parent flag")
	}
	if cmd.Flag("phase") == nil {
		t.Error("missing --phase flag")
	}
	if cmd.Flag("project") == nil {
		t.Error("missing --project flag")
	}
	if cmd.Flag("desc") == nil {
		t.Error("missing --desc flag")
	}

	if cmd.Flag("track").Shorthand != "t" {
		t.Errorf("track shorthand = %q, want 't'", cmd.Flag("track").Shorthand)
	}
	if cmd.Flag("project").Shorthand != "p" {
		t.Errorf("project shorthand = %q, want 'p'", cmd.Flag("project").Shorthand)
	}
	if cmd.Flag("desc").Shorthand != "d" {
		t.Errorf("desc shorthand = %q, want 'd'", cmd.Flag("desc").Shorthand)
	}
}

func TestNewCommand_CreatesQuickTask(t *testing.T) {
	tmpDir := withNewTestDir(t)

	cmd := newNewCmd()
	cmd.SetArgs([]string{"Fix login bug"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute command: %v", err)
	}

	pdb := openNewTestDB(t, tmpDir)
	defer func() { _ = pdb.Close() }()

	tasks, total, err := pdb.ListTasks(context.Background(), db.ListOpts{})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 task, got %d", total)
	}

	task := tasks[0]
	if task.Title != "Fix login bug" {
		t.Errorf("title = %q, want %q", task.Title, "Fix login bug")
	}
	if task.Track != db.TrackQuick {
		t.Errorf("track = %s, want quick", task.Track)
	}
	if task.Status != db.StatusTodo {
		t.Errorf("status = %s, want todo", task.Status)
	}
	if task.ParentTaskID != nil {
		t.Error("quick task should have no parent")
	}
	if task.PhaseKey != nil {
		t.Error("quick task should have no phase key")
	}
}

func TestNewCommand_StagedSpawnsPhases(t *testing.T) {
	tmpDir := withNewTestDir(t)

	cmd := newNewCmd()
	cmd.SetArgs([]string{"Implement user dashboard", "--track", "staged"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute command: %v", err)
	}

	pdb := openNewTestDB(t, tmpDir)
	defer func() { _ = pdb.Close() }()
	ctx := context.Background()

	tasks, total, err := pdb.ListTasks(ctx, db.ListOpts{})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if total != 8 {
		t.Fatalf("expected 1 root + 7 phase children, got %d tasks", total)
	}

	var root *db.Task
	for _, task := range tasks {
		if task.ParentTaskID == nil {
			root = task
		}
	}
	if root == nil {
		t.Fatal("no root task found")
	}
	if root.Track != db.TrackStaged {
		t.Errorf("root track = %s, want staged", root.Track)
	}

	children, _, err := pdb.ListTasks(ctx, db.ListOpts{ParentTaskID: &root.ID})
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	if len(children) != 7 {
		t.Fatalf("expected 7 phase children, got %d", len(children))
	}

	keys := make(map[string]bool)
	for _, c := range children {
		if c.PhaseKey == nil {
			t.Fatalf("child %s has no phase key", c.ID)
		}
		keys[*c.PhaseKey] = true
		if c.Track != db.TrackStaged {
			t.Errorf("child %s track = %s, want staged", c.ID, c.Track)
		}
		if c.Status != db.StatusTodo {
			t.Errorf("child %s status = %s, want todo", c.ID, c.Status)
		}
	}
	for _, want := range []string{"intake", "prd", "arch", "stories", "impl", "qa", "review"} {
		if !keys[want] {
			t.Errorf("missing phase child %q", want)
		}
	}
}

func TestNewCommand_CustomCatalog(t *testing.T) {
	tmpDir := withNewTestDir(t)

	catalog := "track: research\nphases:\n  - key: survey\n    title: Survey\n  - key: writeup\n    title: Writeup\n"
	catalogPath := filepath.Join(tmpDir, ".trellis", "tracks", "research.yaml")
	if err := os.WriteFile(catalogPath, []byte(catalog), 0644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	cmd := newNewCmd()
	cmd.SetArgs([]string{"Literature review", "--track", "research"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute command: %v", err)
	}

	pdb := openNewTestDB(t, tmpDir)
	defer func() { _ = pdb.Close() }()

	_, total, err := pdb.ListTasks(context.Background(), db.ListOpts{})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if total != 3 {
		t.Errorf("expected root + 2 phase children, got %d tasks", total)
	}
}

func TestNewCommand_PhaseConflict(t *testing.T) {
	tmpDir := withNewTestDir(t)

	// Seed a parent directly so both commands race for the same slot.
	pdb := openNewTestDB(t, tmpDir)
	ctx := context.Background()
	proj := &db.Project{Name: "default"}
	if err := pdb.CreateProject(ctx, proj); err != nil {
		t.Fatalf("create project: %v", err)
	}
	root := &db.Task{ProjectID: proj.ID, Title: "Parent task"}
	if err := pdb.CreateTask(ctx, root); err != nil {
		t.Fatalf("create root: %v", err)
	}
	// Close before running commands
	_ = pdb.Close()

	first := newNewCmd()
	first.SetArgs([]string{"QA pass", "--parent", root.ID.String(), "--phase", "qa"})
	if err := first.Execute(); err != nil {
		t.Fatalf("first claim should succeed: %v", err)
	}

	second := newNewCmd()
	second.SetArgs([]string{"Another QA pass", "--parent", root.ID.String(), "--phase", "qa"})
	err := second.Execute()
	if err == nil {
		t.Fatal("expected error for duplicate phase slot")
	}
	te := trelliserrors.AsTrellisError(err)
	if te == nil || te.Code != trelliserrors.CodePhaseSlotTaken {
		t.Errorf("expected PHASE_SLOT_TAKEN, got: %v", err)
	}
}

func TestNewCommand_UnknownTrack(t *testing.T) {
	withNewTestDir(t)

	cmd := newNewCmd()
	cmd.SetArgs([]string{"Warp drive", "--track", "warp"})
	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for unknown track")
	}
	te := trelliserrors.AsTrellisError(err)
	if te == nil || te.Code != trelliserrors.CodeTrackUnknown {
		t.Errorf("expected TRACK_UNKNOWN, got: %v", err)
	}
}

func TestNewCommand_JSON(t *testing.T) {
	withNewTestDir(t)

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	jsonOut = true
	defer func() { jsonOut = false }()

	cmd := newNewCmd()
	cmd.SetArgs([]string{"Ship dashboard", "--track", "staged"})
	if err := cmd.Execute(); err != nil {
		_ = w.Close()
		os.Stdout = oldStdout
		t.Fatalf("execute command: %v", err)
	}

	_ = w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout

	var result map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("parse JSON output: %v\nOutput was: %s", err, buf.String())
	}

	task, ok := result["task"].(map[string]any)
	if !ok {
		t.Fatalf("JSON output should contain 'task' object, got: %v", result["task"])
	}
	if task["title"] != "Ship dashboard" {
		t.Errorf("task title = %v, want 'Ship dashboard'", task["title"])
	}
	if task["track"] != "staged" {
		t.Errorf("task track = %v, want 'staged'", task["track"])
	}

	children, ok := result["children"].([]any)
	if !ok {
		t.Fatalf("JSON output should contain 'children' array, got: %v", result["children"])
	}
	if len(children) != 7 {
		t.Errorf("expected 7 children in JSON output, got %d", len(children))
	}
}

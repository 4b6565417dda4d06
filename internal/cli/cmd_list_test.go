package cli

// NOTE: Tests in this file use os.Chdir() which is process-wide and not goroutine-safe.
// These tests MUST NOT use t.Parallel() and run sequentially within this package.

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/chartwell/trellis/internal/config"
	"github.com/chartwell/trellis/internal/db"
)

// withListTestDir creates an initialized project directory, changes to it,
// and restores the original working directory when the test completes.
func withListTestDir(t *testing.T) string {
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

// seedTasks creates a project with one task per entry and closes the
// database before the command under test opens its own handle.
func seedTasks(t *testing.T, dir string, entries []*db.Task) {
	t.Helper()
	pdb, err := db.OpenProject(dir)
	if err != nil {
		t.Fatalf("open project db: %v", err)
	}
	ctx := context.Background()

	proj := &db.Project{Name: "default"}
	if err := pdb.CreateProject(ctx, proj); err != nil {
		t.Fatalf("create project: %v", err)
	}
	for _, task := range entries {
		task.ProjectID = proj.ID
		if err := pdb.CreateTask(ctx, task); err != nil {
			t.Fatalf("create task %q: %v", task.Title, err)
		}
	}
	_ = pdb.Close()
}

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func() error) string {
	t.Helper()
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := fn()

	_ = w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout

	if err != nil {
		t.Fatalf("execute command: %v", err)
	}
	return buf.String()
}

func TestListCommand_Flags(t *testing.T) {
	cmd := newListCmd()

	if cmd.Use != "list" {
		t.Errorf("command Use = %q, want %q", cmd.Use, "list")
	}

	if cmd.Flag("track") == nil {
		t.Error("missing --track flag")
	}
	if cmd.Flag("status") == nil {
		t.Error("missing --status flag")
	}
	if cmd.Flag("parent") == nil {
		t.Error("missing --parent flag")
	}
	if cmd.Flag("limit") == nil {
		t.Error("missing --limit flag")
	}

	if cmd.Flag("track").Shorthand != "t" {
		t.Errorf("track shorthand = %q, want 't'", cmd.Flag("track").Shorthand)
	}
	if cmd.Flag("status").Shorthand != "s" {
		t.Errorf("status shorthand = %q, want 's'", cmd.Flag("status").Shorthand)
	}
	if cmd.Flag("limit").Shorthand != "n" {
		t.Errorf("limit shorthand = %q, want 'n'", cmd.Flag("limit").Shorthand)
	}
}

func TestListCommand_Empty(t *testing.T) {
	withListTestDir(t)

	output := captureStdout(t, func() error {
		cmd := newListCmd()
		cmd.SetArgs([]string{})
		return cmd.Execute()
	})

	if !strings.Contains(output, "No tasks found.") {
		t.Errorf("output should mention no tasks, got: %q", output)
	}
}

func TestListCommand_TrackFilter(t *testing.T) {
	tmpDir := withListTestDir(t)

	seedTasks(t, tmpDir, []*db.Task{
		{Title: "Alpha cleanup", Track: db.TrackQuick},
		{Title: "Beta feature", Track: db.TrackStaged},
	})

	output := captureStdout(t, func() error {
		cmd := newListCmd()
		cmd.SetArgs([]string{"--track", "quick"})
		return cmd.Execute()
	})

	if !strings.Contains(output, "Alpha cleanup") {
		t.Error("output should contain the quick task")
	}
	if strings.Contains(output, "Beta feature") {
		t.Error("output should NOT contain the staged task")
	}
}

func TestListCommand_StatusFilter(t *testing.T) {
	tmpDir := withListTestDir(t)

	seedTasks(t, tmpDir, []*db.Task{
		{Title: "Waiting work"},
		{Title: "Active work", Status: db.StatusInProgress},
	})

	output := captureStdout(t, func() error {
		cmd := newListCmd()
		cmd.SetArgs([]string{"--status", "in_progress"})
		return cmd.Execute()
	})

	if !strings.Contains(output, "Active work") {
		t.Error("output should contain the in_progress task")
	}
	if strings.Contains(output, "Waiting work") {
		t.Error("output should NOT contain the todo task")
	}
}

func TestListCommand_Limit(t *testing.T) {
	tmpDir := withListTestDir(t)

	seedTasks(t, tmpDir, []*db.Task{
		{Title: "Task one"},
		{Title: "Task two"},
		{Title: "Task three"},
	})

	output := captureStdout(t, func() error {
		cmd := newListCmd()
		cmd.SetArgs([]string{"--limit", "2"})
		return cmd.Execute()
	})

	if !strings.Contains(output, "Showing 2 of 3 tasks") {
		t.Errorf("output should mention pagination, got: %q", output)
	}
}

func TestListCommand_JSON(t *testing.T) {
	tmpDir := withListTestDir(t)

	seedTasks(t, tmpDir, []*db.Task{
		{Title: "Solo task"},
	})

	jsonOut = true
	defer func() { jsonOut = false }()

	output := captureStdout(t, func() error {
		cmd := newListCmd()
		cmd.SetArgs([]string{})
		return cmd.Execute()
	})

	var result map[string]any
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("parse JSON output: %v\nOutput was: %s", err, output)
	}

	tasks, ok := result["tasks"].([]any)
	if !ok {
		t.Fatalf("JSON output should contain 'tasks' array, got: %v", result["tasks"])
	}
	if len(tasks) != 1 {
		t.Errorf("expected 1 task in JSON output, got %d", len(tasks))
	}
	if total, _ := result["total"].(float64); total != 1 {
		t.Errorf("total = %v, want 1", result["total"])
	}
}

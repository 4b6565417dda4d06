package cli

// NOTE: Tests in this file use os.Chdir() which is process-wide and not goroutine-safe.
// These tests MUST NOT use t.Parallel() and run sequentially within this package.

import (
	"os"
	"strings"
	"testing"

	"github.com/chartwell/trellis/internal/config"
	"github.com/chartwell/trellis/internal/db"
)

// withShowTestDir creates an initialized project directory, changes to it,
// and restores the original working directory when the test completes.
func withShowTestDir(t *testing.T) string {
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

func TestShowCommand_Flags(t *testing.T) {
	cmd := newShowCmd()

	if cmd.Use != "show <task-id>" {
		t.Errorf("command Use = %q, want %q", cmd.Use, "show <task-id>")
	}
	if cmd.Flag("path") == nil {
		t.Error("missing --path flag")
	}
}

func TestShowCommand_Execution(t *testing.T) {
	tmpDir := withShowTestDir(t)

	task := &db.Task{Title: "Database migration", Description: "Move to the new schema"}
	seedTasks(t, tmpDir, []*db.Task{task})

	output := captureStdout(t, func() error {
		cmd := newShowCmd()
		cmd.SetArgs([]string{shortID(task.ID)})
		return cmd.Execute()
	})

	if !strings.Contains(output, "Database migration") {
		t.Error("output should contain the task title")
	}
	if !strings.Contains(output, "Status:") {
		t.Error("output should contain the status line")
	}
	if !strings.Contains(output, "quick") {
		t.Error("output should contain the track")
	}
	if !strings.Contains(output, "Move to the new schema") {
		t.Error("output should contain the description")
	}
}

func TestShowCommand_PathFlag(t *testing.T) {
	tmpDir := withShowTestDir(t)

	task := &db.Task{Title: "Scripted lookup"}
	seedTasks(t, tmpDir, []*db.Task{task})

	output := captureStdout(t, func() error {
		cmd := newShowCmd()
		cmd.SetArgs([]string{shortID(task.ID), "--path", "task.status"})
		return cmd.Execute()
	})

	if got := strings.TrimSpace(output); got != "todo" {
		t.Errorf("--path task.status = %q, want %q", got, "todo")
	}
}

func TestShowCommand_NotFound(t *testing.T) {
	withShowTestDir(t)

	cmd := newShowCmd()
	cmd.SetArgs([]string{"ffffffff"})
	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing task")
	}
	if !strings.Contains(err.Error(), "no task matches") {
		t.Errorf("error should mention 'no task matches', got: %v", err)
	}
}

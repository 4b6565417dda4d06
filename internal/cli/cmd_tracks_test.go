package cli

// NOTE: Tests in this file use os.Chdir() which is process-wide and not goroutine-safe.
// These tests MUST NOT use t.Parallel() and run sequentially within this package.

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chartwell/trellis/internal/config"
)

// withTracksTestDir creates an initialized project directory, changes to it,
// and restores the original working directory when the test completes.
func withTracksTestDir(t *testing.T) string {
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

func TestTracksCommand_Builtins(t *testing.T) {
	withTracksTestDir(t)

	output := captureStdout(t, func() error {
		cmd := newTracksCmd()
		cmd.SetArgs([]string{})
		return cmd.Execute()
	})

	if !strings.Contains(output, "quick") {
		t.Error("output should list the quick track")
	}
	if !strings.Contains(output, "staged") {
		t.Error("output should list the staged track")
	}
	if !strings.Contains(output, "builtin") {
		t.Error("quick should be reported as builtin")
	}
	if !strings.Contains(output, "embedded") {
		t.Error("staged should come from the embedded catalog")
	}
	if !strings.Contains(output, "intake → prd → arch → stories → impl → qa → review") {
		t.Errorf("staged phases should be joined in order, got: %q", output)
	}
}

func TestTracksCommand_ProjectCatalog(t *testing.T) {
	tmpDir := withTracksTestDir(t)

	catalog := "track: research\nphases:\n  - key: survey\n    title: Survey\n  - key: writeup\n    title: Writeup\n"
	catalogPath := filepath.Join(tmpDir, ".trellis", "tracks", "research.yaml")
	if err := os.WriteFile(catalogPath, []byte(catalog), 0644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	output := captureStdout(t, func() error {
		cmd := newTracksCmd()
		cmd.SetArgs([]string{})
		return cmd.Execute()
	})

	if !strings.Contains(output, "research") {
		t.Error("output should list the project track")
	}
	if !strings.Contains(output, "project") {
		t.Error("research should be reported as a project catalog")
	}
	if !strings.Contains(output, "survey → writeup") {
		t.Errorf("research phases should be joined in order, got: %q", output)
	}
}

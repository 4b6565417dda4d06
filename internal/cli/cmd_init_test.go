package cli

// NOTE: Tests in this file use os.Chdir() which is process-wide and not goroutine-safe.
// These tests MUST NOT use t.Parallel() and run sequentially within this package.

import (
	"os"
	"path/filepath"
	"testing"

	trelliserrors "github.com/chartwell/trellis/internal/errors"
)

// withInitTestDir changes into a bare temp directory so the init command
// starts from nothing, and restores the working directory afterwards.
func withInitTestDir(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()

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

func TestInitCommand_Flags(t *testing.T) {
	cmd := newInitCmd()

	if cmd.Use != "init" {
		t.Errorf("command Use = %q, want %q", cmd.Use, "init")
	}
	if cmd.Flag("force") == nil {
		t.Error("missing --force flag")
	}
	if cmd.Flag("force").Shorthand != "f" {
		t.Errorf("force shorthand = %q, want 'f'", cmd.Flag("force").Shorthand)
	}
}

func TestInitCommand_CreatesProject(t *testing.T) {
	tmpDir := withInitTestDir(t)

	cmd := newInitCmd()
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute command: %v", err)
	}

	for _, path := range []string{
		filepath.Join(tmpDir, ".trellis", "config.yaml"),
		filepath.Join(tmpDir, ".trellis", "trellis.db"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to exist: %v", path, err)
		}
	}

	info, err := os.Stat(filepath.Join(tmpDir, ".trellis", "tracks"))
	if err != nil {
		t.Fatalf("expected tracks directory: %v", err)
	}
	if !info.IsDir() {
		t.Error("tracks should be a directory")
	}
}

func TestInitCommand_AlreadyInitialized(t *testing.T) {
	withInitTestDir(t)

	first := newInitCmd()
	first.SetArgs([]string{})
	if err := first.Execute(); err != nil {
		t.Fatalf("first init: %v", err)
	}

	second := newInitCmd()
	second.SetArgs([]string{})
	err := second.Execute()
	if err == nil {
		t.Fatal("expected error for repeated init")
	}
	te := trelliserrors.AsTrellisError(err)
	if te == nil || te.Code != trelliserrors.CodeAlreadyInitialized {
		t.Errorf("expected TRELLIS_ALREADY_INITIALIZED, got: %v", err)
	}

	forced := newInitCmd()
	forced.SetArgs([]string{"--force"})
	if err := forced.Execute(); err != nil {
		t.Fatalf("forced init should succeed: %v", err)
	}
}

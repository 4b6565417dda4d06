// Test helpers. In-memory databases keep tests fast; cleanup and
// migrations are handled here so tests don't repeat the boilerplate.

package db

import (
	"testing"
)

// NewTestProjectDB creates a migrated in-memory project database.
// The database is closed automatically when the test completes.
func NewTestProjectDB(t testing.TB) *ProjectDB {
	t.Helper()

	pdb, err := OpenProjectInMemory()
	if err != nil {
		t.Fatalf("create test project db: %v", err)
	}

	t.Cleanup(func() {
		_ = pdb.Close()
	})

	return pdb
}

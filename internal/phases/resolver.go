package phases

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/chartwell/trellis/templates"
)

// ErrNotFound is returned when no catalog defines the requested track.
var ErrNotFound = errors.New("track not found")

// Source indicates where a catalog came from.
type Source string

const (
	SourceProject  Source = "project"  // .trellis/tracks/
	SourceEmbedded Source = "embedded" // Built into the binary
)

// ResolvedCatalog pairs a catalog with its source.
type ResolvedCatalog struct {
	Catalog  *Catalog `json:"catalog"`
	Source   Source   `json:"source"`
	FilePath string   `json:"file_path,omitempty"` // For file sources
}

// Resolver resolves track catalogs. Project files shadow embedded catalogs
// that declare the same track name.
type Resolver struct {
	tracksDir string // .trellis/tracks/
	embedded  bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithTracksDir sets the project tracks directory.
func WithTracksDir(dir string) ResolverOption {
	return func(r *Resolver) {
		r.tracksDir = dir
	}
}

// WithEmbedded enables or disables the built-in catalogs.
func WithEmbedded(enabled bool) ResolverOption {
	return func(r *Resolver) {
		r.embedded = enabled
	}
}

// NewResolver creates a Resolver with the given options.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		embedded: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewResolverFromTrellisDir creates a Resolver for a project's .trellis
// directory.
func NewResolverFromTrellisDir(trellisDir string) *Resolver {
	return NewResolver(WithTracksDir(filepath.Join(trellisDir, "tracks")))
}

// Resolve returns the catalog for a track name, project files first.
func (r *Resolver) Resolve(track string) (*ResolvedCatalog, error) {
	for _, rc := range r.projectCatalogs() {
		if rc.Catalog.Track == track {
			return rc, nil
		}
	}
	if r.embedded {
		for _, rc := range r.embeddedCatalogs() {
			if rc.Catalog.Track == track {
				return rc, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, track)
}

// Known reports whether any catalog defines the track.
func (r *Resolver) Known(track string) bool {
	_, err := r.Resolve(track)
	return err == nil
}

// List returns all catalogs sorted by track name. A project file shadows an
// embedded catalog with the same track name.
func (r *Resolver) List() []ResolvedCatalog {
	seen := make(map[string]*ResolvedCatalog)

	for _, rc := range r.projectCatalogs() {
		if _, exists := seen[rc.Catalog.Track]; exists {
			continue // First file wins
		}
		seen[rc.Catalog.Track] = rc
	}

	if r.embedded {
		for _, rc := range r.embeddedCatalogs() {
			if _, exists := seen[rc.Catalog.Track]; exists {
				continue // Shadowed by a project file
			}
			seen[rc.Catalog.Track] = rc
		}
	}

	result := make([]ResolvedCatalog, 0, len(seen))
	for _, rc := range seen {
		result = append(result, *rc)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Catalog.Track < result[j].Catalog.Track
	})
	return result
}

// projectCatalogs loads catalogs from the tracks directory. The scan is
// recursive so projects can group track files in subdirectories.
func (r *Resolver) projectCatalogs() []*ResolvedCatalog {
	if r.tracksDir == "" {
		return nil
	}
	if _, err := os.Stat(r.tracksDir); err != nil {
		return nil // Directory doesn't exist
	}

	matches, err := doublestar.Glob(os.DirFS(r.tracksDir), "**/*.yaml")
	if err != nil {
		slog.Warn("failed to scan tracks directory", "dir", r.tracksDir, "error", err)
		return nil
	}
	sort.Strings(matches)

	var result []*ResolvedCatalog
	for _, rel := range matches {
		path := filepath.Join(r.tracksDir, rel)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		catalog, err := parseCatalog(data)
		if err != nil {
			slog.Warn("failed to parse track file", "path", path, "error", err)
			continue
		}
		result = append(result, &ResolvedCatalog{
			Catalog:  catalog,
			Source:   SourceProject,
			FilePath: path,
		})
	}
	return result
}

// embeddedCatalogs loads the built-in catalogs.
func (r *Resolver) embeddedCatalogs() []*ResolvedCatalog {
	entries, err := templates.Tracks.ReadDir("tracks")
	if err != nil {
		slog.Warn("failed to list embedded tracks", "error", err)
		return nil
	}

	var result []*ResolvedCatalog
	for _, entry := range entries {
		data, err := templates.Tracks.ReadFile("tracks/" + entry.Name())
		if err != nil {
			continue
		}
		catalog, err := parseCatalog(data)
		if err != nil {
			slog.Warn("failed to parse embedded track", "name", entry.Name(), "error", err)
			continue
		}
		result = append(result, &ResolvedCatalog{
			Catalog: catalog,
			Source:  SourceEmbedded,
		})
	}
	return result
}

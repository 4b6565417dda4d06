// Package phases resolves per-track phase catalogs.
//
// A catalog lists the ordered phase slots a structured-track task spawns
// under itself. The built-in staged catalog ships embedded in the binary;
// projects can override it or define new tracks with YAML files under
// .trellis/tracks/.
package phases

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Phase is one slot in a track's catalog.
type Phase struct {
	Key         string `json:"key" yaml:"key"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Catalog is the ordered phase list for one track.
type Catalog struct {
	Track       string  `json:"track" yaml:"track"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Phases      []Phase `json:"phases" yaml:"phases"`
}

// Validate checks structural invariants: a track name, at least one phase,
// and non-empty unique phase keys with titles.
func (c *Catalog) Validate() error {
	if strings.TrimSpace(c.Track) == "" {
		return fmt.Errorf("catalog missing track name")
	}
	if len(c.Phases) == 0 {
		return fmt.Errorf("track %s: no phases defined", c.Track)
	}
	seen := make(map[string]bool, len(c.Phases))
	for i, p := range c.Phases {
		key := strings.TrimSpace(p.Key)
		if key == "" {
			return fmt.Errorf("track %s: phase %d has no key", c.Track, i)
		}
		if seen[key] {
			return fmt.Errorf("track %s: duplicate phase key %q", c.Track, key)
		}
		seen[key] = true
		if strings.TrimSpace(p.Title) == "" {
			return fmt.Errorf("track %s: phase %q has no title", c.Track, key)
		}
	}
	return nil
}

// Keys returns the phase keys in catalog order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.Phases))
	for i, p := range c.Phases {
		keys[i] = p.Key
	}
	return keys
}

// parseCatalog unmarshals and validates a catalog file.
func parseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Package templates provides embedded track definitions.
package templates

import "embed"

// Tracks contains the built-in track catalog files. Each file defines one
// track: its name and the ordered phase slots a staged task spawns.
//
//go:embed tracks/*.yaml
var Tracks embed.FS

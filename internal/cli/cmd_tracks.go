package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chartwell/trellis/internal/config"
	"github.com/chartwell/trellis/internal/db"
	"github.com/chartwell/trellis/internal/phases"
)

// newTracksCmd creates the tracks command
func newTracksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tracks",
		Short: "List known track catalogs",
		Long: `List every track tasks can be created on.

Built-in tracks are always available. Files in .trellis/tracks define
custom catalogs; a project file that declares the same track name as a
built-in shadows it.

Example:
  trellis tracks
  trellis tracks --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return err
			}
			tracksDir := filepath.Join(config.TrellisDir, "tracks")
			if cfg.Tracks.Dir != "" {
				tracksDir = cfg.Tracks.Dir
			}
			resolver := phases.NewResolver(phases.WithTracksDir(tracksDir))

			type trackRow struct {
				Track  string   `json:"track"`
				Source string   `json:"source"`
				Phases []string `json:"phases"`
			}

			var rows []trackRow
			seen := make(map[string]bool)
			for _, rc := range resolver.List() {
				rows = append(rows, trackRow{
					Track:  rc.Catalog.Track,
					Source: string(rc.Source),
					Phases: rc.Catalog.Keys(),
				})
				seen[rc.Catalog.Track] = true
			}
			for _, t := range []db.Track{db.TrackQuick, db.TrackStaged} {
				if !seen[string(t)] {
					rows = append(rows, trackRow{Track: string(t), Source: "builtin", Phases: []string{}})
				}
			}
			sort.Slice(rows, func(i, j int) bool { return rows[i].Track < rows[j].Track })

			if jsonOut {
				return printJSON(rows)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "TRACK\tSOURCE\tPHASES")
			for _, row := range rows {
				phaseList := "-"
				if len(row.Phases) > 0 {
					phaseList = strings.Join(row.Phases, " → ")
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", row.Track, row.Source, phaseList)
			}
			_ = w.Flush()

			return nil
		},
	}
}

package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chartwell/trellis/internal/config"
	"github.com/chartwell/trellis/internal/db"
)

// newInitCmd creates the init command
func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize trellis in the current directory",
		Long: `Initialize trellis in the current directory.

Creates the .trellis directory with a default config, a tracks
directory for custom phase catalogs, and the project database.

Example:
  trellis init
  trellis init --force   # Reinitialize, keeping existing tasks`,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")

			if err := config.Init(".", force); err != nil {
				return err
			}

			// Opening the database runs migrations, so an upgrade
			// is the same operation as a fresh init.
			pdb, err := db.OpenProject(".")
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = pdb.Close() }()

			if !quiet {
				fmt.Println("Initialized trellis project")
				fmt.Printf("   Config:   %s\n", config.ConfigPath("."))
				fmt.Printf("   Database: %s\n", filepath.Join(db.TrellisDir, db.DBFileName))
				fmt.Printf("   Tracks:   %s\n", filepath.Join(config.TrellisDir, "tracks"))
				fmt.Println("\nNext steps:")
				fmt.Println("  trellis new \"My first task\"      - Create a task")
				fmt.Println("  trellis new \"Big one\" --track staged")
			}

			return nil
		},
	}
	cmd.Flags().BoolP("force", "f", false, "reinitialize even if .trellis exists")
	return cmd
}

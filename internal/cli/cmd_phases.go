package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chartwell/trellis/internal/db"
)

// newPhasesCmd creates the phases command group
func newPhasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phases",
		Short: "Manage a task's phase children",
	}
	cmd.AddCommand(newPhasesEnsureCmd())
	cmd.AddCommand(newPhasesListCmd())
	return cmd
}

// newPhasesEnsureCmd creates the phases ensure command
func newPhasesEnsureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure <task-id>",
		Short: "Spawn missing phase children for a task's track",
		Long: `Spawn any missing phase children for a task's track catalog.

Already-filled slots are left alone, so running this twice is safe.
Useful after switching a task to a track with a catalog:

  trellis show 3f2a --path task.track
  trellis phases ensure 3f2a

Tracks without a catalog (like quick) spawn nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, pdb, err := newService()
			if err != nil {
				return err
			}
			defer func() { _ = pdb.Close() }()

			ctx := cmd.Context()

			task, err := findTask(ctx, svc, args[0])
			if err != nil {
				return err
			}

			before, err := svc.Children(ctx, task.ID)
			if err != nil {
				return err
			}
			children, err := svc.EnsurePhases(ctx, task.ID)
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(children)
			}

			spawned := len(children) - len(before)
			if spawned < 0 {
				spawned = 0
			}
			fmt.Printf("Phases for %s: %d spawned, %d total\n", shortID(task.ID), spawned, len(children))
			for _, c := range children {
				if c.PhaseKey == nil {
					continue
				}
				fmt.Printf("  %s %s %s [%s]\n", statusIcon(c.Status), shortID(c.ID), c.Title, *c.PhaseKey)
			}

			return nil
		},
	}
}

// newPhasesListCmd creates the phases list command
func newPhasesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <task-id>",
		Short: "List a task's phase children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, pdb, err := newService()
			if err != nil {
				return err
			}
			defer func() { _ = pdb.Close() }()

			ctx := cmd.Context()

			task, err := findTask(ctx, svc, args[0])
			if err != nil {
				return err
			}
			children, err := svc.Children(ctx, task.ID)
			if err != nil {
				return err
			}

			phased := make([]*db.Task, 0, len(children))
			for _, c := range children {
				if c.PhaseKey != nil {
					phased = append(phased, c)
				}
			}

			if jsonOut {
				return printJSON(phased)
			}

			if len(phased) == 0 {
				fmt.Println("No phase children.")
				return nil
			}
			for _, c := range phased {
				fmt.Printf("  %s %s %s [%s]\n", statusIcon(c.Status), shortID(c.ID), c.Title, *c.PhaseKey)
			}

			return nil
		},
	}
}

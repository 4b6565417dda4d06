package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newDeleteCmd creates the delete command
func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
		Long: `Delete a task.

Tasks with children are protected; pass --force to delete the whole
subtree in one go.

Example:
  trellis delete 3f2a           # Delete a leaf task
  trellis delete 3f2a --force   # Delete the task and its children`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")

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

			if !quiet {
				fmt.Printf("Deleting task %s (%s)...\n", shortID(task.ID), task.Title)
			}

			cascaded, err := svc.Delete(ctx, task.ID, force)
			if err != nil {
				return err
			}

			if !quiet {
				if cascaded > 0 {
					fmt.Printf("Deleted task %s and %d descendant(s)\n", shortID(task.ID), cascaded)
				} else {
					fmt.Printf("Deleted task %s\n", shortID(task.ID))
				}
			}

			return nil
		},
	}
	cmd.Flags().BoolP("force", "f", false, "delete children too")
	return cmd
}

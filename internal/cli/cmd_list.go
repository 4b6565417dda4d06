package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chartwell/trellis/internal/db"
)

// newListCmd creates the list command
func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long: `List tasks, newest first.

Filters combine: --track staged --status todo shows only staged tasks
still waiting to start. --parent limits output to one task's children.

Example:
  trellis list
  trellis list --track staged
  trellis list --status in_progress
  trellis list --parent 3f2a
  trellis list --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			track, _ := cmd.Flags().GetString("track")
			status, _ := cmd.Flags().GetString("status")
			parentArg, _ := cmd.Flags().GetString("parent")
			limit, _ := cmd.Flags().GetInt("limit")

			svc, pdb, err := newService()
			if err != nil {
				return err
			}
			defer func() { _ = pdb.Close() }()

			ctx := cmd.Context()

			opts := db.ListOpts{
				Track:  db.Track(track),
				Status: db.Status(status),
				Limit:  limit,
			}
			if parentArg != "" {
				parent, err := findTask(ctx, svc, parentArg)
				if err != nil {
					return err
				}
				opts.ParentTaskID = &parent.ID
			}

			tasks, total, err := svc.List(ctx, opts)
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(map[string]any{
					"tasks": tasks,
					"total": total,
				})
			}

			if len(tasks) == 0 {
				fmt.Println("No tasks found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tTRACK\tSTATUS\tPHASE\tTITLE")
			for _, t := range tasks {
				phase := "-"
				if t.PhaseKey != nil {
					phase = *t.PhaseKey
				}
				title := t.Title
				if len(title) > 60 {
					title = title[:57] + "..."
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					shortID(t.ID), t.Track, t.Status, phase, title)
			}
			_ = w.Flush()

			if total > len(tasks) {
				fmt.Printf("\nShowing %d of %d tasks\n", len(tasks), total)
			}

			return nil
		},
	}
	cmd.Flags().StringP("track", "t", "", "filter by track")
	cmd.Flags().StringP("status", "s", "", "filter by status")
	cmd.Flags().String("parent", "", "show children of this task (full or prefix id)")
	cmd.Flags().IntP("limit", "n", 0, "limit output (0 = all)")
	return cmd
}

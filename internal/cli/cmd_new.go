package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chartwell/trellis/internal/db"
	"github.com/chartwell/trellis/internal/hierarchy"
)

// newNewCmd creates the new task command
func newNewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new <title>",
		Short: "Create a new task",
		Long: `Create a new task.

Tasks default to the quick track, which stands alone. Tracks with a
phase catalog spawn one child task per phase; the built-in staged
track runs intake through review.

Use --parent to create a child under an existing task. Adding --phase
claims that parent's phase slot; each (parent, phase) pair can only be
claimed once. Children without --phase are unlimited.

Example:
  trellis new "Fix authentication timeout bug"
  trellis new "Implement user dashboard" --track staged
  trellis new "Investigate flaky test" --parent 3f2a --phase qa
  trellis new "Side quest" --parent 3f2a
  trellis new "Write docs" --desc "Cover the new API endpoints"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := args[0]
			track, _ := cmd.Flags().GetString("track")
			parentArg, _ := cmd.Flags().GetString("parent")
			phase, _ := cmd.Flags().GetString("phase")
			projectArg, _ := cmd.Flags().GetString("project")
			description, _ := cmd.Flags().GetString("desc")

			svc, pdb, err := newService()
			if err != nil {
				return err
			}
			defer func() { _ = pdb.Close() }()

			ctx := cmd.Context()

			proj, err := defaultProject(ctx, pdb, projectArg)
			if err != nil {
				return err
			}

			req := hierarchy.CreateRequest{
				ProjectID:   proj.ID,
				Title:       title,
				Description: description,
				Track:       db.Track(track),
			}
			if parentArg != "" {
				parent, err := findTask(ctx, svc, parentArg)
				if err != nil {
					return err
				}
				req.ParentTaskID = &parent.ID
			}
			if phase != "" {
				req.PhaseKey = &phase
			}

			task, err := svc.Create(ctx, req)
			if err != nil {
				return err
			}

			children, err := svc.Children(ctx, task.ID)
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(map[string]any{
					"task":     task,
					"children": children,
				})
			}

			fmt.Printf("Task created: %s\n", task.ID)
			fmt.Printf("   Title:   %s\n", task.Title)
			fmt.Printf("   Track:   %s\n", task.Track)
			fmt.Printf("   Status:  %s\n", task.Status)
			if task.ParentTaskID != nil {
				fmt.Printf("   Parent:  %s\n", *task.ParentTaskID)
			}
			if task.PhaseKey != nil {
				fmt.Printf("   Phase:   %s\n", *task.PhaseKey)
			}
			if len(children) > 0 {
				fmt.Printf("   Phases:  %d spawned\n", len(children))
				for _, c := range children {
					fmt.Printf("     %s  %s\n", shortID(c.ID), *c.PhaseKey)
				}
			}

			if !quiet {
				fmt.Println("\nNext steps:")
				fmt.Printf("  trellis show %s    - View task details\n", shortID(task.ID))
				fmt.Printf("  trellis tree %s    - View the hierarchy\n", shortID(task.ID))
			}

			return nil
		},
	}
	cmd.Flags().StringP("track", "t", "", "task track (quick, staged, or a custom catalog)")
	cmd.Flags().String("parent", "", "parent task id (full or prefix)")
	cmd.Flags().String("phase", "", "phase slot to claim under --parent")
	cmd.Flags().StringP("project", "p", "", "project id or name")
	cmd.Flags().StringP("desc", "d", "", "task description")
	return cmd
}

package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chartwell/trellis/internal/db"
)

// newShowCmd creates the show command
func newShowCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show task details",
		Long: `Show task details including placement and phase children.

With --json the full record is printed as JSON. --path extracts a
single value from that JSON (gjson syntax), handy in scripts:

  trellis show 3f2a --path task.status
  trellis show 3f2a --path children.#
  trellis show 3f2a --path 'children.#(phase_key=="qa").id'

Examples:
  trellis show 3f2a
  trellis show 3f2a --json
  trellis show 3f2a --path task.track`,
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
			parent, err := svc.Parent(ctx, task.ID)
			if err != nil {
				return err
			}
			children, err := svc.Children(ctx, task.ID)
			if err != nil {
				return err
			}

			if jsonOut || path != "" {
				result := map[string]any{
					"task":     task,
					"parent":   parent,
					"children": children,
				}
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return err
				}
				if path != "" {
					fmt.Println(extractJSONPath(string(data), path))
					return nil
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("\n%s - %s\n", task.ID, task.Title)
			fmt.Printf("────────────────────────────────────────────\n")
			fmt.Printf("Status:    %s\n", task.Status)
			fmt.Printf("Track:     %s\n", task.Track)
			if task.PhaseKey != nil {
				fmt.Printf("Phase:     %s\n", *task.PhaseKey)
			}
			if parent != nil {
				fmt.Printf("Parent:    %s (%s)\n", shortID(parent.ID), parent.Title)
			}
			fmt.Printf("Created:   %s\n", task.CreatedAt.Format(time.RFC3339))
			fmt.Printf("Updated:   %s\n", task.UpdatedAt.Format(time.RFC3339))

			if task.Description != "" {
				fmt.Printf("\nDescription:\n%s\n", task.Description)
			}

			if len(children) > 0 {
				fmt.Printf("\nChildren:\n")
				for _, c := range children {
					fmt.Printf("  %s %s %s", statusIcon(c.Status), shortID(c.ID), c.Title)
					if c.PhaseKey != nil {
						fmt.Printf(" [%s]", *c.PhaseKey)
					}
					fmt.Println()
				}
			}

			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "extract a value from the JSON output (gjson syntax)")
	return cmd
}

// statusIcon returns a one-character marker for a task status.
func statusIcon(s db.Status) string {
	switch s {
	case db.StatusDone:
		return "✓"
	case db.StatusInProgress:
		return "▶"
	case db.StatusInReview:
		return "◆"
	case db.StatusCancelled:
		return "✗"
	default:
		return "○"
	}
}

package cli

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/chartwell/trellis/internal/db"
)

// treeNode pairs a task with its resolved children.
type treeNode struct {
	Task     *db.Task    `json:"task"`
	Children []*treeNode `json:"children"`
}

// newTreeCmd creates the tree command
func newTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree [task-id]",
		Short: "Show the task hierarchy",
		Long: `Show tasks as a tree, roots first, children indented beneath
their parents. With a task id, only that subtree is shown.

Long output is piped through a pager when stdout is a terminal.

Example:
  trellis tree
  trellis tree 3f2a
  trellis tree --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, pdb, err := newService()
			if err != nil {
				return err
			}
			defer func() { _ = pdb.Close() }()

			ctx := cmd.Context()

			tasks, _, err := svc.List(ctx, db.ListOpts{})
			if err != nil {
				return err
			}

			byParent := make(map[uuid.UUID][]*db.Task)
			byID := make(map[uuid.UUID]*db.Task, len(tasks))
			var roots []*db.Task
			for _, t := range tasks {
				byID[t.ID] = t
				if t.ParentTaskID == nil {
					roots = append(roots, t)
				} else {
					byParent[*t.ParentTaskID] = append(byParent[*t.ParentTaskID], t)
				}
			}

			var build func(t *db.Task) *treeNode
			build = func(t *db.Task) *treeNode {
				kids := byParent[t.ID]
				sortTasksForTree(kids)
				node := &treeNode{Task: t, Children: make([]*treeNode, 0, len(kids))}
				for _, k := range kids {
					node.Children = append(node.Children, build(k))
				}
				return node
			}

			var nodes []*treeNode
			if len(args) == 1 {
				task, err := findTask(ctx, svc, args[0])
				if err != nil {
					return err
				}
				nodes = []*treeNode{build(byID[task.ID])}
			} else {
				sortTasksForTree(roots)
				for _, r := range roots {
					nodes = append(nodes, build(r))
				}
			}

			if jsonOut {
				return printJSON(nodes)
			}

			if len(nodes) == 0 {
				fmt.Println("No tasks found.")
				return nil
			}

			var b strings.Builder
			for _, n := range nodes {
				renderTree(&b, n, "", true, true)
			}
			output := b.String()

			const pagerThreshold = 50
			if strings.Count(output, "\n") > pagerThreshold && isatty.IsTerminal(os.Stdout.Fd()) {
				if showWithPager(output) {
					return nil
				}
			}
			fmt.Print(output)

			return nil
		},
	}
	return cmd
}

// sortTasksForTree orders siblings oldest first, matching the order
// phase children were spawned in.
func sortTasksForTree(tasks []*db.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID.String() < tasks[j].ID.String()
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}

// renderTree writes one node and its subtree with box-drawing guides.
func renderTree(b *strings.Builder, n *treeNode, prefix string, isLast, isRoot bool) {
	line := fmt.Sprintf("%s %s %s", statusIcon(n.Task.Status), shortID(n.Task.ID), n.Task.Title)
	if n.Task.PhaseKey != nil {
		line += fmt.Sprintf(" [%s]", *n.Task.PhaseKey)
	}
	if n.Task.ParentTaskID == nil {
		line += fmt.Sprintf(" (%s)", n.Task.Track)
	}

	if isRoot {
		b.WriteString(line + "\n")
	} else {
		connector := "├── "
		if isLast {
			connector = "└── "
		}
		b.WriteString(prefix + connector + line + "\n")
	}

	childPrefix := prefix
	if !isRoot {
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	}
	for i, child := range n.Children {
		renderTree(b, child, childPrefix, i == len(n.Children)-1, false)
	}
}

// showWithPager pipes content through less or more. Returns false if
// no pager could be run.
func showWithPager(content string) bool {
	pagerPath, err := exec.LookPath("less")
	if err != nil {
		pagerPath, err = exec.LookPath("more")
		if err != nil {
			return false
		}
	}

	cmd := exec.Command(pagerPath)
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return false
	}
	return true
}

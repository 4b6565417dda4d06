package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chartwell/trellis/internal/api"
	"github.com/chartwell/trellis/internal/config"
)

// newServeCmd creates the serve command for the API server
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the trellis API server.

The server provides REST endpoints for tasks, projects, workspaces,
tracks, and stats, plus a WebSocket event stream at /api/events/ws.

Example:
  trellis serve              # Start on the configured address (default :8080)
  trellis serve --port 3000  # Start on a custom port`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RequireInit("."); err != nil {
				return err
			}

			cfg, err := config.Load(".")
			if err != nil {
				return err
			}

			addr := cfg.Server.Addr
			if cmd.Flags().Changed("port") {
				port, _ := cmd.Flags().GetInt("port")
				addr = fmt.Sprintf(":%d", port)
			}

			server, err := api.New(&api.Config{
				Addr:        addr,
				WorkDir:     ".",
				EventBuffer: cfg.Events.Buffer,
				Logger:      cliLogger(),
			})
			if err != nil {
				return err
			}
			defer func() { _ = server.Close() }()

			if !quiet {
				fmt.Printf("Starting API server on %s\n", addr)
				fmt.Println("Press Ctrl+C to stop")
			}

			// Handle graceful shutdown
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			go func() {
				<-sigCh
				if !quiet {
					fmt.Println("\nShutting down...")
				}
				cancel()
			}()

			return server.StartContext(ctx)
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "port to listen on")

	return cmd
}

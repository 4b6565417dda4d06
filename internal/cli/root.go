// Package cli implements the trellis command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
	jsonOut bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trellis",
	Short: "Task hierarchy manager",
	Long: `trellis manages tasks, their parent/child hierarchy, and per-track
phase pipelines backed by a local database.

Tasks live on a track. Quick tasks stand alone; tracks with a phase
catalog (like the built-in staged track) spawn one child per phase,
and each (parent, phase) slot can only be filled once.

Quick start:
  trellis init                     Initialize trellis in current project
  trellis new "Fix login bug"      Create a quick task
  trellis new "Ship v2" --track staged
  trellis tree                     Show the task hierarchy
  trellis serve                    Start the REST/WebSocket API`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .trellis/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")

	// Add subcommands
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newNewCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newTreeCmd())
	rootCmd.AddCommand(newPhasesCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newTracksCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in .trellis directory
		viper.AddConfigPath(".trellis")
		viper.AddConfigPath("$HOME/.trellis")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("TRELLIS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

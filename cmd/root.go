// Package cmd wires packastack's cobra subcommands to the service
// package, keeping argument parsing and output formatting separate from
// the business logic it drives.
package cmd

import (
	"fmt"
	"os"

	"packastack/config"
	"packastack/log"
	"packastack/service"

	"github.com/spf13/cobra"
)

var (
	configDir string
	profile string
)

var rootCmd = &cobra.Command{
	Use: "packastack",
	Short: "Batch-build OpenStack packaging against an Ubuntu series",
	Long: `packastack resolves, plans, and builds a closure of OpenStack
packaging repositories against a target Ubuntu series, tracking
per-package progress in a resumable run state.`,
	SilenceUsage: true,
}

// Execute runs the root command, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "packastack:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "configuration directory (default: /etc/packastack or ~/.config/packastack)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "INI profile section to overlay on [Global Configuration]")
}

// newService loads configuration and opens a Service, the common
// entrypoint every subcommand's RunE starts from.
func newService() (*service.Service, error) {
	cfg, err := config.LoadConfig(configDir, profile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger, err := log.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening logs: %w", err)
	}
	return service.NewService(cfg, logger)
}

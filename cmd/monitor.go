package cmd

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"packastack/monitor"

	"github.com/spf13/cobra"
)

var (
	monitorRunDir string
	monitorNoTUI bool
	monitorInterval time.Duration
)

var monitorCmd = &cobra.Command{
	Use: "monitor <run-id>",
	Short: "Watch a build run's progress live",
	Args: cobra.ExactArgs(1),
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorRunDir, "run-dir", "", "directory the run state was persisted under (required)")
	monitorCmd.Flags().BoolVar(&monitorNoTUI, "no-tui", false, "use a plain stdout progress line instead of the interactive dashboard")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", time.Second, "poll interval")
	monitorCmd.MarkFlagRequired("run-dir")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	runID := args[0]

	stop := make(chan struct{})
	var closeOnce sync.Once
	closeStop := func() { closeOnce.Do(func() { close(stop) }) }

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		closeStop()
	}()

	var ui monitor.UI
	if monitorNoTUI {
		ui = monitor.NewStdoutUI()
	} else {
		ui = monitor.NewTUI(closeStop)
	}

	return monitor.Watch(monitorRunDir, runID, monitorInterval, ui, stop)
}

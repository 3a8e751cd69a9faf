package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use: "prune",
	Short: "Remove stale per-worker build directories and expired tarball-cache entries",
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.Prune()
	if err != nil {
		return err
	}

	fmt.Printf("removed %d stale worker directories\n", len(result.RemovedWorkerDirs))
	for _, d := range result.RemovedWorkerDirs {
		fmt.Println(" ", d)
	}
	fmt.Printf("expired %d tarball-cache entries\n", len(result.RemovedTarballs))
	for _, t := range result.RemovedTarballs {
		fmt.Println(" ", t)
	}
	return nil
}

package cmd

import (
	"fmt"
	"os"

	"packastack/reports"
	"packastack/target"

	"github.com/spf13/cobra"
)

var planFlags sharedFlags

var planCmd = &cobra.Command{
	Use: "plan <target-expr>...",
	Short: "Resolve targets and build a version-decided, dependency-ordered build plan",
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

func init() {
	addSharedFlags(planCmd, &planFlags)
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	if target.DetectShellExpansion(args) {
		fmt.Fprintln(os.Stderr, "warning: multiple target expressions share a prefix and use no ^/~/: syntax; check your shell didn't expand a glob")
	}

	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	universe, err := svc.LoadUniverse()
	if err != nil {
		return err
	}

	opts, err := buildPlanOptions(cmd.Context(), &planFlags)
	if err != nil {
		return err
	}

	plan, err := svc.Plan(universe, args, opts)
	if err != nil {
		return err
	}

	summary := reports.BuildPlanSummary(plan.SatisfyResults)
	fmt.Println(summary.RenderText())
	fmt.Printf("build order: %v\n", plan.Manifest.BuildOrder)
	if plan.Manifest.CycleWarning != "" {
		fmt.Println("warning:", plan.Manifest.CycleWarning)
	}
	return nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var explainFlags sharedFlags

var explainCmd = &cobra.Command{
	Use: "explain <target-expr>",
	Short: "Explain the resolved build type, version, and dependency satisfaction for one target",
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

func init() {
	addSharedFlags(explainCmd, &explainFlags)
	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	universe, err := svc.LoadUniverse()
	if err != nil {
		return err
	}

	opts, err := buildPlanOptions(cmd.Context(), &explainFlags)
	if err != nil {
		return err
	}

	plan, err := svc.Plan(universe, args, opts)
	if err != nil {
		return err
	}

	explanation, err := svc.Explain(universe, args[0], plan)
	if err != nil {
		return err
	}

	fmt.Print(explanation.RenderText())
	return nil
}

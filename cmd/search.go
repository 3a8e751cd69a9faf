package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use: "search <target-expr>",
	Short: "List every identity matching a target expression, without requiring a unique match",
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	universe, err := svc.LoadUniverse()
	if err != nil {
		return err
	}

	matches, err := svc.Search(universe, args[0])
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for _, m := range matches {
		fmt.Printf("%-30s origin=%-10s kind=%-8s governed=%v\n", m.SourcePackage, m.Origin, m.Kind, m.Governed)
	}
	return nil
}

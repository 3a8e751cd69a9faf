package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"packastack/depsync"
	"packastack/service"
	"packastack/version"

	"github.com/spf13/cobra"
)

var syncFlags sharedFlags
var syncUpstreamDeclsPath string

var syncCmd = &cobra.Command{
	Use: "sync <package>",
	Short: "Merge an upstream ecosystem's declared dependencies into a package's packaging constraints",
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	addSharedFlags(syncCmd, &syncFlags)
	syncCmd.Flags().StringVar(&syncUpstreamDeclsPath, "upstream-declarations", "", "JSON file listing upstream dependency declarations (required)")
	syncCmd.MarkFlagRequired("upstream-declarations")
	rootCmd.AddCommand(syncCmd)
}

func loadUpstreamDeclarations(path string) ([]depsync.UpstreamDeclaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading upstream declarations: %w", err)
	}
	var decls []depsync.UpstreamDeclaration
	if err := json.Unmarshal(data, &decls); err != nil {
		return nil, fmt.Errorf("parsing upstream declarations: %w", err)
	}
	return decls, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	pkg := args[0]

	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	universe, err := svc.LoadUniverse()
	if err != nil {
		return err
	}

	opts, err := buildPlanOptions(cmd.Context(), &syncFlags)
	if err != nil {
		return err
	}

	plan, err := svc.Plan(universe, []string{pkg}, opts)
	if err != nil {
		return err
	}

	decls, err := loadUpstreamDeclarations(syncUpstreamDeclsPath)
	if err != nil {
		return err
	}

	var idx depsync.Index
	if opts.DevIndex != nil {
		idx = opts.DevIndex
	} else if opts.PrevLTSIndex != nil {
		idx = opts.PrevLTSIndex
	}

	result, err := svc.Sync(pkg, plan, decls, idx, version.Comparator(service.DpkgComparator))
	if err != nil {
		return err
	}

	fmt.Printf("additions: %d\n", len(result.Additions))
	for _, a := range result.Additions {
		fmt.Printf("  + %s %s %s\n", a.Name, a.Relation, a.Version)
	}
	fmt.Printf("version bumps: %d\n", len(result.VersionBumps))
	for _, b := range result.VersionBumps {
		fmt.Printf("  %s: %s -> %s (%s)\n", b.Name, b.Old, b.New, b.Source)
	}
	if len(result.Unresolved) > 0 {
		fmt.Printf("unresolved: %v\n", result.Unresolved)
	}
	return nil
}

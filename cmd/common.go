package cmd

import (
	"context"

	"packastack/satisfy"
	"packastack/service"
	"packastack/target"
	"packastack/version"

	"github.com/spf13/cobra"
)

// sharedFlags are the target-resolution and dependency-evaluation flags
// common to plan, build, explain, and sync.
type sharedFlags struct {
	downstreamSeries string
	upstreamSeries string
	postFinal bool
	seriesInfoCSV string
	releaseManifest string
	devIndexURL string
	prevLTSIndexURL string
	cloudArchiveURL string
	depPolicy string
	applyLTSFloor bool
}

func addSharedFlags(cmd *cobra.Command, f *sharedFlags) {
	cmd.Flags().StringVar(&f.downstreamSeries, "series", "", "target downstream Ubuntu series (required)")
	cmd.Flags().StringVar(&f.upstreamSeries, "upstream-series", "", "upstream OpenStack release series name")
	cmd.Flags().BoolVar(&f.postFinal, "post-final", false, "treat the series as past its final release (overrides series-info lookup)")
	cmd.Flags().StringVar(&f.seriesInfoCSV, "series-info", "/usr/share/distro-info/ubuntu.csv", "distro-info-style CSV of series release dates")
	cmd.Flags().StringVar(&f.releaseManifest, "release-manifest", "", "JSON file of per-series, per-deliverable release/milestone data")
	cmd.Flags().StringVar(&f.devIndexURL, "dev-index", "", "development-series archive Packages(.gz) URL")
	cmd.Flags().StringVar(&f.prevLTSIndexURL, "prev-lts-index", "", "prior-LTS archive Packages(.gz) URL")
	cmd.Flags().StringVar(&f.cloudArchiveURL, "cloud-archive-index", "", "Ubuntu Cloud Archive Packages(.gz) URL")
	cmd.Flags().StringVar(&f.depPolicy, "dep-policy", string(satisfy.PolicyWarn), "dependency satisfaction policy: warn, enforce or off")
	cmd.Flags().BoolVar(&f.applyLTSFloor, "apply-lts-floor", false, "raise resolved versions that fall below the prior-LTS archive's shipped version")
}

// resolveCycleStage prefers the explicit --post-final flag, falling back
// to the loaded series-info lookup.
func resolveCycleStage(f *sharedFlags, md *target.ReleaseMetadata) target.CycleStage {
	if f.postFinal {
		return target.CycleStagePostFinal
	}
	if stage, ok := md.SeriesStage(f.downstreamSeries); ok {
		return stage
	}
	return target.CycleStagePreFinal
}

// buildPlanOptions assembles service.PlanOptions from sharedFlags,
// fetching the optional archive indices referenced by URL.
func buildPlanOptions(ctx context.Context, f *sharedFlags) (service.PlanOptions, error) {
	md, err := service.LoadReleaseMetadata(f.seriesInfoCSV, f.releaseManifest)
	if err != nil {
		return service.PlanOptions{}, err
	}

	cmp := version.Comparator(service.DpkgComparator)

	opts := service.PlanOptions{
		DownstreamSeries: f.downstreamSeries,
		UpstreamSeries: f.upstreamSeries,
		CycleStage: resolveCycleStage(f, md),
		ReleaseSource: md,
		Comparator: cmp,
		DepPolicy: satisfy.Policy(f.depPolicy),
	}

	if f.devIndexURL != "" {
		idx, err := service.FetchArchiveIndex(ctx, f.devIndexURL, cmp)
		if err != nil {
			return service.PlanOptions{}, err
		}
		opts.DevIndex = idx
	}
	if f.prevLTSIndexURL != "" {
		idx, err := service.FetchArchiveIndex(ctx, f.prevLTSIndexURL, cmp)
		if err != nil {
			return service.PlanOptions{}, err
		}
		opts.PrevLTSIndex = idx
		if f.applyLTSFloor {
			opts.LTSFloor = service.NewIndexLTSFloor(idx)
		}
	}
	if f.cloudArchiveURL != "" {
		idx, err := service.FetchArchiveIndex(ctx, f.cloudArchiveURL, cmp)
		if err != nil {
			return service.PlanOptions{}, err
		}
		opts.CloudArchive = idx
	}

	return opts, nil
}

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fairlend/peerscope/internal/cli"
	"github.com/fairlend/peerscope/internal/engine"
	"github.com/fairlend/peerscope/internal/model"
	"github.com/fairlend/peerscope/internal/scope"
	"github.com/spf13/cobra"
)

func peersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "Select the peer cohort for a lender",
		Long: `Resolve the lender's geographic scope, aggregate every lender's
volume inside it, and report the comparison cohort with the fallback
window that produced it.`,
		RunE: runPeers,
	}

	cmd.Flags().StringP("lender", "l", "", "subject lender identifier (required)")
	cmd.Flags().StringP("strategy", "s", string(model.ScopeAllActive), "scope strategy (custom, all-active, volume-threshold, presence-threshold)")
	cmd.Flags().StringSlice("geo", nil, "geographic codes for the custom strategy")
	cmd.Flags().Int("from", time.Now().Year()-1, "first reporting year")
	cmd.Flags().Int("to", time.Now().Year()-1, "last reporting year")
	cmd.Flags().String("comparison", string(model.CompareVolumeBand), "comparison group (volume-band, category)")
	cmd.Flags().String("category", "", "institution category for category comparisons")

	_ = cmd.MarkFlagRequired("lender")

	return cmd
}

func runPeers(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	lender, _ := cmd.Flags().GetString("lender")
	strategy, _ := cmd.Flags().GetString("strategy")
	geos, _ := cmd.Flags().GetStringSlice("geo")
	from, _ := cmd.Flags().GetInt("from")
	to, _ := cmd.Flags().GetInt("to")
	comparison, _ := cmd.Flags().GetString("comparison")
	category, _ := cmd.Flags().GetString("category")

	spec, err := scopeSpecFromFlags(strategy, geos)
	if err != nil {
		return err
	}

	deps, err := buildDeps(ctx, false)
	if err != nil {
		return err
	}
	defer deps.Close()

	result, err := deps.analyzer.Run(ctx, engine.AnalysisRequest{
		LenderID: lender,
		Scope:    spec,
		Years:    model.YearRange{From: from, To: to},
		Comparison: model.ComparisonGroup{
			Mode:     model.ComparisonMode(comparison),
			Category: category,
		},
	})
	if err != nil {
		var metroErr *scope.NoQualifyingMetroError
		if errors.As(err, &metroErr) {
			fmt.Println(cli.FormatWarning(metroErr.Error()))
			fmt.Println(cli.SubtleStyle.Render("Consider retrying with --strategy all-active."))
			return nil
		}
		return err
	}

	cohort := result.Cohort
	fmt.Println(cli.FormatTitle(fmt.Sprintf("Peer cohort for %s (window: %s)", lender, cohort.Window)))

	if len(cohort.Peers) == 0 {
		fmt.Println(cli.FormatWarning("No peers found; proceed subject-only or broaden the scope."))
		return nil
	}

	rows := make([][]string, 0, len(cohort.Peers))
	for _, p := range cohort.Peers {
		rows = append(rows, []string{p.LenderID, formatAmount(p.TotalAmount), fmt.Sprintf("%d", p.TotalCount)})
	}
	fmt.Println(cli.RenderTable([]string{"LENDER", "VOLUME", "RECORDS"}, rows))
	return nil
}

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fairlend/peerscope/internal/aggregate"
	"github.com/fairlend/peerscope/internal/cli"
	"github.com/fairlend/peerscope/internal/engine"
	"github.com/fairlend/peerscope/internal/model"
	"github.com/fairlend/peerscope/internal/scope"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a full scope and peer cohort analysis for a lender",
		Long: `Resolve the geographic scope for a lender, select its peer cohort,
and report cohort volumes per geographic unit.`,
		RunE: runAnalyze,
	}

	cmd.Flags().StringP("lender", "l", "", "subject lender identifier (required)")
	cmd.Flags().StringP("strategy", "s", string(model.ScopeAllActive), "scope strategy (custom, all-active, volume-threshold, presence-threshold)")
	cmd.Flags().StringSlice("geo", nil, "geographic codes for the custom strategy")
	cmd.Flags().Int("from", time.Now().Year()-1, "first reporting year")
	cmd.Flags().Int("to", time.Now().Year()-1, "last reporting year")
	cmd.Flags().String("comparison", string(model.CompareVolumeBand), "comparison group (volume-band, category)")
	cmd.Flags().String("category", "", "institution category for category comparisons")
	cmd.Flags().String("disposition", "", "transaction disposition filter (completed, all-stages)")
	cmd.Flags().StringSlice("occupancy", nil, "occupancy filter (primary, second-home, investment)")
	cmd.Flags().StringSlice("property-type", nil, "property type filter (1-4, 5+)")
	cmd.Flags().StringSlice("financing", nil, "financing method filter (site-built, manufactured)")
	cmd.Flags().StringSlice("loan-category", nil, "loan category filter")
	cmd.Flags().Bool("include-rescission", false, "include rescission-eligible records")
	cmd.Flags().Int("chunk-size", aggregate.DefaultChunkSize, "maximum predicate list size per backend query")

	_ = cmd.MarkFlagRequired("lender")
	_ = viper.BindPFlag("aggregate.chunk_size", cmd.Flags().Lookup("chunk-size"))

	return cmd
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	lender, _ := cmd.Flags().GetString("lender")
	strategy, _ := cmd.Flags().GetString("strategy")
	geos, _ := cmd.Flags().GetStringSlice("geo")
	from, _ := cmd.Flags().GetInt("from")
	to, _ := cmd.Flags().GetInt("to")
	comparison, _ := cmd.Flags().GetString("comparison")
	category, _ := cmd.Flags().GetString("category")
	disposition, _ := cmd.Flags().GetString("disposition")
	occupancy, _ := cmd.Flags().GetStringSlice("occupancy")
	propertyTypes, _ := cmd.Flags().GetStringSlice("property-type")
	financing, _ := cmd.Flags().GetStringSlice("financing")
	loanCategories, _ := cmd.Flags().GetStringSlice("loan-category")
	includeRescission, _ := cmd.Flags().GetBool("include-rescission")

	spec, err := scopeSpecFromFlags(strategy, geos)
	if err != nil {
		return err
	}

	deps, err := buildDeps(ctx, true)
	if err != nil {
		return err
	}
	defer deps.Close()

	result, err := deps.analyzer.Run(ctx, engine.AnalysisRequest{
		LenderID: lender,
		Scope:    spec,
		Years:    model.YearRange{From: from, To: to},
		Filters: filterOptionsFromFlags(disposition, occupancy, propertyTypes,
			financing, loanCategories, includeRescission),
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

	printAnalysis(lender, result)
	return nil
}

func printAnalysis(lender string, result *engine.AnalysisResult) {
	subject := result.Cohort.Subject
	name := subject.Name
	if name == "" {
		name = lender
	}

	summary := fmt.Sprintf("Scope: %d geographic units\nVolume: %s across %d records\nPeers: %d (window: %s)",
		len(result.Scope),
		formatAmount(subject.TotalAmount),
		subject.TotalCount,
		len(result.Cohort.Peers),
		result.Cohort.Window)
	fmt.Println(cli.RenderBox(name, summary))

	if len(result.Cohort.Peers) > 0 {
		rows := make([][]string, 0, len(result.Cohort.Peers))
		for _, p := range result.Cohort.Peers {
			rows = append(rows, []string{p.LenderID, formatAmount(p.TotalAmount), fmt.Sprintf("%d", p.TotalCount)})
		}
		fmt.Println(cli.FormatTitle("Peer cohort"))
		fmt.Println(cli.RenderTable([]string{"LENDER", "VOLUME", "RECORDS"}, rows))
	}

	if len(result.CohortByGeo) > 0 {
		rows := make([][]string, 0, len(result.CohortByGeo))
		for _, g := range result.CohortByGeo {
			rows = append(rows, []string{string(g.Geo), formatAmount(g.Amount), fmt.Sprintf("%d", g.Count)})
		}
		fmt.Println(cli.FormatTitle("Cohort volume by geography"))
		fmt.Println(cli.RenderTable([]string{"GEO", "VOLUME", "RECORDS"}, rows))
	}

	if result.Partial {
		fmt.Println(cli.FormatWarning("Result is partial: one or more aggregation chunks failed."))
	} else {
		fmt.Println(cli.FormatSuccess("Analysis complete."))
	}
}

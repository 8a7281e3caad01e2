package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fairlend/peerscope/internal/cli"
	"github.com/fairlend/peerscope/internal/filter"
	"github.com/fairlend/peerscope/internal/model"
	"github.com/fairlend/peerscope/internal/scope"
	"github.com/spf13/cobra"
)

func scopeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scope",
		Short: "Resolve the geographic scope for a lender",
		RunE:  runScope,
	}

	cmd.Flags().StringP("lender", "l", "", "subject lender identifier (required)")
	cmd.Flags().StringP("strategy", "s", string(model.ScopeAllActive), "scope strategy (custom, all-active, volume-threshold, presence-threshold)")
	cmd.Flags().StringSlice("geo", nil, "geographic codes for the custom strategy")
	cmd.Flags().Int("from", time.Now().Year()-1, "first reporting year")
	cmd.Flags().Int("to", time.Now().Year()-1, "last reporting year")

	_ = cmd.MarkFlagRequired("lender")

	return cmd
}

func runScope(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	lender, _ := cmd.Flags().GetString("lender")
	strategy, _ := cmd.Flags().GetString("strategy")
	geos, _ := cmd.Flags().GetStringSlice("geo")
	from, _ := cmd.Flags().GetInt("from")
	to, _ := cmd.Flags().GetInt("to")

	spec, err := scopeSpecFromFlags(strategy, geos)
	if err != nil {
		return err
	}

	deps, err := buildDeps(ctx, false)
	if err != nil {
		return err
	}
	defer deps.Close()

	units, err := deps.resolver.ResolveScope(ctx, lender, spec,
		model.YearRange{From: from, To: to},
		filter.Translate(filter.Options{}))
	if err != nil {
		var metroErr *scope.NoQualifyingMetroError
		if errors.As(err, &metroErr) {
			fmt.Println(cli.FormatWarning(metroErr.Error()))
			fmt.Println(cli.SubtleStyle.Render("Consider retrying with --strategy all-active."))
			return nil
		}
		return err
	}

	fmt.Println(cli.FormatTitle(fmt.Sprintf("Scope for %s (%s): %d units", lender, spec.Strategy, len(units))))
	for _, u := range units {
		fmt.Println(string(u))
	}
	return nil
}

// Package engine orchestrates one full analysis: scope resolution, the
// candidate volume pass, peer selection, and the per-geography detail
// pass for the resulting cohort.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/fairlend/peerscope/internal/aggregate"
	"github.com/fairlend/peerscope/internal/common"
	"github.com/fairlend/peerscope/internal/filter"
	"github.com/fairlend/peerscope/internal/model"
	"github.com/fairlend/peerscope/internal/peers"
	"github.com/fairlend/peerscope/internal/query"
)

// AnalysisRequest describes one analysis run.
type AnalysisRequest struct {
	LenderID   string
	Scope      model.ScopeSpec
	Years      model.YearRange
	Filters    filter.Options
	Comparison model.ComparisonGroup
}

// GeoVolume is one geography's combined cohort volume.
type GeoVolume struct {
	Geo    model.GeoCode
	Amount int64
	Count  int64
}

// AnalysisResult is the complete outcome of one analysis run. Partial is
// true when any aggregation chunk failed along the way; the reported
// volumes then undercount.
type AnalysisResult struct {
	Scope       []model.GeoCode
	Cohort      model.PeerCohort
	CohortByGeo []GeoVolume
	Partial     bool
}

// Analyzer runs analyses against the analytical backend. Each request
// constructs its own scope, cohort, and aggregation state; the analyzer
// itself holds no per-request state.
type Analyzer struct {
	agg      Aggregator
	resolver ScopeResolver
	lenders  LenderReference
}

// NewAnalyzer creates an analyzer with the given dependencies.
func NewAnalyzer(agg Aggregator, resolver ScopeResolver, lenders LenderReference) *Analyzer {
	return &Analyzer{
		agg:      agg,
		resolver: resolver,
		lenders:  lenders,
	}
}

// Run executes the full analysis flow for one request.
func (a *Analyzer) Run(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Comparison.Mode == "" {
		req.Comparison.Mode = model.CompareVolumeBand
	}

	filters := filter.Translate(req.Filters)

	units, err := a.resolver.ResolveScope(ctx, req.LenderID, req.Scope, req.Years, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scope: %w", err)
	}
	slog.Info("Resolved geographic scope",
		"lender", req.LenderID,
		"strategy", req.Scope.Strategy,
		"units", len(units))

	result := &AnalysisResult{Scope: units}

	// Volume pass: every lender's aggregate inside the scope forms the
	// candidate pool.
	pool, err := a.agg.Aggregate(ctx, aggregate.Request{
		EntityIDs: geoStrings(units),
		Dimension: aggregate.DimGeoCode,
		GroupBy:   aggregate.GroupByLender,
		Years:     req.Years,
		Filters:   filters,
		Source:    aggregate.SourceFacts,
	})
	if err != nil {
		return nil, fmt.Errorf("candidate volume pass failed: %w", err)
	}
	result.Partial = result.Partial || pool.Partial

	candidates, subject := splitCandidates(pool, req.LenderID)

	if req.Comparison.Mode == model.CompareCategory {
		if err := a.annotateCategories(ctx, candidates, &subject); err != nil {
			return nil, err
		}
	}

	if name, err := a.lenders.LenderName(ctx, req.LenderID); err == nil {
		subject.Name = name
	}

	result.Cohort = peers.SelectPeers(subject, candidates, req.Comparison)
	slog.Info("Selected peer cohort",
		"lender", req.LenderID,
		"peers", len(result.Cohort.Peers),
		"window", result.Cohort.Window)

	// Detail pass: per-geography volumes for the subject plus its peers.
	detail, err := a.agg.Aggregate(ctx, aggregate.Request{
		EntityIDs: geoStrings(units),
		Dimension: aggregate.DimGeoCode,
		GroupBy:   aggregate.GroupByGeo,
		Years:     req.Years,
		Filters:   filters.With(query.InStrings("lender_id", result.Cohort.LenderIDs())),
		Source:    aggregate.SourceFacts,
	})
	if err != nil {
		return nil, fmt.Errorf("cohort detail pass failed: %w", err)
	}
	result.Partial = result.Partial || detail.Partial

	result.CohortByGeo = make([]GeoVolume, 0, len(detail.Rows))
	for key, row := range detail.Rows {
		result.CohortByGeo = append(result.CohortByGeo, GeoVolume{
			Geo:    model.GeoCode(key),
			Amount: row.Amount,
			Count:  row.Count,
		})
	}
	sort.Slice(result.CohortByGeo, func(i, j int) bool {
		return result.CohortByGeo[i].Geo < result.CohortByGeo[j].Geo
	})

	return result, nil
}

func validateRequest(req AnalysisRequest) error {
	if req.LenderID == "" {
		return common.ErrMissingLender
	}
	if !req.Years.Valid() {
		return fmt.Errorf("%w: from=%d to=%d", common.ErrInvalidYearRange, req.Years.From, req.Years.To)
	}
	if !req.Scope.Strategy.Valid() {
		return fmt.Errorf("%w: %q", common.ErrInvalidStrategy, req.Scope.Strategy)
	}
	return nil
}

// splitCandidates converts the volume pass into the candidate pool and
// pulls out the subject's own aggregate. A subject with no rows in scope
// still yields a zero-volume subject rather than an error; peer selection
// treats that as any other volume.
func splitCandidates(pool *aggregate.Result, lenderID string) ([]model.LenderVolume, model.LenderVolume) {
	subject := model.LenderVolume{LenderID: lenderID}
	candidates := make([]model.LenderVolume, 0, len(pool.Rows))

	for key, row := range pool.Rows {
		volume := model.LenderVolume{
			LenderID:    key,
			TotalAmount: row.Amount,
			TotalCount:  row.Count,
		}
		if key == lenderID {
			subject = volume
			continue
		}
		candidates = append(candidates, volume)
	}
	return candidates, subject
}

func (a *Analyzer) annotateCategories(ctx context.Context, candidates []model.LenderVolume, subject *model.LenderVolume) error {
	ids := make([]string, 0, len(candidates)+1)
	ids = append(ids, subject.LenderID)
	for _, c := range candidates {
		ids = append(ids, c.LenderID)
	}

	categories, err := a.lenders.LenderCategories(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load lender categories: %w", err)
	}

	subject.Category = categories[subject.LenderID]
	for i := range candidates {
		candidates[i].Category = categories[candidates[i].LenderID]
	}
	return nil
}

func geoStrings(units []model.GeoCode) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = string(u)
	}
	return out
}

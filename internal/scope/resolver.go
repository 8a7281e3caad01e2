// Package scope resolves a lender and a scope strategy into the concrete,
// deduplicated list of geographic units to analyze.
package scope

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/fairlend/peerscope/internal/aggregate"
	"github.com/fairlend/peerscope/internal/model"
	"github.com/fairlend/peerscope/internal/query"
	"github.com/shopspring/decimal"
)

// SharePercentThreshold is the minimum share of the lender's national
// volume (or office presence) a metro area must hold to enter the scope.
// The boundary is inclusive.
var SharePercentThreshold = decimal.NewFromFloat(1.0)

// NearMissCount is how many below-threshold metros a
// NoQualifyingMetroError reports.
const NearMissCount = 3

// Aggregator is the slice of the batched aggregation engine the resolver
// needs.
type Aggregator interface {
	Aggregate(ctx context.Context, req aggregate.Request) (*aggregate.Result, error)
}

// ReferenceData supplies metro area membership from the reference
// geography table.
type ReferenceData interface {
	MetroMembers(ctx context.Context) (map[string][]model.GeoCode, error)
}

// Resolver turns scope specifications into geographic unit lists.
type Resolver struct {
	agg Aggregator
	ref ReferenceData
}

// NewResolver creates a resolver over an aggregation engine and reference
// data source.
func NewResolver(agg Aggregator, ref ReferenceData) *Resolver {
	return &Resolver{agg: agg, ref: ref}
}

// ResolveScope produces the final ordered, deduplicated list of geographic
// units for one analysis request. Every strategy returns an ascending
// geo_code-sorted list or a typed failure; callers may rely on the
// ordering for deterministic downstream batching.
func (r *Resolver) ResolveScope(ctx context.Context, lenderID string, spec model.ScopeSpec, years model.YearRange, filters query.PredicateSet) ([]model.GeoCode, error) {
	switch spec.Strategy {
	case model.ScopeCustom:
		return resolveCustom(spec.CustomUnits)
	case model.ScopeAllActive:
		return r.resolveAllActive(ctx, lenderID, years, filters)
	case model.ScopeVolumeThreshold:
		return r.resolveThreshold(ctx, lenderID, years, filters, spec.Strategy)
	case model.ScopePresenceThreshold:
		return r.resolveThreshold(ctx, lenderID, years, filters, spec.Strategy)
	default:
		return nil, fmt.Errorf("unknown scope strategy %q", spec.Strategy)
	}
}

func resolveCustom(units []model.GeoCode) ([]model.GeoCode, error) {
	if len(units) == 0 {
		return nil, ErrEmptyScope
	}
	return dedupeSorted(units), nil
}

func (r *Resolver) resolveAllActive(ctx context.Context, lenderID string, years model.YearRange, filters query.PredicateSet) ([]model.GeoCode, error) {
	result, err := r.agg.Aggregate(ctx, aggregate.Request{
		EntityIDs: []string{lenderID},
		Dimension: aggregate.DimLenderID,
		GroupBy:   aggregate.GroupByGeo,
		Years:     years,
		Filters:   filters,
		Source:    aggregate.SourceFacts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate lender activity: %w", err)
	}
	if result.Partial {
		slog.Warn("resolving scope from a partial aggregation",
			"lender", lenderID, "failed_chunks", len(result.Errors))
	}

	units := make([]model.GeoCode, 0, len(result.Rows))
	for key, row := range result.Rows {
		if row.Count > 0 {
			units = append(units, model.GeoCode(key))
		}
	}
	if len(units) == 0 {
		// An empty partial result means the backend failed, not that the
		// lender has no matching records.
		if result.Partial {
			return nil, fmt.Errorf("aggregation incomplete for lender %s: %w",
				lenderID, errors.Join(result.Errors...))
		}
		return nil, fmt.Errorf("%w: lender %s", ErrNoActivity, lenderID)
	}

	return dedupeSorted(units), nil
}

// resolveThreshold retains every metro area holding at least
// SharePercentThreshold of the lender's national measure, then expands the
// retained metros to their member units. The denominator is always the
// lender's national total, not the total within any pre-filtered subset.
func (r *Resolver) resolveThreshold(ctx context.Context, lenderID string, years model.YearRange, filters query.PredicateSet, strategy model.ScopeStrategy) ([]model.GeoCode, error) {
	source := aggregate.SourceFacts
	if strategy == model.ScopePresenceThreshold {
		// Business filters describe loan attributes; they do not apply to
		// office locations.
		source = aggregate.SourceOffices
		filters = nil
	}

	national, err := r.agg.Aggregate(ctx, aggregate.Request{
		EntityIDs: []string{lenderID},
		Dimension: aggregate.DimLenderID,
		GroupBy:   aggregate.GroupByLender,
		Years:     years,
		Filters:   filters,
		Source:    source,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate national totals: %w", err)
	}

	total := measure(national.Rows[lenderID], strategy)
	if total == 0 {
		if national.Partial {
			return nil, fmt.Errorf("aggregation incomplete for lender %s: %w",
				lenderID, errors.Join(national.Errors...))
		}
		return nil, fmt.Errorf("%w: lender %s", ErrNoActivity, lenderID)
	}

	byMetro, err := r.agg.Aggregate(ctx, aggregate.Request{
		EntityIDs: []string{lenderID},
		Dimension: aggregate.DimLenderID,
		GroupBy:   aggregate.GroupByMetro,
		Years:     years,
		Filters:   filters,
		Source:    source,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate metro totals: %w", err)
	}
	if national.Partial || byMetro.Partial {
		slog.Warn("resolving scope from a partial aggregation",
			"lender", lenderID,
			"failed_chunks", len(national.Errors)+len(byMetro.Errors))
	}

	totalDec := decimal.NewFromInt(total)
	hundred := decimal.NewFromInt(100)

	var retained []string
	var misses []MetroShare
	for metro, row := range byMetro.Rows {
		share := decimal.NewFromInt(measure(row, strategy)).Mul(hundred).Div(totalDec)
		if share.Cmp(SharePercentThreshold) >= 0 {
			retained = append(retained, metro)
			continue
		}
		misses = append(misses, MetroShare{Metro: metro, Share: share, Measure: measure(row, strategy)})
	}

	if len(retained) == 0 {
		sort.Slice(misses, func(i, j int) bool {
			if !misses[i].Share.Equal(misses[j].Share) {
				return misses[i].Share.GreaterThan(misses[j].Share)
			}
			return misses[i].Metro < misses[j].Metro
		})
		if len(misses) > NearMissCount {
			misses = misses[:NearMissCount]
		}
		return nil, &NoQualifyingMetroError{
			LenderID:   lenderID,
			Strategy:   strategy,
			Threshold:  SharePercentThreshold,
			NearMisses: misses,
		}
	}

	members, err := r.ref.MetroMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load metro membership: %w", err)
	}

	var units []model.GeoCode
	for _, metro := range retained {
		units = append(units, members[metro]...)
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: no member units for qualifying metros of lender %s", ErrEmptyScope, lenderID)
	}

	return dedupeSorted(units), nil
}

// measure picks the relevant aggregate for a strategy: summed amounts for
// volume thresholds, record counts for presence thresholds.
func measure(row aggregate.Row, strategy model.ScopeStrategy) int64 {
	if strategy == model.ScopePresenceThreshold {
		return row.Count
	}
	return row.Amount
}

// dedupeSorted returns a copy with duplicates removed, ascending by code.
func dedupeSorted(units []model.GeoCode) []model.GeoCode {
	seen := make(map[model.GeoCode]struct{}, len(units))
	out := make([]model.GeoCode, 0, len(units))
	for _, u := range units {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

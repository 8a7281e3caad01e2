package engine

import (
	"context"

	"github.com/fairlend/peerscope/internal/aggregate"
	"github.com/fairlend/peerscope/internal/model"
	"github.com/fairlend/peerscope/internal/query"
)

// Aggregator defines the contract for batched grouped aggregation.
type Aggregator interface {
	Aggregate(ctx context.Context, req aggregate.Request) (*aggregate.Result, error)
}

// ScopeResolver defines the contract for geographic scope resolution.
type ScopeResolver interface {
	ResolveScope(ctx context.Context, lenderID string, spec model.ScopeSpec, years model.YearRange, filters query.PredicateSet) ([]model.GeoCode, error)
}

// LenderReference supplies lender names and institution categories from
// the lender reference table.
type LenderReference interface {
	LenderCategories(ctx context.Context, lenderIDs []string) (map[string]string, error)
	LenderName(ctx context.Context, lenderID string) (string, error)
}

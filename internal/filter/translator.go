// Package filter translates enumerated business filters into the
// normalized predicate set shared by every downstream query.
package filter

import (
	"github.com/fairlend/peerscope/internal/query"
)

// Disposition selects which transaction stages are analyzed.
type Disposition string

const (
	// DispositionCompleted restricts analysis to completed transactions.
	DispositionCompleted Disposition = "completed"
	// DispositionAllStages includes every stage a lender reported itself,
	// excluding records it purchased from another institution.
	DispositionAllStages Disposition = "all-stages"
)

// Recognized occupancy values.
const (
	OccupancyPrimary    = "primary"
	OccupancySecondHome = "second-home"
	OccupancyInvestment = "investment"
)

// Recognized property type values.
const (
	PropertySmall = "1-4" // 1-4 unit dwellings
	PropertyLarge = "5+"  // 5 or more units
)

// Recognized financing method values.
const (
	FinancingSiteBuilt    = "site-built"
	FinancingManufactured = "manufactured"
)

// Options holds the recognized business filters. Zero values fall back to
// the documented defaults: completed dispositions, primary occupancy, 1-4
// unit dwellings, site-built financing, all loan categories, and
// rescission-eligible records excluded.
type Options struct {
	Disposition               Disposition
	Occupancy                 []string
	PropertyTypes             []string
	Financing                 []string
	LoanCategories            []string
	IncludeRescissionEligible bool
}

// Translate resolves every option to its concrete backend representation:
// a single equality, an IN-list, or a negated IN-list. It never fails;
// unrecognized values pass through as literals and surface downstream as
// zero rows rather than an error here.
func Translate(opts Options) query.PredicateSet {
	set := make(query.PredicateSet, 0, 6)

	switch opts.Disposition {
	case DispositionAllStages:
		set = set.With(query.NotIn("disposition", "purchased"))
	default:
		set = set.With(query.Eq("disposition", string(DispositionCompleted)))
	}

	set = set.With(subset("occupancy", opts.Occupancy, OccupancyPrimary))
	set = set.With(subset("property_type", opts.PropertyTypes, PropertySmall))
	set = set.With(subset("financing", opts.Financing, FinancingSiteBuilt))

	if len(opts.LoanCategories) > 0 {
		set = set.With(subset("loan_category", opts.LoanCategories, ""))
	}

	if !opts.IncludeRescissionEligible {
		set = set.With(query.Eq("rescission_eligible", 0))
	}

	return set
}

// subset normalizes a multi-value option: unset falls back to the default,
// a single value becomes an equality, multiple values become an IN-list.
func subset(column string, values []string, fallback string) query.Predicate {
	if len(values) == 0 {
		return query.Eq(column, fallback)
	}
	if len(values) == 1 {
		return query.Eq(column, values[0])
	}
	return query.InStrings(column, values)
}

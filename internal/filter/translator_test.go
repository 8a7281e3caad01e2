package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslate_Defaults(t *testing.T) {
	set := Translate(Options{})

	clause, args := set.Render()
	assert.Equal(t,
		"disposition = ? AND occupancy = ? AND property_type = ? AND financing = ? AND rescission_eligible = ?",
		clause)
	assert.Equal(t, []any{"completed", "primary", "1-4", "site-built", 0}, args)
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name       string
		opts       Options
		wantClause string
		wantArgs   []any
	}{
		{
			name: "all stages excludes purchased records",
			opts: Options{Disposition: DispositionAllStages},
			wantClause: "disposition NOT IN (?) AND occupancy = ? AND property_type = ? " +
				"AND financing = ? AND rescission_eligible = ?",
			wantArgs: []any{"purchased", "primary", "1-4", "site-built", 0},
		},
		{
			name: "multi-value occupancy becomes an IN-list",
			opts: Options{Occupancy: []string{OccupancyPrimary, OccupancyInvestment}},
			wantClause: "disposition = ? AND occupancy IN (?, ?) AND property_type = ? " +
				"AND financing = ? AND rescission_eligible = ?",
			wantArgs: []any{"completed", "primary", "investment", "1-4", "site-built", 0},
		},
		{
			name: "loan categories only constrained when set",
			opts: Options{LoanCategories: []string{"purchase", "refinance"}},
			wantClause: "disposition = ? AND occupancy = ? AND property_type = ? " +
				"AND financing = ? AND loan_category IN (?, ?) AND rescission_eligible = ?",
			wantArgs: []any{"completed", "primary", "1-4", "site-built", "purchase", "refinance", 0},
		},
		{
			name: "rescission eligible records can be included",
			opts: Options{IncludeRescissionEligible: true},
			wantClause: "disposition = ? AND occupancy = ? AND property_type = ? " +
				"AND financing = ?",
			wantArgs: []any{"completed", "primary", "1-4", "site-built"},
		},
		{
			name: "unrecognized values pass through as literals",
			opts: Options{Occupancy: []string{"houseboat"}},
			wantClause: "disposition = ? AND occupancy = ? AND property_type = ? " +
				"AND financing = ? AND rescission_eligible = ?",
			wantArgs: []any{"completed", "houseboat", "1-4", "site-built", 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clause, args := Translate(tt.opts).Render()
			assert.Equal(t, tt.wantClause, clause)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

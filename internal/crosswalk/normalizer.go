// Package crosswalk resolves the legacy-vs-current geographic coding
// discontinuity for jurisdiction 09, whose county-equivalent codes were
// replaced by a new scheme effective reporting year 2022. Records filed
// before the cutover carry legacy codes that the reference geography table
// no longer recognizes; this package maps them to their canonical
// replacements through a census-tract crosswalk so cross-year aggregates
// line up on a single code per area.
package crosswalk

import (
	"fmt"

	"github.com/fairlend/peerscope/internal/model"
)

const (
	// LegacyJurisdiction is the two digit prefix of the affected codes.
	LegacyJurisdiction = "09"
	// CutoverYear is the first reporting year on the new coding scheme.
	CutoverYear = 2022
	// TractSuffixLen is how many trailing digits of the census tract
	// identifier key the crosswalk.
	TractSuffixLen = 6
)

// Entry maps one census tract suffix to its canonical post-cutover code.
type Entry struct {
	TractSuffix string
	Canonical   model.GeoCode
}

// Normalizer holds the crosswalk, loaded once per process and read-only
// thereafter.
type Normalizer struct {
	byTract map[string]model.GeoCode
}

// New builds a Normalizer from crosswalk entries.
func New(entries []Entry) *Normalizer {
	byTract := make(map[string]model.GeoCode, len(entries))
	for _, e := range entries {
		byTract[e.TractSuffix] = e.Canonical
	}
	return &Normalizer{byTract: byTract}
}

// Normalize returns the canonical geographic code for one record. Records
// outside the affected jurisdiction or from the cutover year onward pass
// through unchanged. A legacy record with no crosswalk entry keeps its
// original code; it is still counted, never dropped.
func (n *Normalizer) Normalize(geo model.GeoCode, tract string, year int) model.GeoCode {
	if geo.Jurisdiction() != LegacyJurisdiction || year >= CutoverYear {
		return geo
	}
	if canonical, ok := n.byTract[TractSuffix(tract)]; ok {
		return canonical
	}
	return geo
}

// Affected reports whether a record would be remapped by Normalize,
// ignoring crosswalk coverage.
func Affected(geo model.GeoCode, year int) bool {
	return geo.Jurisdiction() == LegacyJurisdiction && year < CutoverYear
}

// TractSuffix returns the trailing digits of a census tract identifier
// used as the crosswalk key.
func TractSuffix(tract string) string {
	if len(tract) <= TractSuffixLen {
		return tract
	}
	return tract[len(tract)-TractSuffixLen:]
}

// GeoExpr renders the canonical geographic code as a SQL expression over a
// fact table aliased factAlias, left-joined to the crosswalk table aliased
// xwalkAlias. Every query that groups or filters by geographic code must
// use this expression, or cross-year aggregates silently undercount the
// affected jurisdiction. The expression contains no user input.
func GeoExpr(factAlias, xwalkAlias string) string {
	return fmt.Sprintf(
		"CASE WHEN %[1]s.geo_code LIKE '%[3]s%%' AND %[1]s.year < %[4]d"+
			" THEN COALESCE(%[2]s.canonical_geo, %[1]s.geo_code)"+
			" ELSE %[1]s.geo_code END",
		factAlias, xwalkAlias, LegacyJurisdiction, CutoverYear)
}

// JoinClause renders the crosswalk join matching GeoExpr.
func JoinClause(factAlias, xwalkAlias string) string {
	return fmt.Sprintf(
		"LEFT JOIN tract_crosswalk %[2]s ON %[2]s.tract_suffix = substr(%[1]s.census_tract, -%[3]d)",
		factAlias, xwalkAlias, TractSuffixLen)
}

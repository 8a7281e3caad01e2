// Package model defines the core domain types shared across the engine.
package model

// GeoCode is the canonical identifier for a county-equivalent area: a
// fixed-width five digit numeric code where the first two digits identify
// the jurisdiction.
type GeoCode string

// Jurisdiction returns the two digit jurisdiction prefix of the code.
func (g GeoCode) Jurisdiction() string {
	if len(g) < 2 {
		return string(g)
	}
	return string(g[:2])
}

// GeographicUnit is one county-equivalent area from the reference
// geography table.
type GeographicUnit struct {
	Code      GeoCode
	Name      string
	MetroCode string // empty when the unit belongs to no metro area
}

// MetroArea is a named aggregation of GeographicUnits. It is used only as
// a grouping key for volume thresholds, never as a unit of record storage.
type MetroArea struct {
	Code string
	Name string
}

// YearRange is an inclusive range of reporting years.
type YearRange struct {
	From int
	To   int
}

// Contains reports whether year falls within the range.
func (r YearRange) Contains(year int) bool {
	return year >= r.From && year <= r.To
}

// Valid reports whether the range is well formed.
func (r YearRange) Valid() bool {
	return r.From > 0 && r.To >= r.From
}

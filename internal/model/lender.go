package model

// LenderVolume is the aggregate of a lender's transactions over a
// geographic scope and filter set. It is derived per request and never
// persisted.
type LenderVolume struct {
	LenderID    string
	Name        string
	Category    string // institution category from the lender reference table
	TotalAmount int64  // whole currency units
	TotalCount  int64
}

// WindowUsed records which fallback tier produced a peer cohort, for
// auditability.
type WindowUsed string

const (
	// WindowPrimary is the default [0.5x, 2.0x] volume band.
	WindowPrimary WindowUsed = "primary"
	// WindowExpanded is the widened [0.25x, 4.0x] band capped to the top 20.
	WindowExpanded WindowUsed = "expanded"
	// WindowTopK is the last-resort top 20 by volume with no band.
	WindowTopK WindowUsed = "top_k"
	// WindowCategory selects every lender of a given institution category.
	WindowCategory WindowUsed = "category"
	// WindowNone means the candidate pool itself was empty.
	WindowNone WindowUsed = "none"
)

// ComparisonMode selects how a peer cohort is drawn from the candidate pool.
type ComparisonMode string

const (
	// CompareVolumeBand selects peers within a multiplier band of the
	// subject's volume, with tiered fallback.
	CompareVolumeBand ComparisonMode = "volume-band"
	// CompareCategory selects every candidate of a named institution
	// category, with no volume restriction.
	CompareCategory ComparisonMode = "category"
)

// ComparisonGroup describes the requested peer comparison.
type ComparisonGroup struct {
	Mode     ComparisonMode
	Category string // required when Mode == CompareCategory
}

// PeerCohort is the outcome of peer selection. Subject is never present in
// Peers.
type PeerCohort struct {
	Subject LenderVolume
	Peers   []LenderVolume
	Window  WindowUsed
}

// LenderIDs returns the subject and peer identifiers, subject first.
func (c PeerCohort) LenderIDs() []string {
	ids := make([]string, 0, len(c.Peers)+1)
	ids = append(ids, c.Subject.LenderID)
	for _, p := range c.Peers {
		ids = append(ids, p.LenderID)
	}
	return ids
}

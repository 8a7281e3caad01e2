package model

// ScopeStrategy selects how the geographic scope of an analysis is derived.
type ScopeStrategy string

const (
	// ScopeCustom analyzes a caller-supplied list of geographic units.
	ScopeCustom ScopeStrategy = "custom"
	// ScopeAllActive analyzes every unit where the lender has at least one
	// matching transaction.
	ScopeAllActive ScopeStrategy = "all-active"
	// ScopeVolumeThreshold analyzes every metro area holding at least 1% of
	// the lender's national transaction volume, expanded to member units.
	ScopeVolumeThreshold ScopeStrategy = "volume-threshold"
	// ScopePresenceThreshold is ScopeVolumeThreshold measured against the
	// lender's physical office presence instead of transaction volume.
	ScopePresenceThreshold ScopeStrategy = "presence-threshold"
)

// Valid reports whether s is a recognized strategy.
func (s ScopeStrategy) Valid() bool {
	switch s {
	case ScopeCustom, ScopeAllActive, ScopeVolumeThreshold, ScopePresenceThreshold:
		return true
	}
	return false
}

// ScopeSpec is one scope resolution request.
type ScopeSpec struct {
	Strategy    ScopeStrategy
	CustomUnits []GeoCode // consulted only when Strategy == ScopeCustom
}

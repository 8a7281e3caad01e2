package scope

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fairlend/peerscope/internal/model"
	"github.com/shopspring/decimal"
)

// Scope resolution errors.
var (
	// ErrEmptyScope means the caller supplied no custom geography, or scope
	// expansion produced no units.
	ErrEmptyScope = errors.New("empty geographic scope")
	// ErrNoActivity means the lender has zero matching records in the
	// requested scope, filters, and year range.
	ErrNoActivity = errors.New("no matching lender activity")
)

// MetroShare is one metro area's share of the lender's national measure.
type MetroShare struct {
	Metro   string
	Share   decimal.Decimal
	Measure int64
}

// NoQualifyingMetroError reports that no metro area met the volume or
// presence threshold. It carries the closest misses so the caller can
// decide whether to retry with the all-active strategy.
type NoQualifyingMetroError struct {
	LenderID   string
	Strategy   model.ScopeStrategy
	Threshold  decimal.Decimal
	NearMisses []MetroShare
}

func (e *NoQualifyingMetroError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no metro area holds %s%% of lender %s's national %s",
		e.Threshold.String(), e.LenderID, e.measureName())
	if len(e.NearMisses) > 0 {
		b.WriteString("; closest:")
		for _, m := range e.NearMisses {
			fmt.Fprintf(&b, " %s=%s%%", m.Metro, m.Share.StringFixed(2))
		}
	}
	return b.String()
}

func (e *NoQualifyingMetroError) measureName() string {
	if e.Strategy == model.ScopePresenceThreshold {
		return "office presence"
	}
	return "volume"
}

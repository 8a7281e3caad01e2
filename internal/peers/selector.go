// Package peers selects a statistically comparable cohort of lenders
// around a subject's transaction volume, with deterministic fallback
// widening when no candidate satisfies the primary window.
package peers

import (
	"sort"

	"github.com/fairlend/peerscope/internal/model"
	"github.com/shopspring/decimal"
)

// tier is one rung of the volume-band fallback ladder: a multiplier window
// around the subject's volume and an optional cap on cohort size. A nil
// window means no band restriction.
type tier struct {
	lo, hi *decimal.Decimal
	window model.WindowUsed
	cap    int
}

// TopK is the cohort size cap applied by the fallback tiers.
const TopK = 20

var (
	primaryLo  = decimal.NewFromFloat(0.5)
	primaryHi  = decimal.NewFromFloat(2.0)
	expandedLo = decimal.NewFromFloat(0.25)
	expandedHi = decimal.NewFromFloat(4.0)

	// volumeTiers is evaluated in order until a tier yields a non-empty
	// cohort. Each successive window is a superset of the previous one, so
	// widening never removes a candidate the earlier tier accepted.
	volumeTiers = []tier{
		{lo: &primaryLo, hi: &primaryHi, window: model.WindowPrimary},
		{lo: &expandedLo, hi: &expandedHi, cap: TopK, window: model.WindowExpanded},
		{cap: TopK, window: model.WindowTopK},
	}
)

// SelectPeers picks the comparison cohort for subject out of the candidate
// pool. An empty pool is not an error: it yields an empty cohort with
// window "none", and the caller decides whether to proceed subject-only.
func SelectPeers(subject model.LenderVolume, candidates []model.LenderVolume, group model.ComparisonGroup) model.PeerCohort {
	cohort := model.PeerCohort{Subject: subject, Window: model.WindowNone}

	pool := excludeSubject(subject.LenderID, candidates)
	if len(pool) == 0 {
		return cohort
	}

	if group.Mode == model.CompareCategory {
		cohort.Peers = rank(filterCategory(pool, group.Category), 0)
		cohort.Window = model.WindowCategory
		if len(cohort.Peers) == 0 {
			cohort.Window = model.WindowNone
		}
		return cohort
	}

	subjectAmount := decimal.NewFromInt(subject.TotalAmount)
	for _, t := range volumeTiers {
		matched := filterWindow(pool, subjectAmount, t)
		if len(matched) == 0 {
			continue
		}
		cohort.Peers = rank(matched, t.cap)
		cohort.Window = t.window
		return cohort
	}

	return cohort
}

// excludeSubject removes the subject's own identifier from the pool. The
// subject must never appear among its peers.
func excludeSubject(subjectID string, candidates []model.LenderVolume) []model.LenderVolume {
	pool := make([]model.LenderVolume, 0, len(candidates))
	for _, c := range candidates {
		if c.LenderID == subjectID {
			continue
		}
		pool = append(pool, c)
	}
	return pool
}

// filterWindow keeps candidates whose volume falls within the tier's
// closed multiplier interval around the subject amount.
func filterWindow(pool []model.LenderVolume, subjectAmount decimal.Decimal, t tier) []model.LenderVolume {
	if t.lo == nil || t.hi == nil {
		return pool
	}

	lo := subjectAmount.Mul(*t.lo)
	hi := subjectAmount.Mul(*t.hi)

	matched := make([]model.LenderVolume, 0, len(pool))
	for _, c := range pool {
		amount := decimal.NewFromInt(c.TotalAmount)
		if amount.Cmp(lo) >= 0 && amount.Cmp(hi) <= 0 {
			matched = append(matched, c)
		}
	}
	return matched
}

func filterCategory(pool []model.LenderVolume, category string) []model.LenderVolume {
	matched := make([]model.LenderVolume, 0, len(pool))
	for _, c := range pool {
		if c.Category == category {
			matched = append(matched, c)
		}
	}
	return matched
}

// rank orders candidates by volume descending, breaking ties by lender
// identifier ascending so results are reproducible across runs, then
// applies the tier's size cap.
func rank(pool []model.LenderVolume, limit int) []model.LenderVolume {
	ranked := make([]model.LenderVolume, len(pool))
	copy(ranked, pool)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].TotalAmount != ranked[j].TotalAmount {
			return ranked[i].TotalAmount > ranked[j].TotalAmount
		}
		return ranked[i].LenderID < ranked[j].LenderID
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

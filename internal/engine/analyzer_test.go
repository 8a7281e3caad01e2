package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/fairlend/peerscope/internal/aggregate"
	"github.com/fairlend/peerscope/internal/common"
	"github.com/fairlend/peerscope/internal/engine"
	"github.com/fairlend/peerscope/internal/filter"
	"github.com/fairlend/peerscope/internal/model"
	"github.com/fairlend/peerscope/internal/refcache"
	"github.com/fairlend/peerscope/internal/scope"
	"github.com/fairlend/peerscope/internal/storage"
	"github.com/fairlend/peerscope/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalyzer(t *testing.T, db *testutil.TestDB) *engine.Analyzer {
	t.Helper()

	cache := refcache.New(time.Minute)
	t.Cleanup(cache.Close)

	agg := aggregate.New(db.Store)
	resolver := scope.NewResolver(agg, engine.NewCachedReference(cache, db.Store))
	return engine.NewAnalyzer(agg, resolver, db.Store)
}

func customScope(units ...model.GeoCode) model.ScopeSpec {
	return model.ScopeSpec{Strategy: model.ScopeCustom, CustomUnits: units}
}

func TestAnalyzer_Run_PrimaryWindowCohort(t *testing.T) {
	// Subject volume 1,000,000; A at 600k and B at 1.9M fall inside the
	// primary [500k, 2M] band, C at 50k does not.
	db := testutil.SetupTestDB(t).SeedFacts(
		testutil.Fact("SUBJ", "01001", 2022, 400_000),
		testutil.Fact("SUBJ", "01003", 2022, 600_000),
		testutil.Fact("A", "01001", 2022, 600_000),
		testutil.Fact("B", "01003", 2022, 1_900_000),
		testutil.Fact("C", "01001", 2022, 50_000),
	)
	a := newAnalyzer(t, db)

	result, err := a.Run(context.Background(), engine.AnalysisRequest{
		LenderID: "SUBJ",
		Scope:    customScope("01001", "01003"),
		Years:    model.YearRange{From: 2022, To: 2022},
	})
	require.NoError(t, err)

	assert.Equal(t, []model.GeoCode{"01001", "01003"}, result.Scope)
	assert.Equal(t, model.WindowPrimary, result.Cohort.Window)
	assert.Equal(t, int64(1_000_000), result.Cohort.Subject.TotalAmount)

	require.Len(t, result.Cohort.Peers, 2)
	assert.Equal(t, "B", result.Cohort.Peers[0].LenderID)
	assert.Equal(t, "A", result.Cohort.Peers[1].LenderID)

	// Detail pass: cohort volumes per geography, ascending by code. C is
	// not a peer, so its 50k in 01001 does not count.
	require.Len(t, result.CohortByGeo, 2)
	assert.Equal(t, engine.GeoVolume{Geo: "01001", Amount: 1_000_000, Count: 2}, result.CohortByGeo[0])
	assert.Equal(t, engine.GeoVolume{Geo: "01003", Amount: 2_500_000, Count: 2}, result.CohortByGeo[1])

	assert.False(t, result.Partial)
}

func TestAnalyzer_Run_FallsBackToTopK(t *testing.T) {
	db := testutil.SetupTestDB(t).SeedFacts(
		testutil.Fact("SUBJ", "01001", 2022, 1_000_000),
		testutil.Fact("A", "01001", 2022, 50_000),
	)
	a := newAnalyzer(t, db)

	result, err := a.Run(context.Background(), engine.AnalysisRequest{
		LenderID: "SUBJ",
		Scope:    customScope("01001"),
		Years:    model.YearRange{From: 2022, To: 2022},
	})
	require.NoError(t, err)

	assert.Equal(t, model.WindowTopK, result.Cohort.Window)
	require.Len(t, result.Cohort.Peers, 1)
	assert.Equal(t, "A", result.Cohort.Peers[0].LenderID)
}

func TestAnalyzer_Run_SubjectOnlyScope(t *testing.T) {
	db := testutil.SetupTestDB(t).SeedFacts(
		testutil.Fact("SUBJ", "01001", 2022, 1_000_000),
	)
	a := newAnalyzer(t, db)

	result, err := a.Run(context.Background(), engine.AnalysisRequest{
		LenderID: "SUBJ",
		Scope:    customScope("01001"),
		Years:    model.YearRange{From: 2022, To: 2022},
	})
	require.NoError(t, err, "an empty candidate pool is a reported outcome, not a failure")

	assert.Equal(t, model.WindowNone, result.Cohort.Window)
	assert.Empty(t, result.Cohort.Peers)
	// The detail pass still reports the subject's own volumes.
	require.Len(t, result.CohortByGeo, 1)
	assert.Equal(t, int64(1_000_000), result.CohortByGeo[0].Amount)
}

func TestAnalyzer_Run_CategoryComparison(t *testing.T) {
	db := testutil.SetupTestDB(t).
		SeedLenders(
			storage.Lender{LenderID: "SUBJ", Name: "Subject CU", Category: "credit-union"},
			storage.Lender{LenderID: "A", Name: "Alpha CU", Category: "credit-union"},
			storage.Lender{LenderID: "B", Name: "Big Bank", Category: "bank"},
		).
		SeedFacts(
			testutil.Fact("SUBJ", "01001", 2022, 1_000_000),
			testutil.Fact("A", "01001", 2022, 10_000), // far outside any volume band
			testutil.Fact("B", "01001", 2022, 1_000_000),
		)
	a := newAnalyzer(t, db)

	result, err := a.Run(context.Background(), engine.AnalysisRequest{
		LenderID:   "SUBJ",
		Scope:      customScope("01001"),
		Years:      model.YearRange{From: 2022, To: 2022},
		Comparison: model.ComparisonGroup{Mode: model.CompareCategory, Category: "credit-union"},
	})
	require.NoError(t, err)

	assert.Equal(t, model.WindowCategory, result.Cohort.Window)
	require.Len(t, result.Cohort.Peers, 1)
	assert.Equal(t, "A", result.Cohort.Peers[0].LenderID)
	assert.Equal(t, "Subject CU", result.Cohort.Subject.Name)
}

func TestAnalyzer_Run_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	a := newAnalyzer(t, db)
	ctx := context.Background()

	_, err := a.Run(ctx, engine.AnalysisRequest{
		Scope: customScope("01001"),
		Years: model.YearRange{From: 2022, To: 2022},
	})
	assert.ErrorIs(t, err, common.ErrMissingLender)

	_, err = a.Run(ctx, engine.AnalysisRequest{
		LenderID: "SUBJ",
		Scope:    customScope("01001"),
		Years:    model.YearRange{From: 2023, To: 2020},
	})
	assert.ErrorIs(t, err, common.ErrInvalidYearRange)

	_, err = a.Run(ctx, engine.AnalysisRequest{
		LenderID: "SUBJ",
		Scope:    model.ScopeSpec{Strategy: "bogus"},
		Years:    model.YearRange{From: 2022, To: 2022},
	})
	assert.ErrorIs(t, err, common.ErrInvalidStrategy)
}

func TestAnalyzer_Run_DefaultFiltersExcludeNonMatchingRecords(t *testing.T) {
	investment := testutil.Fact("A", "01001", 2022, 600_000)
	investment.Occupancy = "investment"

	db := testutil.SetupTestDB(t).SeedFacts(
		testutil.Fact("SUBJ", "01001", 2022, 1_000_000),
		investment,
		testutil.Fact("A", "01001", 2022, 700_000),
	)
	a := newAnalyzer(t, db)

	result, err := a.Run(context.Background(), engine.AnalysisRequest{
		LenderID: "SUBJ",
		Scope:    customScope("01001"),
		Years:    model.YearRange{From: 2022, To: 2022},
		Filters:  filter.Options{},
	})
	require.NoError(t, err)

	require.Len(t, result.Cohort.Peers, 1)
	assert.Equal(t, int64(700_000), result.Cohort.Peers[0].TotalAmount,
		"investment-occupancy volume must not count toward the candidate pool")
}

func TestCachedReference_ServesFromCache(t *testing.T) {
	db := testutil.SetupTestDB(t).SeedGeoReference(
		storage.GeoReferenceRow{GeoCode: "01001", MetroCode: "M1", MetroName: "Metro One"},
	)

	cache := refcache.New(time.Minute)
	t.Cleanup(cache.Close)
	ref := engine.NewCachedReference(cache, db.Store)

	ctx := context.Background()
	first, err := ref.MetroMembers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.GeoCode{"01001"}, first["M1"])

	// A reference table change is invisible until the TTL lapses.
	db.SeedGeoReference(storage.GeoReferenceRow{GeoCode: "01003", MetroCode: "M1", MetroName: "Metro One"})
	second, err := ref.MetroMembers(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCachedReference_NormalizerFromCrosswalkTable(t *testing.T) {
	db := testutil.SetupTestDB(t).SeedCrosswalk(map[string]string{
		"990101": "09120",
	})

	cache := refcache.New(time.Minute)
	t.Cleanup(cache.Close)
	ref := engine.NewCachedReference(cache, db.Store)

	ctx := context.Background()
	norm, err := ref.Normalizer(ctx)
	require.NoError(t, err)

	assert.Equal(t, model.GeoCode("09120"), norm.Normalize("09003", "09003990101", 2021))
	assert.Equal(t, model.GeoCode("09003"), norm.Normalize("09003", "09003990101", 2022),
		"post-cutover records pass through unchanged")

	// The crosswalk loads once; later calls serve the cached normalizer.
	again, err := ref.Normalizer(ctx)
	require.NoError(t, err)
	assert.Same(t, norm, again)
}

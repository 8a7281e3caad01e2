package storage_test

import (
	"context"
	"testing"

	"github.com/fairlend/peerscope/internal/aggregate"
	"github.com/fairlend/peerscope/internal/filter"
	"github.com/fairlend/peerscope/internal/model"
	"github.com/fairlend/peerscope/internal/storage"
	"github.com/fairlend/peerscope/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowsByKey(rows []aggregate.Row) map[string]aggregate.Row {
	m := make(map[string]aggregate.Row, len(rows))
	for _, r := range rows {
		m[r.Key] = r
	}
	return m
}

func TestStore_GroupedSum_ByGeo(t *testing.T) {
	db := testutil.SetupTestDB(t).SeedFacts(
		testutil.Fact("L1", "01001", 2022, 100_000),
		testutil.Fact("L1", "01001", 2022, 50_000),
		testutil.Fact("L1", "01003", 2023, 200_000),
		testutil.Fact("L2", "01001", 2022, 999_000), // other lender, excluded by dimension filter
		testutil.Fact("L1", "01001", 2019, 777_000), // outside year range
	)

	rows, err := db.Store.GroupedSum(context.Background(), aggregate.Request{
		EntityIDs: []string{"L1"},
		Dimension: aggregate.DimLenderID,
		GroupBy:   aggregate.GroupByGeo,
		Years:     model.YearRange{From: 2022, To: 2023},
		Filters:   filter.Translate(filter.Options{}),
		Source:    aggregate.SourceFacts,
	})
	require.NoError(t, err)

	byKey := rowsByKey(rows)
	require.Len(t, byKey, 2)
	assert.Equal(t, aggregate.Row{Key: "01001", Amount: 150_000, Count: 2}, byKey["01001"])
	assert.Equal(t, aggregate.Row{Key: "01003", Amount: 200_000, Count: 1}, byKey["01003"])
}

func TestStore_GroupedSum_FiltersApply(t *testing.T) {
	investment := testutil.Fact("L1", "01001", 2022, 40_000)
	investment.Occupancy = "investment"

	rescindable := testutil.Fact("L1", "01001", 2022, 60_000)
	rescindable.RescissionEligible = true

	db := testutil.SetupTestDB(t).SeedFacts(
		testutil.Fact("L1", "01001", 2022, 100_000),
		investment,
		rescindable,
	)

	rows, err := db.Store.GroupedSum(context.Background(), aggregate.Request{
		EntityIDs: []string{"L1"},
		Dimension: aggregate.DimLenderID,
		GroupBy:   aggregate.GroupByGeo,
		Years:     model.YearRange{From: 2022, To: 2022},
		Filters:   filter.Translate(filter.Options{}),
		Source:    aggregate.SourceFacts,
	})
	require.NoError(t, err)

	byKey := rowsByKey(rows)
	require.Contains(t, byKey, "01001")
	assert.Equal(t, int64(100_000), byKey["01001"].Amount,
		"investment occupancy and rescission-eligible records must be filtered out by defaults")
}

func TestStore_GroupedSum_NormalizesLegacyCodes(t *testing.T) {
	// A pre-cutover record in jurisdiction 09 groups under its canonical
	// post-cutover code; the post-cutover record lands there directly.
	legacy := testutil.Fact("L1", "09003", 2021, 100_000)
	legacy.CensusTract = "09003430102"

	current := testutil.Fact("L1", "09120", 2022, 50_000)
	current.CensusTract = "09120430102"

	unmatched := testutil.Fact("L1", "09005", 2021, 25_000)
	unmatched.CensusTract = "09005999999" // no crosswalk entry: code retained, still counted

	db := testutil.SetupTestDB(t).
		SeedCrosswalk(map[string]string{"430102": "09120"}).
		SeedFacts(legacy, current, unmatched)

	rows, err := db.Store.GroupedSum(context.Background(), aggregate.Request{
		EntityIDs: []string{"L1"},
		Dimension: aggregate.DimLenderID,
		GroupBy:   aggregate.GroupByGeo,
		Years:     model.YearRange{From: 2020, To: 2023},
		Filters:   filter.Translate(filter.Options{}),
		Source:    aggregate.SourceFacts,
	})
	require.NoError(t, err)

	byKey := rowsByKey(rows)
	require.Len(t, byKey, 2)
	assert.Equal(t, aggregate.Row{Key: "09120", Amount: 150_000, Count: 2}, byKey["09120"])
	assert.Equal(t, aggregate.Row{Key: "09005", Amount: 25_000, Count: 1}, byKey["09005"])
}

func TestStore_GroupedSum_GeoDimensionUsesNormalizedCode(t *testing.T) {
	legacy := testutil.Fact("L1", "09003", 2021, 100_000)
	legacy.CensusTract = "09003430102"

	db := testutil.SetupTestDB(t).
		SeedCrosswalk(map[string]string{"430102": "09120"}).
		SeedFacts(legacy)

	// Filtering on the canonical code must catch the legacy record.
	rows, err := db.Store.GroupedSum(context.Background(), aggregate.Request{
		EntityIDs: []string{"09120"},
		Dimension: aggregate.DimGeoCode,
		GroupBy:   aggregate.GroupByLender,
		Years:     model.YearRange{From: 2020, To: 2023},
		Filters:   filter.Translate(filter.Options{}),
		Source:    aggregate.SourceFacts,
	})
	require.NoError(t, err)

	byKey := rowsByKey(rows)
	require.Contains(t, byKey, "L1")
	assert.Equal(t, int64(100_000), byKey["L1"].Amount)
}

func TestStore_GroupedSum_ByMetro(t *testing.T) {
	db := testutil.SetupTestDB(t).
		SeedGeoReference(
			storage.GeoReferenceRow{GeoCode: "01001", Name: "Autauga", MetroCode: "M1", MetroName: "Metro One"},
			storage.GeoReferenceRow{GeoCode: "01003", Name: "Baldwin", MetroCode: "M1", MetroName: "Metro One"},
			storage.GeoReferenceRow{GeoCode: "01005", Name: "Barbour"}, // no metro
		).
		SeedFacts(
			testutil.Fact("L1", "01001", 2022, 100_000),
			testutil.Fact("L1", "01003", 2022, 50_000),
			testutil.Fact("L1", "01005", 2022, 25_000),
		)

	rows, err := db.Store.GroupedSum(context.Background(), aggregate.Request{
		EntityIDs: []string{"L1"},
		Dimension: aggregate.DimLenderID,
		GroupBy:   aggregate.GroupByMetro,
		Years:     model.YearRange{From: 2022, To: 2022},
		Filters:   filter.Translate(filter.Options{}),
		Source:    aggregate.SourceFacts,
	})
	require.NoError(t, err)

	byKey := rowsByKey(rows)
	require.Len(t, byKey, 1, "units outside any metro are not grouped")
	assert.Equal(t, aggregate.Row{Key: "M1", Amount: 150_000, Count: 2}, byKey["M1"])
}

func TestStore_GroupedSum_Offices(t *testing.T) {
	db := testutil.SetupTestDB(t).
		SeedGeoReference(
			storage.GeoReferenceRow{GeoCode: "01001", MetroCode: "M1", MetroName: "Metro One"},
			storage.GeoReferenceRow{GeoCode: "36061", MetroCode: "M2", MetroName: "Metro Two"},
		).
		SeedOffices(
			storage.OfficeLocation{LenderID: "L1", GeoCode: "01001", Year: 2022},
			storage.OfficeLocation{LenderID: "L1", GeoCode: "01001", Year: 2022},
			storage.OfficeLocation{LenderID: "L1", GeoCode: "36061", Year: 2022},
			storage.OfficeLocation{LenderID: "L2", GeoCode: "36061", Year: 2022},
		)

	rows, err := db.Store.GroupedSum(context.Background(), aggregate.Request{
		EntityIDs: []string{"L1"},
		Dimension: aggregate.DimLenderID,
		GroupBy:   aggregate.GroupByMetro,
		Years:     model.YearRange{From: 2022, To: 2022},
		Source:    aggregate.SourceOffices,
	})
	require.NoError(t, err)

	byKey := rowsByKey(rows)
	require.Len(t, byKey, 2)
	assert.Equal(t, int64(2), byKey["M1"].Count)
	assert.Equal(t, int64(1), byKey["M2"].Count)
	assert.Zero(t, byKey["M1"].Amount, "office aggregation carries no amounts")
}

func TestStore_GroupedSum_InvalidYearRange(t *testing.T) {
	db := testutil.SetupTestDB(t)

	_, err := db.Store.GroupedSum(context.Background(), aggregate.Request{
		EntityIDs: []string{"L1"},
		Years:     model.YearRange{From: 2023, To: 2020},
		GroupBy:   aggregate.GroupByGeo,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrInvalidYearRange)
}

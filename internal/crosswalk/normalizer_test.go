package crosswalk

import (
	"testing"

	"github.com/fairlend/peerscope/internal/model"
	"github.com/stretchr/testify/assert"
)

func testNormalizer() *Normalizer {
	return New([]Entry{
		{TractSuffix: "430102", Canonical: "09120"},
		{TractSuffix: "520500", Canonical: "09140"},
	})
}

func TestNormalizer_Normalize(t *testing.T) {
	n := testNormalizer()

	tests := []struct {
		name  string
		geo   model.GeoCode
		tract string
		year  int
		want  model.GeoCode
	}{
		{
			name:  "legacy record with crosswalk entry is remapped",
			geo:   "09003",
			tract: "09003430102",
			year:  2020,
			want:  "09120",
		},
		{
			name:  "record outside the jurisdiction passes through",
			geo:   "01001",
			tract: "01001020100",
			year:  2020,
			want:  "01001",
		},
		{
			name:  "post-cutover record passes through",
			geo:   "09120",
			tract: "09120430102",
			year:  2022,
			want:  "09120",
		},
		{
			name:  "legacy record with no crosswalk entry keeps its code",
			geo:   "09003",
			tract: "09003999999",
			year:  2021,
			want:  "09003",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.geo, tt.tract, tt.year))
		})
	}
}

func TestNormalizer_Idempotent(t *testing.T) {
	n := testNormalizer()

	// Normalizing an already-canonical code is a no-op at any year.
	once := n.Normalize("09003", "09003430102", 2020)
	assert.Equal(t, model.GeoCode("09120"), once)
	assert.Equal(t, once, n.Normalize(once, "09120430102", 2020),
		"canonical codes must not be remapped again")
}

func TestTractSuffix(t *testing.T) {
	assert.Equal(t, "430102", TractSuffix("09003430102"))
	assert.Equal(t, "430102", TractSuffix("430102"))
	assert.Equal(t, "0102", TractSuffix("0102"))
}

func TestAffected(t *testing.T) {
	assert.True(t, Affected("09001", 2021))
	assert.False(t, Affected("09001", 2022))
	assert.False(t, Affected("36001", 2021))
}

func TestSQLRendering(t *testing.T) {
	expr := GeoExpr("f", "x")
	assert.Equal(t,
		"CASE WHEN f.geo_code LIKE '09%' AND f.year < 2022"+
			" THEN COALESCE(x.canonical_geo, f.geo_code)"+
			" ELSE f.geo_code END",
		expr)

	join := JoinClause("f", "x")
	assert.Equal(t,
		"LEFT JOIN tract_crosswalk x ON x.tract_suffix = substr(f.census_tract, -6)",
		join)
}

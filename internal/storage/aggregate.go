package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/fairlend/peerscope/internal/aggregate"
	"github.com/fairlend/peerscope/internal/crosswalk"
)

// GroupedSum executes one chunk's grouped-sum query. Every geographic
// grouping and filter goes through the crosswalk expression so the
// jurisdiction 09 coding discontinuity is normalized identically in every
// query. Office locations carry canonical codes already and join the
// reference table directly.
func (s *Store) GroupedSum(ctx context.Context, req aggregate.Request) ([]aggregate.Row, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateYearRange(req.Years); err != nil {
		return nil, err
	}

	sqlText, args, err := buildGroupedSum(req)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("grouped sum query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []aggregate.Row
	for rows.Next() {
		var row aggregate.Row
		if err := rows.Scan(&row.Key, &row.Amount, &row.Count); err != nil {
			return nil, fmt.Errorf("failed to scan grouped row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("grouped sum rows failed: %w", err)
	}

	return out, nil
}

// buildGroupedSum renders one grouped-sum query. All caller values travel
// as bind arguments; the only dynamic SQL text comes from fixed column and
// expression constants selected by the request enums.
func buildGroupedSum(req aggregate.Request) (string, []any, error) {
	switch req.Source {
	case aggregate.SourceFacts, "":
		return buildFactsQuery(req)
	case aggregate.SourceOffices:
		return buildOfficesQuery(req)
	default:
		return "", nil, fmt.Errorf("unknown aggregation source %q", req.Source)
	}
}

func buildFactsQuery(req aggregate.Request) (string, []any, error) {
	geoExpr := crosswalk.GeoExpr("f", "x")

	var dimExpr string
	switch req.Dimension {
	case aggregate.DimGeoCode:
		dimExpr = geoExpr
	case aggregate.DimLenderID, "":
		dimExpr = "f.lender_id"
	default:
		return "", nil, fmt.Errorf("unknown aggregation dimension %q", req.Dimension)
	}

	var groupExpr string
	joinMetro := false
	switch req.GroupBy {
	case aggregate.GroupByGeo:
		groupExpr = geoExpr
	case aggregate.GroupByLender:
		groupExpr = "f.lender_id"
	case aggregate.GroupByMetro:
		groupExpr = "g.metro_code"
		joinMetro = true
	default:
		return "", nil, fmt.Errorf("unknown aggregation group-by %q", req.GroupBy)
	}

	var b strings.Builder
	args := make([]any, 0, len(req.EntityIDs)+8)

	fmt.Fprintf(&b, "SELECT %s AS grp, COALESCE(SUM(f.amount), 0), COUNT(*)\n", groupExpr)
	b.WriteString("FROM loan_facts f\n")
	b.WriteString(crosswalk.JoinClause("f", "x") + "\n")
	if joinMetro {
		fmt.Fprintf(&b, "JOIN geo_reference g ON g.geo_code = %s AND g.metro_code <> ''\n", geoExpr)
	}

	b.WriteString("WHERE f.year BETWEEN ? AND ?\n")
	args = append(args, req.Years.From, req.Years.To)

	if len(req.EntityIDs) > 0 {
		fmt.Fprintf(&b, "AND %s IN (%s)\n", dimExpr, placeholders(len(req.EntityIDs)))
		for _, id := range req.EntityIDs {
			args = append(args, id)
		}
	}

	if clause, filterArgs := req.Filters.Render(); clause != "1=1" {
		fmt.Fprintf(&b, "AND %s\n", clause)
		args = append(args, filterArgs...)
	}

	b.WriteString("GROUP BY grp")
	return b.String(), args, nil
}

func buildOfficesQuery(req aggregate.Request) (string, []any, error) {
	var dimExpr string
	switch req.Dimension {
	case aggregate.DimGeoCode:
		dimExpr = "o.geo_code"
	case aggregate.DimLenderID, "":
		dimExpr = "o.lender_id"
	default:
		return "", nil, fmt.Errorf("unknown aggregation dimension %q", req.Dimension)
	}

	var groupExpr string
	joinMetro := false
	switch req.GroupBy {
	case aggregate.GroupByGeo:
		groupExpr = "o.geo_code"
	case aggregate.GroupByLender:
		groupExpr = "o.lender_id"
	case aggregate.GroupByMetro:
		groupExpr = "g.metro_code"
		joinMetro = true
	default:
		return "", nil, fmt.Errorf("unknown aggregation group-by %q", req.GroupBy)
	}

	var b strings.Builder
	args := make([]any, 0, len(req.EntityIDs)+2)

	fmt.Fprintf(&b, "SELECT %s AS grp, 0, COUNT(*)\n", groupExpr)
	b.WriteString("FROM office_locations o\n")
	if joinMetro {
		b.WriteString("JOIN geo_reference g ON g.geo_code = o.geo_code AND g.metro_code <> ''\n")
	}

	b.WriteString("WHERE o.year BETWEEN ? AND ?\n")
	args = append(args, req.Years.From, req.Years.To)

	if len(req.EntityIDs) > 0 {
		fmt.Fprintf(&b, "AND %s IN (%s)\n", dimExpr, placeholders(len(req.EntityIDs)))
		for _, id := range req.EntityIDs {
			args = append(args, id)
		}
	}

	b.WriteString("GROUP BY grp")
	return b.String(), args, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

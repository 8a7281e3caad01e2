package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fairlend/peerscope/internal/crosswalk"
	"github.com/fairlend/peerscope/internal/model"
)

// MetroMembers returns every metro area's member geographic units from the
// reference geography table, keyed by metro code.
func (s *Store) MetroMembers(ctx context.Context) (map[string][]model.GeoCode, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT metro_code, geo_code
		FROM geo_reference
		WHERE metro_code <> ''
		ORDER BY metro_code, geo_code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load metro membership: %w", err)
	}
	defer func() { _ = rows.Close() }()

	members := make(map[string][]model.GeoCode)
	for rows.Next() {
		var metro string
		var geo model.GeoCode
		if err := rows.Scan(&metro, &geo); err != nil {
			return nil, fmt.Errorf("failed to scan metro membership: %w", err)
		}
		members[metro] = append(members[metro], geo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metro membership rows failed: %w", err)
	}

	return members, nil
}

// CrosswalkEntries loads the full tract crosswalk.
func (s *Store) CrosswalkEntries(ctx context.Context) ([]crosswalk.Entry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tract_suffix, canonical_geo
		FROM tract_crosswalk
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load crosswalk: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []crosswalk.Entry
	for rows.Next() {
		var e crosswalk.Entry
		if err := rows.Scan(&e.TractSuffix, &e.Canonical); err != nil {
			return nil, fmt.Errorf("failed to scan crosswalk entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("crosswalk rows failed: %w", err)
	}

	return entries, nil
}

// LenderCategories returns the institution category for each requested
// lender. Unknown lenders are simply absent from the result.
func (s *Store) LenderCategories(ctx context.Context, lenderIDs []string) (map[string]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if len(lenderIDs) == 0 {
		return map[string]string{}, nil
	}

	args := make([]any, len(lenderIDs))
	for i, id := range lenderIDs {
		args[i] = id
	}

	q := fmt.Sprintf(`
		SELECT lender_id, category
		FROM lenders
		WHERE lender_id IN (%s)
	`, placeholders(len(lenderIDs)))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load lender categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	categories := make(map[string]string, len(lenderIDs))
	for rows.Next() {
		var id, category string
		if err := rows.Scan(&id, &category); err != nil {
			return nil, fmt.Errorf("failed to scan lender category: %w", err)
		}
		categories[id] = category
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lender category rows failed: %w", err)
	}

	return categories, nil
}

// LenderName returns the display name of one lender, or the identifier
// itself when the lender reference table has no entry.
func (s *Store) LenderName(ctx context.Context, lenderID string) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateString(lenderID, "lenderID"); err != nil {
		return "", err
	}

	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM lenders WHERE lender_id = ?`, lenderID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return lenderID, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load lender name: %w", err)
	}
	if name == "" {
		return lenderID, nil
	}
	return name, nil
}

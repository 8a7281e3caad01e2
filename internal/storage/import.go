package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// LoanFact is one reported lending event as stored in the fact table. The
// engine never mutates facts; this type exists for the import path and for
// test seeding.
type LoanFact struct {
	LenderID           string
	GeoCode            string
	CensusTract        string
	Disposition        string
	Occupancy          string
	PropertyType       string
	Financing          string
	LoanCategory       string
	Year               int
	Amount             int64
	RescissionEligible bool
}

// OfficeLocation is one physical office of a lender in a reporting year.
type OfficeLocation struct {
	LenderID string
	GeoCode  string
	Year     int
}

// GeoReferenceRow is one reference geography entry.
type GeoReferenceRow struct {
	GeoCode   string
	Name      string
	MetroCode string
	MetroName string
}

// Lender is one entry of the lender reference table.
type Lender struct {
	LenderID string
	Name     string
	Category string
}

// InsertLoanFacts loads fact rows in one transaction.
func (s *Store) InsertLoanFacts(ctx context.Context, facts []LoanFact) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(facts) == 0 {
		return fmt.Errorf("%w: facts", ErrEmptySlice)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO loan_facts (
				lender_id, geo_code, census_tract, year, disposition,
				occupancy, property_type, financing, loan_category,
				rescission_eligible, amount
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, f := range facts {
			rescission := 0
			if f.RescissionEligible {
				rescission = 1
			}
			if _, err := stmt.ExecContext(ctx,
				f.LenderID, f.GeoCode, f.CensusTract, f.Year, f.Disposition,
				f.Occupancy, f.PropertyType, f.Financing, f.LoanCategory,
				rescission, f.Amount,
			); err != nil {
				return fmt.Errorf("failed to insert fact for lender %s: %w", f.LenderID, err)
			}
		}
		return nil
	})
}

// InsertOfficeLocations loads office rows in one transaction.
func (s *Store) InsertOfficeLocations(ctx context.Context, offices []OfficeLocation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(offices) == 0 {
		return fmt.Errorf("%w: offices", ErrEmptySlice)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO office_locations (lender_id, geo_code, year)
			VALUES (?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, o := range offices {
			if _, err := stmt.ExecContext(ctx, o.LenderID, o.GeoCode, o.Year); err != nil {
				return fmt.Errorf("failed to insert office for lender %s: %w", o.LenderID, err)
			}
		}
		return nil
	})
}

// InsertGeoReference loads reference geography rows, replacing entries
// that already exist.
func (s *Store) InsertGeoReference(ctx context.Context, rows []GeoReferenceRow) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: rows", ErrEmptySlice)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO geo_reference (geo_code, name, metro_code, metro_name)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.GeoCode, r.Name, r.MetroCode, r.MetroName); err != nil {
				return fmt.Errorf("failed to insert geo reference %s: %w", r.GeoCode, err)
			}
		}
		return nil
	})
}

// InsertCrosswalk loads tract crosswalk rows, replacing entries that
// already exist.
func (s *Store) InsertCrosswalk(ctx context.Context, tractSuffixToGeo map[string]string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(tractSuffixToGeo) == 0 {
		return fmt.Errorf("%w: crosswalk", ErrEmptySlice)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO tract_crosswalk (tract_suffix, canonical_geo)
			VALUES (?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for suffix, geo := range tractSuffixToGeo {
			if _, err := stmt.ExecContext(ctx, suffix, geo); err != nil {
				return fmt.Errorf("failed to insert crosswalk entry %s: %w", suffix, err)
			}
		}
		return nil
	})
}

// InsertLenders loads lender reference rows, replacing entries that
// already exist.
func (s *Store) InsertLenders(ctx context.Context, lenders []Lender) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(lenders) == 0 {
		return fmt.Errorf("%w: lenders", ErrEmptySlice)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO lenders (lender_id, name, category)
			VALUES (?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, l := range lenders {
			if _, err := stmt.ExecContext(ctx, l.LenderID, l.Name, l.Category); err != nil {
				return fmt.Errorf("failed to insert lender %s: %w", l.LenderID, err)
			}
		}
		return nil
	})
}

// withTx runs fn inside one transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

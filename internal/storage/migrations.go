package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a
// fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: fact table, reference geography, tract crosswalk",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS loan_facts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					lender_id TEXT NOT NULL,
					geo_code TEXT NOT NULL,
					census_tract TEXT NOT NULL DEFAULT '',
					year INTEGER NOT NULL,
					disposition TEXT NOT NULL,
					occupancy TEXT NOT NULL,
					property_type TEXT NOT NULL,
					financing TEXT NOT NULL,
					loan_category TEXT NOT NULL,
					rescission_eligible INTEGER NOT NULL DEFAULT 0,
					amount INTEGER NOT NULL
				)`,
				`CREATE INDEX idx_loan_facts_lender_year ON loan_facts(lender_id, year)`,
				`CREATE INDEX idx_loan_facts_geo ON loan_facts(geo_code)`,

				`CREATE TABLE IF NOT EXISTS geo_reference (
					geo_code TEXT PRIMARY KEY,
					name TEXT NOT NULL DEFAULT '',
					metro_code TEXT NOT NULL DEFAULT '',
					metro_name TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE INDEX idx_geo_reference_metro ON geo_reference(metro_code)`,

				`CREATE TABLE IF NOT EXISTS tract_crosswalk (
					tract_suffix TEXT PRIMARY KEY,
					canonical_geo TEXT NOT NULL
				)`,
			}

			for _, q := range queries {
				if _, err := tx.Exec(q); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add office locations for presence-based scoping",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS office_locations (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					lender_id TEXT NOT NULL,
					geo_code TEXT NOT NULL,
					year INTEGER NOT NULL
				)`,
				`CREATE INDEX idx_office_locations_lender_year ON office_locations(lender_id, year)`,
			}

			for _, q := range queries {
				if _, err := tx.Exec(q); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", q, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add lender reference table for category comparisons",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS lenders (
					lender_id TEXT PRIMARY KEY,
					name TEXT NOT NULL DEFAULT '',
					category TEXT NOT NULL DEFAULT ''
				)
			`)
			return err
		},
	},
}

// Migrate brings the database schema up to the expected version.
func (s *Store) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

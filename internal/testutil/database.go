// Package testutil provides test utilities for seeding an in-memory
// analytical store with facts, reference geography, and crosswalk data.
package testutil

import (
	"context"
	"testing"

	"github.com/fairlend/peerscope/internal/storage"
)

// TestDB wraps an in-memory store with seeding helpers.
type TestDB struct {
	Store *storage.Store
	t     *testing.T
}

// SetupTestDB creates a migrated in-memory store with cleanup registered.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Store: store, t: t}
}

// SeedFacts inserts fact rows, failing the test on error.
func (db *TestDB) SeedFacts(facts ...storage.LoanFact) *TestDB {
	db.t.Helper()
	if err := db.Store.InsertLoanFacts(context.Background(), facts); err != nil {
		db.t.Fatalf("failed to seed facts: %v", err)
	}
	return db
}

// SeedOffices inserts office locations, failing the test on error.
func (db *TestDB) SeedOffices(offices ...storage.OfficeLocation) *TestDB {
	db.t.Helper()
	if err := db.Store.InsertOfficeLocations(context.Background(), offices); err != nil {
		db.t.Fatalf("failed to seed offices: %v", err)
	}
	return db
}

// SeedGeoReference inserts reference geography rows, failing the test on
// error.
func (db *TestDB) SeedGeoReference(rows ...storage.GeoReferenceRow) *TestDB {
	db.t.Helper()
	if err := db.Store.InsertGeoReference(context.Background(), rows); err != nil {
		db.t.Fatalf("failed to seed geo reference: %v", err)
	}
	return db
}

// SeedCrosswalk inserts crosswalk entries, failing the test on error.
func (db *TestDB) SeedCrosswalk(tractSuffixToGeo map[string]string) *TestDB {
	db.t.Helper()
	if err := db.Store.InsertCrosswalk(context.Background(), tractSuffixToGeo); err != nil {
		db.t.Fatalf("failed to seed crosswalk: %v", err)
	}
	return db
}

// SeedLenders inserts lender reference rows, failing the test on error.
func (db *TestDB) SeedLenders(lenders ...storage.Lender) *TestDB {
	db.t.Helper()
	if err := db.Store.InsertLenders(context.Background(), lenders); err != nil {
		db.t.Fatalf("failed to seed lenders: %v", err)
	}
	return db
}

// Fact builds a completed, primary-occupancy, 1-4 unit, site-built fact,
// the shape the default filter set matches, so tests only spell out what
// they vary.
func Fact(lenderID, geoCode string, year int, amount int64) storage.LoanFact {
	return storage.LoanFact{
		LenderID:     lenderID,
		GeoCode:      geoCode,
		CensusTract:  geoCode + "000000",
		Year:         year,
		Disposition:  "completed",
		Occupancy:    "primary",
		PropertyType: "1-4",
		Financing:    "site-built",
		LoanCategory: "purchase",
		Amount:       amount,
	}
}

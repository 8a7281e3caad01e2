package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/fairlend/peerscope/internal/cli"
	"github.com/fairlend/peerscope/internal/common"
	"github.com/fairlend/peerscope/internal/crosswalk"
	"github.com/fairlend/peerscope/internal/engine"
	"github.com/fairlend/peerscope/internal/model"
	"github.com/fairlend/peerscope/internal/refcache"
	"github.com/fairlend/peerscope/internal/storage"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// importBatchSize bounds the rows inserted per transaction so a large file
// does not hold one transaction open for its whole duration.
const importBatchSize = 5000

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <dataset> <file.csv>",
		Short: "Load reference or fact data from a CSV file",
		Long: `Load data into the local database. Dataset is one of:

  facts      lending fact records
             (lender_id, geo_code, census_tract, disposition, occupancy,
              property_type, financing, loan_category, year, amount,
              rescission_eligible)
  offices    office locations (lender_id, geo_code, year)
  geo        reference geographies (geo_code, name, metro_code, metro_name)
  crosswalk  legacy boundary crosswalk (tract_suffix, canonical_geo)
  lenders    lender reference (lender_id, name, category)

The first row of the file is treated as a header and skipped.`,
		Args: cobra.ExactArgs(2),
		RunE: runImport,
	}
	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dataset, path := args[0], args[1]

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	store, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	// Skip the header row.
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return common.NewUserError(fmt.Sprintf("%s contains no rows", path), fmt.Errorf("empty file"))
		}
		return fmt.Errorf("reading header: %w", err)
	}

	bar := progressbar.Default(-1, fmt.Sprintf("Importing %s", dataset))
	var total int

	switch dataset {
	case "facts":
		// Legacy-coded fact rows are normalized on ingest so the stored
		// geo_code is canonical; the query-side crosswalk is idempotent on
		// already-normalized rows.
		cache := refcache.New(engine.ReferenceTTL)
		defer cache.Close()

		var norm *crosswalk.Normalizer
		norm, err = engine.NewCachedReference(cache, store).Normalizer(ctx)
		if err != nil {
			return err
		}
		total, err = importFacts(cmd, store, norm, reader, bar)
	case "offices":
		total, err = importOffices(cmd, store, reader, bar)
	case "geo":
		total, err = importGeo(cmd, store, reader, bar)
	case "crosswalk":
		total, err = importCrosswalk(cmd, store, reader, bar)
	case "lenders":
		total, err = importLenders(cmd, store, reader, bar)
	default:
		return common.NewUserError("dataset must be one of: facts, offices, geo, crosswalk, lenders",
			fmt.Errorf("unknown dataset %q", dataset))
	}
	_ = bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d %s rows from %s", total, dataset, path)))
	return nil
}

func importFacts(cmd *cobra.Command, store *storage.Store, norm *crosswalk.Normalizer, reader *csv.Reader, bar *progressbar.ProgressBar) (int, error) {
	ctx := cmd.Context()
	var batch []storage.LoanFact
	var total, legacy int
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, fmt.Errorf("reading row %d: %w", total+1, err)
		}
		if len(record) != 11 {
			return total, rowError(total+1, fmt.Errorf("expected 11 fields, got %d", len(record)))
		}
		year, err := strconv.Atoi(record[8])
		if err != nil {
			return total, rowError(total+1, fmt.Errorf("year: %w", err))
		}
		amount, err := strconv.ParseInt(record[9], 10, 64)
		if err != nil {
			return total, rowError(total+1, fmt.Errorf("amount: %w", err))
		}
		rescission, err := strconv.ParseBool(record[10])
		if err != nil {
			return total, rowError(total+1, fmt.Errorf("rescission_eligible: %w", err))
		}
		geo := model.GeoCode(record[1])
		if crosswalk.Affected(geo, year) {
			geo = norm.Normalize(geo, record[2], year)
			legacy++
		}
		batch = append(batch, storage.LoanFact{
			LenderID:           record[0],
			GeoCode:            string(geo),
			CensusTract:        record[2],
			Disposition:        record[3],
			Occupancy:          record[4],
			PropertyType:       record[5],
			Financing:          record[6],
			LoanCategory:       record[7],
			Year:               year,
			Amount:             amount,
			RescissionEligible: rescission,
		})
		if len(batch) >= importBatchSize {
			if err := store.InsertLoanFacts(ctx, batch); err != nil {
				return total, err
			}
			total += len(batch)
			_ = bar.Add(len(batch))
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := store.InsertLoanFacts(ctx, batch); err != nil {
			return total, err
		}
		total += len(batch)
		_ = bar.Add(len(batch))
	}
	if legacy > 0 {
		slog.Info("normalized legacy boundary codes on ingest", "rows", legacy)
	}
	return total, nil
}

func importOffices(cmd *cobra.Command, store *storage.Store, reader *csv.Reader, bar *progressbar.ProgressBar) (int, error) {
	ctx := cmd.Context()
	var batch []storage.OfficeLocation
	var total int
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, fmt.Errorf("reading row %d: %w", total+1, err)
		}
		if len(record) != 3 {
			return total, rowError(total+1, fmt.Errorf("expected 3 fields, got %d", len(record)))
		}
		year, err := strconv.Atoi(record[2])
		if err != nil {
			return total, rowError(total+1, fmt.Errorf("year: %w", err))
		}
		batch = append(batch, storage.OfficeLocation{
			LenderID: record[0],
			GeoCode:  record[1],
			Year:     year,
		})
		if len(batch) >= importBatchSize {
			if err := store.InsertOfficeLocations(ctx, batch); err != nil {
				return total, err
			}
			total += len(batch)
			_ = bar.Add(len(batch))
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := store.InsertOfficeLocations(ctx, batch); err != nil {
			return total, err
		}
		total += len(batch)
		_ = bar.Add(len(batch))
	}
	return total, nil
}

func importGeo(cmd *cobra.Command, store *storage.Store, reader *csv.Reader, bar *progressbar.ProgressBar) (int, error) {
	ctx := cmd.Context()
	var rows []storage.GeoReferenceRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return len(rows), fmt.Errorf("reading row %d: %w", len(rows)+1, err)
		}
		if len(record) != 4 {
			return len(rows), rowError(len(rows)+1, fmt.Errorf("expected 4 fields, got %d", len(record)))
		}
		rows = append(rows, storage.GeoReferenceRow{
			GeoCode:   record[0],
			Name:      record[1],
			MetroCode: record[2],
			MetroName: record[3],
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := store.InsertGeoReference(ctx, rows); err != nil {
		return 0, err
	}
	_ = bar.Add(len(rows))
	return len(rows), nil
}

func importCrosswalk(cmd *cobra.Command, store *storage.Store, reader *csv.Reader, bar *progressbar.ProgressBar) (int, error) {
	ctx := cmd.Context()
	entries := make(map[string]string)
	var row int
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return row, fmt.Errorf("reading row %d: %w", row+1, err)
		}
		if len(record) != 2 {
			return row, rowError(row+1, fmt.Errorf("expected 2 fields, got %d", len(record)))
		}
		entries[record[0]] = record[1]
		row++
	}
	if len(entries) == 0 {
		return 0, nil
	}
	if err := store.InsertCrosswalk(ctx, entries); err != nil {
		return 0, err
	}
	_ = bar.Add(len(entries))
	return len(entries), nil
}

func importLenders(cmd *cobra.Command, store *storage.Store, reader *csv.Reader, bar *progressbar.ProgressBar) (int, error) {
	ctx := cmd.Context()
	var rows []storage.Lender
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return len(rows), fmt.Errorf("reading row %d: %w", len(rows)+1, err)
		}
		if len(record) != 3 {
			return len(rows), rowError(len(rows)+1, fmt.Errorf("expected 3 fields, got %d", len(record)))
		}
		rows = append(rows, storage.Lender{
			LenderID: record[0],
			Name:     record[1],
			Category: record[2],
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := store.InsertLenders(ctx, rows); err != nil {
		return 0, err
	}
	_ = bar.Add(len(rows))
	return len(rows), nil
}

// rowError indexes errors by data row number, excluding the header.
func rowError(row int, err error) error {
	return fmt.Errorf("row %d: %w", row, err)
}

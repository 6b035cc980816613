package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	offerapp "github.com/speakASAP/allegro-service/internal/application/offer"
	"github.com/speakASAP/allegro-service/internal/domain/offer"
	csvimport "github.com/speakASAP/allegro-service/internal/infrastructure/import"
	"github.com/speakASAP/allegro-service/internal/infrastructure/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run <records.json|records.csv>",
	Short: "Build a migration artifact from legacy stock records",
	Long: `Reads legacy stock records, normalizes SKU and EAN, groups records that
describe the same item and resolves each group's stock to the most recently
updated record. The result is written as migration-<run id>.json to the
configured artifact storage.

Records are a JSON array, or a CSV export with the columns legacy_id,
stock_quantity and updated_at plus optional source_table, sku, ean and
external_product_id. Files ending in .csv are read as CSV; use --format for
standard input ("-").`,
	Example: `  stockmigrate run legacy-stock.json
  stockmigrate run --source-table shop_stock --encoding windows-1250 --delimiter ';' sklep.csv
  pg-export | stockmigrate run -`,
	Args: cobra.ExactArgs(1),
	RunE: runMigration,
}

var (
	runFormat      string
	runSourceTable string
	runDelimiter   string
	runEncoding    string
	runTimezone    string
)

func init() {
	runCmd.Flags().StringVar(&runFormat, "format", "", "input format: json or csv (default from file extension, json for stdin)")
	runCmd.Flags().StringVar(&runSourceTable, "source-table", "", "source table for CSV rows without a source_table column")
	runCmd.Flags().StringVar(&runDelimiter, "delimiter", ",", "CSV field delimiter")
	runCmd.Flags().StringVar(&runEncoding, "encoding", string(csvimport.EncodingUTF8), "CSV encoding: utf-8, windows-1250 or iso-8859-2")
	runCmd.Flags().StringVar(&runTimezone, "timezone", "UTC", "zone for CSV timestamps without an offset")
	rootCmd.AddCommand(runCmd)
}

func runMigration(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	records, err := readRecords(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	artifacts, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to open artifact storage: %w", err)
	}

	result, err := offerapp.NewMigrationService(artifacts, log).Run(ctx, records)
	if err != nil {
		return err
	}

	log.Info("Migration artifact written",
		zap.String("run_id", result.RunID.String()),
		zap.String("artifact", result.Artifact),
		zap.Int("mappings", result.Mappings),
		zap.Int("skipped", result.Skipped),
	)
	return printJSON(cmd.OutOrStdout(), result)
}

func readRecords(path string, stdin io.Reader) ([]offer.MigrationRecord, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open records: %w", err)
		}
		defer f.Close()
		r = f
	}

	format := strings.ToLower(runFormat)
	if format == "" {
		format = "json"
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			format = "csv"
		}
	}

	switch format {
	case "json":
		var records []offer.MigrationRecord
		if err := json.NewDecoder(r).Decode(&records); err != nil {
			return nil, fmt.Errorf("failed to decode records: %w", err)
		}
		return records, nil
	case "csv":
		return readCSVRecords(r)
	default:
		return nil, fmt.Errorf("unknown input format %q", runFormat)
	}
}

func readCSVRecords(r io.Reader) ([]offer.MigrationRecord, error) {
	delimiter := []rune(runDelimiter)
	if len(delimiter) != 1 {
		return nil, fmt.Errorf("delimiter must be a single character, got %q", runDelimiter)
	}
	loc, err := time.LoadLocation(runTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}

	records, rowErrors, err := csvimport.ReadMigrationRecords(r, csvimport.RecordReaderOptions{
		SourceTable: runSourceTable,
		Delimiter:   delimiter[0],
		Encoding:    csvimport.Encoding(strings.ToLower(runEncoding)),
		Location:    loc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV records: %w", err)
	}
	// invalid rows are left out; the run proceeds with the rest
	for _, rowErr := range rowErrors.Errors() {
		log.Warn("Skipping invalid CSV row",
			zap.Int("row", rowErr.Row),
			zap.String("column", rowErr.Column),
			zap.String("code", rowErr.Code),
			zap.String("message", rowErr.Message),
		)
	}
	if rowErrors.IsTruncated() {
		log.Warn("More invalid CSV rows were not listed", zap.Int("total", rowErrors.TotalCount()))
	}
	return records, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

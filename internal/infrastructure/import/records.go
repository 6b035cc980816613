package csvimport

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/speakASAP/allegro-service/internal/domain/offer"
)

// Legacy stock columns
const (
	ColumnSourceTable       = "source_table"
	ColumnLegacyID          = "legacy_id"
	ColumnSKU               = "sku"
	ColumnEAN               = "ean"
	ColumnExternalProductID = "external_product_id"
	ColumnStockQuantity     = "stock_quantity"
	ColumnUpdatedAt         = "updated_at"
)

// RequiredRecordColumns must be present in every legacy stock export
var RequiredRecordColumns = []string{ColumnLegacyID, ColumnStockQuantity, ColumnUpdatedAt}

// updatedAtLayouts are tried in order; exports from older shop databases
// carry naive local timestamps.
var updatedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// RecordReaderOptions configures ReadMigrationRecords
type RecordReaderOptions struct {
	// SourceTable fills rows whose source_table column is empty or absent
	SourceTable string
	Delimiter   rune
	Encoding    Encoding
	// Location interprets timestamps without a zone; UTC when nil
	Location  *time.Location
	MaxErrors int
}

// ReadMigrationRecords parses a legacy stock export. Rows that fail
// validation are reported in the returned collection and left out of the
// records; only a file-level problem yields an error.
func ReadMigrationRecords(r io.Reader, opts RecordReaderOptions) ([]offer.MigrationRecord, *ErrorCollection, error) {
	var parserOpts []ParserOption
	if opts.Delimiter != 0 {
		parserOpts = append(parserOpts, WithDelimiter(opts.Delimiter))
	}
	if opts.Encoding != "" {
		parserOpts = append(parserOpts, WithEncoding(opts.Encoding))
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	parser, err := NewCSVParser(r, parserOpts...)
	if err != nil {
		return nil, nil, err
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, nil, err
	}
	if missing := parser.MissingHeaders(RequiredRecordColumns); len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: %v", ErrMissingColumns, missing)
	}

	rowErrors := NewErrorCollection(opts.MaxErrors)
	records := make([]offer.MigrationRecord, 0)
	for {
		row, err := parser.ReadRow()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var rowErr RowError
			if errors.As(err, &rowErr) {
				rowErrors.Add(rowErr)
				continue
			}
			return nil, nil, err
		}
		if row.IsEmpty() {
			continue
		}
		if rec, ok := recordFromRow(row, opts.SourceTable, loc, rowErrors); ok {
			records = append(records, rec)
		}
	}

	if parser.TotalRows() == 0 {
		return nil, nil, ErrNoDataRows
	}
	return records, rowErrors, nil
}

func recordFromRow(row *Row, defaultSource string, loc *time.Location, rowErrors *ErrorCollection) (offer.MigrationRecord, bool) {
	before := rowErrors.TotalCount()

	rec := offer.MigrationRecord{
		SourceTable:       row.Get(ColumnSourceTable),
		LegacyID:          row.Get(ColumnLegacyID),
		SKU:               row.Get(ColumnSKU),
		EAN:               row.Get(ColumnEAN),
		ExternalProductID: row.Get(ColumnExternalProductID),
	}
	if rec.SourceTable == "" {
		rec.SourceTable = defaultSource
	}
	if rec.LegacyID == "" {
		rowErrors.AddRequiredError(row.LineNumber, ColumnLegacyID)
	}

	switch raw := row.Get(ColumnStockQuantity); {
	case raw == "":
		rowErrors.AddRequiredError(row.LineNumber, ColumnStockQuantity)
	default:
		qty, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			rowErrors.AddTypeError(row.LineNumber, ColumnStockQuantity, "integer", raw)
		case qty < 0:
			rowErrors.Add(RowError{
				Row:     row.LineNumber,
				Column:  ColumnStockQuantity,
				Code:    ErrCodeInvalidRange,
				Message: "stock quantity must not be negative",
				Value:   raw,
			})
		default:
			rec.StockQuantity = qty
		}
	}

	if raw := row.Get(ColumnUpdatedAt); raw == "" {
		rowErrors.AddRequiredError(row.LineNumber, ColumnUpdatedAt)
	} else if ts, ok := parseTimestamp(raw, loc); ok {
		rec.UpdatedAt = ts
	} else {
		rowErrors.AddFormatError(row.LineNumber, ColumnUpdatedAt, "RFC 3339 or YYYY-MM-DD HH:MM:SS", raw)
	}

	return rec, rowErrors.TotalCount() == before
}

func parseTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	for _, layout := range updatedAtLayouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

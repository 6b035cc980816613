package offerapp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/logger"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// exportPageSize is the repository page size used while exporting
const exportPageSize = 100

// exportSheet is the worksheet name of the XLSX export
const exportSheet = "Offers"

// ExportColumns is the column order of every export format
var ExportColumns = []string{
	"id",
	"external_id",
	"title",
	"description",
	"category_id",
	"price",
	"currency",
	"stock_quantity",
	"status",
	"publication_status",
	"validation_status",
	"sync_status",
	"last_synced_at",
}

// ExportService renders the local offers as flat files
type ExportService struct {
	offers offer.OfferRepository
	logger *zap.Logger
}

// NewExportService creates a new ExportService
func NewExportService(offers offer.OfferRepository, log *zap.Logger) *ExportService {
	return &ExportService{offers: offers, logger: log}
}

// exportRow returns the cells of one offer in ExportColumns order
func exportRow(o *offer.Offer) []string {
	stock := ""
	if o.StockQuantity != nil {
		stock = strconv.Itoa(*o.StockQuantity)
	}
	synced := ""
	if o.LastSyncedAt != nil {
		synced = o.LastSyncedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		o.ID.String(),
		o.ExternalID,
		o.Title,
		o.Description,
		o.CategoryID,
		o.Price.StringFixed(2),
		o.Currency,
		stock,
		string(o.Status),
		string(o.PublicationStatus),
		string(o.ValidationStatus),
		string(o.SyncStatus),
		synced,
	}
}

// eachOffer pages through every stored offer
func (s *ExportService) eachOffer(ctx context.Context, fn func(o *offer.Offer) error) (int, error) {
	filter := offer.OfferFilter{Page: 1, PageSize: exportPageSize}
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		page, err := s.offers.FindAll(ctx, filter)
		if err != nil {
			return n, err
		}
		for i := range page {
			if err := fn(&page[i]); err != nil {
				return n, err
			}
			n++
		}
		if len(page) < filter.PageSize {
			return n, nil
		}
		filter.Page++
	}
}

// ---------------------------------------------------------------------------
// CSV
// ---------------------------------------------------------------------------

// csvField quotes every value and doubles embedded quotes
func csvField(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

func writeCSVLine(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(csvField(f))
	}
	b.WriteByte('\n')
}

// ExportCSV renders all offers as CSV with a header row. Every field is
// quoted so consumers never have to guess about embedded commas or newlines.
func (s *ExportService) ExportCSV(ctx context.Context) (string, error) {
	var b strings.Builder
	writeCSVLine(&b, ExportColumns)

	n, err := s.eachOffer(ctx, func(o *offer.Offer) error {
		writeCSVLine(&b, exportRow(o))
		return nil
	})
	if err != nil {
		return "", err
	}

	logger.L(ctx).Info("Offers exported", zap.String("format", "csv"), zap.Int("rows", n))
	return b.String(), nil
}

// ---------------------------------------------------------------------------
// XLSX
// ---------------------------------------------------------------------------

// ExportXLSX renders all offers as a single-sheet workbook
func (s *ExportService) ExportXLSX(ctx context.Context) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("open stream writer: %w", err)
	}
	if err := sw.SetColWidth(3, 4, 40); err != nil {
		return nil, err
	}

	row := 1
	setRow := func(cells []string) error {
		values := make([]interface{}, len(cells))
		for i, c := range cells {
			values[i] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		row++
		return sw.SetRow(cell, values)
	}

	if err := setRow(ExportColumns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	n, err := s.eachOffer(ctx, func(o *offer.Offer) error {
		return setRow(exportRow(o))
	})
	if err != nil {
		return nil, err
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	logger.L(ctx).Info("Offers exported", zap.String("format", "xlsx"), zap.Int("rows", n))
	return buf.Bytes(), nil
}

package offer

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ---------------------------------------------------------------------------
// Normalization
// ---------------------------------------------------------------------------

var (
	skuSeparatorRe = regexp.MustCompile(`[\s\-_./]+`)
	nonDigitRe     = regexp.MustCompile(`[^0-9]`)
)

// letters without a combining-mark decomposition
var skuFolder = strings.NewReplacer("ł", "l", "Ł", "L", "đ", "d", "Đ", "D", "ø", "o", "Ø", "O")

// NormalizeSKU folds diacritics, upper-cases and removes separators.
func NormalizeSKU(sku string) string {
	s := skuFolder.Replace(strings.TrimSpace(sku))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	return strings.ToUpper(skuSeparatorRe.ReplaceAllString(s, ""))
}

// NormalizeEAN strips non-digits, pads 12-digit UPC-A to EAN-13 and verifies
// the GTIN check digit. Invalid or placeholder codes normalize to "".
func NormalizeEAN(ean string) string {
	code := nonDigitRe.ReplaceAllString(ean, "")
	if code == "" || strings.Trim(code, "0") == "" {
		return ""
	}
	if len(code) == 12 {
		code = "0" + code
	}
	switch len(code) {
	case 8, 13, 14:
	default:
		return ""
	}
	if !validGTIN(code) {
		return ""
	}
	return code
}

// validGTIN checks the trailing check digit of an EAN-8/EAN-13/GTIN-14 code.
func validGTIN(code string) bool {
	sum := 0
	body := code[:len(code)-1]
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		// weights alternate 3,1,3... starting from the digit next to the check digit
		if (len(body)-1-i)%2 == 0 {
			d *= 3
		}
		sum += d
	}
	check := (10 - sum%10) % 10
	return int(code[len(code)-1]-'0') == check
}

// ---------------------------------------------------------------------------
// Migration mapping
// ---------------------------------------------------------------------------

// MigrationRecord is one legacy stock record fed into a migration run
type MigrationRecord struct {
	SourceTable       string    `json:"source_table"`
	LegacyID          string    `json:"legacy_id"`
	SKU               string    `json:"sku"`
	EAN               string    `json:"ean"`
	ExternalProductID string    `json:"external_product_id"`
	StockQuantity     int       `json:"stock_quantity"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// MigrationMapping is one entry of a migration artifact. Entries are never
// mutated after the artifact is written.
type MigrationMapping struct {
	SourceTable       string `json:"source_table"`
	LegacyID          string `json:"legacy_id"`
	SKU               string `json:"sku"`
	EAN               string `json:"ean"`
	ExternalProductID string `json:"external_product_id"`
	StockQuantity     int    `json:"stock_quantity"`
}

// MigrationArtifact is the document written once per migration run
type MigrationArtifact struct {
	RunID       uuid.UUID          `json:"run_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Mappings    []MigrationMapping `json:"mappings"`
	// Skipped lists legacy ids without a usable SKU or EAN
	Skipped []string `json:"skipped"`
}

// ArtifactName is the storage key of the artifact for a run
func ArtifactName(runID uuid.UUID) string {
	return "migration-" + runID.String() + ".json"
}

// migrationKey identifies the item a legacy record describes: normalized EAN
// when valid, else normalized SKU.
func migrationKey(sku, ean string) string {
	if ean != "" {
		return "ean:" + ean
	}
	if sku != "" {
		return "sku:" + sku
	}
	return ""
}

// BuildMigrationArtifact normalizes the records, groups records describing the
// same item and resolves each group's stock with the freshest-wins rule. Every
// record gets an entry carrying its group's resolved quantity; the external
// product id is taken from the winning record or, failing that, any record of
// the group that has one.
func BuildMigrationArtifact(runID uuid.UUID, records []MigrationRecord, now time.Time) (*MigrationArtifact, error) {
	if len(records) == 0 {
		return nil, ErrEmptyMigration
	}

	type normalized struct {
		rec MigrationRecord
		sku string
		ean string
		key string
	}

	items := make([]normalized, 0, len(records))
	reports := make([]StockReport, 0, len(records))
	skipped := make([]string, 0)
	for _, rec := range records {
		n := normalized{rec: rec, sku: NormalizeSKU(rec.SKU), ean: NormalizeEAN(rec.EAN)}
		n.key = migrationKey(n.sku, n.ean)
		if n.key == "" {
			skipped = append(skipped, rec.LegacyID)
			continue
		}
		items = append(items, n)
		reports = append(reports, StockReport{
			Key:        n.key,
			Source:     rec.SourceTable + ":" + rec.LegacyID,
			Quantity:   rec.StockQuantity,
			ReportedAt: rec.UpdatedAt,
		})
	}

	resolved := make(map[string]StockReport)
	for _, r := range ReconcileReports(reports) {
		resolved[r.Key] = r.Winner
	}

	externalIDs := make(map[string]string)
	for _, n := range items {
		winner := resolved[n.key]
		if winner.Source == n.rec.SourceTable+":"+n.rec.LegacyID && n.rec.ExternalProductID != "" {
			externalIDs[n.key] = n.rec.ExternalProductID
		}
	}
	for _, n := range items {
		if _, ok := externalIDs[n.key]; !ok && n.rec.ExternalProductID != "" {
			externalIDs[n.key] = n.rec.ExternalProductID
		}
	}

	mappings := make([]MigrationMapping, 0, len(items))
	for _, n := range items {
		mappings = append(mappings, MigrationMapping{
			SourceTable:       n.rec.SourceTable,
			LegacyID:          n.rec.LegacyID,
			SKU:               n.sku,
			EAN:               n.ean,
			ExternalProductID: externalIDs[n.key],
			StockQuantity:     resolved[n.key].Quantity,
		})
	}
	sort.SliceStable(mappings, func(i, j int) bool {
		if mappings[i].SourceTable != mappings[j].SourceTable {
			return mappings[i].SourceTable < mappings[j].SourceTable
		}
		return mappings[i].LegacyID < mappings[j].LegacyID
	})

	return &MigrationArtifact{
		RunID:       runID,
		GeneratedAt: now,
		Mappings:    mappings,
		Skipped:     skipped,
	}, nil
}

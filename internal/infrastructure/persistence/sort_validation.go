package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes the sort order to ASC or DESC, defaulting to DESC
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "ASC") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when it is whitelisted and defaultField otherwise.
// Column names go into ORDER BY unquoted, so nothing outside the whitelist may pass.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// OfferSortFields lists the offer columns the listing may be ordered by
var OfferSortFields = map[string]bool{
	"created_at":        true,
	"updated_at":        true,
	"external_id":       true,
	"title":             true,
	"price":             true,
	"stock_quantity":    true,
	"validation_status": true,
	"sync_status":       true,
	"last_synced_at":    true,
}

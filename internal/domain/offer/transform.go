package offer

import (
	"strings"

	"github.com/shopspring/decimal"
)

// OfferPatch is a partial local edit. Nil fields are unchanged.
type OfferPatch struct {
	Title             *string
	Description       *string
	CategoryID        *string
	Price             *decimal.Decimal
	Currency          *string
	StockQuantity     *int
	Images            []string
	Parameters        []map[string]any
	PublicationStatus *PublicationStatus
	DeliveryOptions   map[string]any
	PaymentOptions    map[string]any
}

// IsEmpty reports whether the patch changes nothing
func (p OfferPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.CategoryID == nil &&
		p.Price == nil && p.Currency == nil && p.StockQuantity == nil &&
		p.Images == nil && p.Parameters == nil && p.PublicationStatus == nil &&
		p.DeliveryOptions == nil && p.PaymentOptions == nil
}

// StockOnly reports whether the patch touches nothing but the stock quantity
func (p OfferPatch) StockOnly() bool {
	if p.StockQuantity == nil {
		return false
	}
	rest := p
	rest.StockQuantity = nil
	return rest.IsEmpty()
}

// TransformToRemoteFormat builds the full update document the marketplace
// expects. Category, price, stock, images and parameters are always present;
// whatever the patch does not change comes from the existing snapshot, then
// from the existing structured fields.
func TransformToRemoteFormat(patch OfferPatch, existing *Offer) RawPayload {
	if existing == nil {
		existing = &Offer{}
	}
	out := existing.RawData.Clone()
	if out == nil {
		out = RawPayload{}
	}
	if existing.ExternalID != "" {
		out[keyID] = existing.ExternalID
	}

	if patch.Title != nil {
		out[keyName] = strings.TrimSpace(*patch.Title)
	} else if asString(out[keyName]) == "" && existing.Title != "" {
		out[keyName] = existing.Title
	}

	if patch.Description != nil {
		out[keyDescription] = descriptionDocument(*patch.Description)
	} else if out[keyDescription] == nil && existing.Description != "" {
		out[keyDescription] = descriptionDocument(existing.Description)
	}

	// category
	category := cloneMap(asMap(out[keyCategory]))
	switch {
	case patch.CategoryID != nil:
		category[keyID] = strings.TrimSpace(*patch.CategoryID)
	case asString(category[keyID]) == "":
		category[keyID] = existing.CategoryID
	}
	out[keyCategory] = category

	// price
	sellingMode := cloneMap(asMap(out[keySellingMode]))
	price := cloneMap(asMap(sellingMode[keyPrice]))
	switch {
	case patch.Price != nil:
		price[keyAmount] = patch.Price.StringFixed(2)
	case asString(price[keyAmount]) == "":
		price[keyAmount] = existing.Price.StringFixed(2)
	}
	switch {
	case patch.Currency != nil:
		price[keyCurrency] = *patch.Currency
	case asString(price[keyCurrency]) == "":
		price[keyCurrency] = currencyOrDefault(existing.Currency)
	}
	sellingMode[keyPrice] = price
	out[keySellingMode] = sellingMode

	// stock
	stock := cloneMap(asMap(out[keyStock]))
	switch {
	case patch.StockQuantity != nil:
		stock[keyAvailable] = *patch.StockQuantity
	case stock[keyAvailable] == nil:
		stock[keyAvailable] = existing.Stock()
	}
	out[keyStock] = stock

	// images
	switch {
	case patch.Images != nil:
		out[keyImages] = stringsToAny(patch.Images)
	case len(asSlice(out[keyImages])) == 0:
		out[keyImages] = stringsToAny(existing.Images)
	}

	// parameters
	out[keyParameters] = MergeParameters(asSlice(out[keyParameters]), patch.Parameters)

	if patch.PublicationStatus != nil {
		publication := cloneMap(asMap(out[keyPublication]))
		publication[keyStatus] = string(*patch.PublicationStatus)
		out[keyPublication] = publication
	}
	if patch.DeliveryOptions != nil {
		out[keyDelivery] = cloneMap(patch.DeliveryOptions)
	}
	if patch.PaymentOptions != nil {
		out[keyPayments] = cloneMap(patch.PaymentOptions)
	}
	return out
}

// StockPayload is the minimal document for the stock-only fast path.
func StockPayload(quantity int) RawPayload {
	return RawPayload{keyStock: map[string]any{keyAvailable: quantity}}
}

// MergeParameters replaces existing parameters whose id appears in the patch
// and keeps the others verbatim. Each id appears exactly once in the result.
func MergeParameters(existing []any, patch []map[string]any) []any {
	patched := make(map[string]map[string]any, len(patch))
	order := make([]string, 0, len(patch))
	for _, p := range patch {
		id := asString(p[keyID])
		if id == "" {
			continue
		}
		if _, seen := patched[id]; !seen {
			order = append(order, id)
		}
		patched[id] = p
	}

	out := make([]any, 0, len(existing)+len(patch))
	emitted := make(map[string]struct{}, len(existing)+len(patch))
	for _, item := range existing {
		m := asMap(item)
		id := asString(m[keyID])
		if id == "" {
			out = append(out, cloneValue(item))
			continue
		}
		if _, done := emitted[id]; done {
			continue
		}
		emitted[id] = struct{}{}
		if replacement, ok := patched[id]; ok {
			out = append(out, cloneMap(replacement))
			continue
		}
		out = append(out, cloneMap(m))
	}
	for _, id := range order {
		if _, done := emitted[id]; done {
			continue
		}
		emitted[id] = struct{}{}
		out = append(out, cloneMap(patched[id]))
	}
	return out
}

// wholeValueKeys are replaced as complete sub-objects during merge-back.
var wholeValueKeys = map[string]struct{}{
	keySellingMode: {},
	keyPrice:       {},
	keyStock:       {},
	keyImages:      {},
}

// MergeRawDataUpdates folds an accepted update into the previous snapshot.
// Top-level keys of applied win; nested objects are merged one level deep,
// except price, stock and images which replace the old value entirely.
// Neither argument is modified.
func MergeRawDataUpdates(existingRaw, applied RawPayload) RawPayload {
	out := existingRaw.Clone()
	if out == nil {
		out = RawPayload{}
	}
	for key, value := range applied {
		if _, whole := wholeValueKeys[key]; whole {
			out[key] = cloneValue(value)
			continue
		}
		prev, next := asMap(out[key]), asMap(value)
		if prev == nil || next == nil {
			out[key] = cloneValue(value)
			continue
		}
		merged := cloneMap(prev)
		for k, v := range next {
			merged[k] = cloneValue(v)
		}
		out[key] = merged
	}
	return out
}

func descriptionDocument(text string) map[string]any {
	return map[string]any{
		keySections: []any{
			map[string]any{
				keyItems: []any{
					map[string]any{keyType: "TEXT", keyContent: text},
				},
			},
		},
	}
}

func stringsToAny(in []string) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}

func currencyOrDefault(c string) string {
	if c == "" {
		return DefaultCurrency
	}
	return c
}

package offer

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// ExtractedOffer is a marketplace payload normalized to local storage shape
type ExtractedOffer struct {
	ExternalID        string
	Title             string
	Description       string
	CategoryID        string
	Price             decimal.Decimal
	Currency          string
	StockQuantity     *int
	PublicationStatus PublicationStatus
	Images            []string
	DeliveryOptions   map[string]any
	PaymentOptions    map[string]any
	Parameters        []map[string]any
}

// ExtractOfferData normalizes a marketplace payload. Missing or unexpected
// fields resolve to zero values; it never fails.
func ExtractOfferData(raw RawPayload) ExtractedOffer {
	x := ExtractedOffer{
		Images:   make([]string, 0),
		Currency: DefaultCurrency,
	}
	if raw == nil {
		return x
	}

	x.ExternalID = strings.TrimSpace(raw.ExternalID())
	x.Title = norm.NFC.String(strings.TrimSpace(asString(raw[keyName])))
	x.Description = extractDescription(raw[keyDescription])
	x.CategoryID = asString(lookup(raw, keyCategory, keyID))
	x.Images = extractImages(raw)

	if amount, ok := asDecimal(lookup(raw, keySellingMode, keyPrice, keyAmount)); ok {
		x.Price = amount
	}
	if currency := asString(lookup(raw, keySellingMode, keyPrice, keyCurrency)); currency != "" {
		x.Currency = currency
	}
	if qty, ok := asInt(lookup(raw, keyStock, keyAvailable)); ok {
		x.StockQuantity = &qty
	}

	x.PublicationStatus = PublicationStatus(strings.ToUpper(asString(lookup(raw, keyPublication, keyStatus))))
	if m := asMap(raw[keyDelivery]); m != nil {
		x.DeliveryOptions = cloneMap(m)
	}
	if m := asMap(raw[keyPayments]); m != nil {
		x.PaymentOptions = cloneMap(m)
	}
	for _, p := range asSlice(raw[keyParameters]) {
		if m := asMap(p); m != nil {
			x.Parameters = append(x.Parameters, cloneMap(m))
		}
	}
	return x
}

// extractDescription accepts either a plain string or the structured
// sections/items rich-text document.
func extractDescription(v any) string {
	if s, ok := v.(string); ok {
		return norm.NFC.String(strings.TrimSpace(s))
	}
	doc := asMap(v)
	if doc == nil {
		return ""
	}
	texts := make([]string, 0)
	collectText(doc, &texts)
	return norm.NFC.String(strings.Join(texts, "\n\n"))
}

// collectText walks sections and items in document order and keeps TEXT leaves.
func collectText(node map[string]any, out *[]string) {
	if strings.EqualFold(asString(node[keyType]), "TEXT") {
		if content := strings.TrimSpace(asString(node[keyContent])); content != "" {
			*out = append(*out, content)
		}
		return
	}
	for _, key := range []string{keySections, keyItems} {
		for _, child := range asSlice(node[key]) {
			if m := asMap(child); m != nil {
				collectText(m, out)
			}
		}
	}
}

// extractImages checks images[], then rawData.images[], then primaryImage.
func extractImages(raw RawPayload) []string {
	if images := imageURLs(raw[keyImages]); len(images) > 0 {
		return images
	}
	if images := imageURLs(lookup(raw, keyRawData, keyImages)); len(images) > 0 {
		return images
	}
	if url := imageURL(raw[keyPrimaryImage]); url != "" {
		return []string{url}
	}
	return make([]string, 0)
}

func imageURLs(v any) []string {
	items := asSlice(v)
	urls := make([]string, 0, len(items))
	for _, item := range items {
		if url := imageURL(item); url != "" {
			urls = append(urls, url)
		}
	}
	return urls
}

func imageURL(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(asString(asMap(v)[keyURL]))
}

// rawDescription returns the description text held in a raw snapshot.
func rawDescription(raw RawPayload) string {
	if raw == nil {
		return ""
	}
	return extractDescription(raw[keyDescription])
}

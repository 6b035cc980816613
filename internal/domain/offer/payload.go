package offer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RawPayload is a marketplace-shaped offer document. Only this package reads or
// writes its keys; the rest of the code treats it as an opaque value.
type RawPayload map[string]any

// Marketplace payload keys
const (
	keyID           = "id"
	keyName         = "name"
	keyDescription  = "description"
	keyCategory     = "category"
	keySellingMode  = "sellingMode"
	keyPrice        = "price"
	keyAmount       = "amount"
	keyCurrency     = "currency"
	keyStock        = "stock"
	keyAvailable    = "available"
	keyPublication  = "publication"
	keyStatus       = "status"
	keyImages       = "images"
	keyPrimaryImage = "primaryImage"
	keyRawData      = "rawData"
	keyParameters   = "parameters"
	keyDelivery     = "delivery"
	keyPayments     = "payments"
	keySections     = "sections"
	keyItems        = "items"
	keyType         = "type"
	keyContent      = "content"
	keyURL          = "url"
)

// ParseRawPayload decodes a manually supplied JSON document.
func ParseRawPayload(data []byte) (RawPayload, error) {
	var p RawPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: document must be a JSON object", ErrMalformedPayload)
	}
	return p, nil
}

// Clone returns a deep copy of the payload.
func (p RawPayload) Clone() RawPayload {
	if p == nil {
		return nil
	}
	return RawPayload(cloneMap(p))
}

// ExternalID returns the marketplace offer id carried by the payload.
func (p RawPayload) ExternalID() string {
	return asString(p[keyID])
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case RawPayload:
		return cloneMap(t)
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func asMap(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case RawPayload:
		return t
	default:
		return nil
	}
}

func asSlice(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out
	default:
		return nil
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func asDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

// lookup walks nested objects by key and returns nil when any step is missing.
func lookup(m map[string]any, path ...string) any {
	var cur any = m
	for _, key := range path {
		obj := asMap(cur)
		if obj == nil {
			return nil
		}
		cur = obj[key]
	}
	return cur
}

// isPresent reports whether a blob carries any information.
func isPresent(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case map[string]any:
		for _, inner := range t {
			if isPresent(inner) {
				return true
			}
		}
		return false
	case RawPayload:
		return isPresent(map[string]any(t))
	case []any:
		for _, inner := range t {
			if isPresent(inner) {
				return true
			}
		}
		return false
	case bool:
		return t
	default:
		return true
	}
}

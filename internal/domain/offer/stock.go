package offer

import (
	"sort"
	"time"
)

// StockReport is one source's claim about the stock of a product or offer
type StockReport struct {
	// Key groups reports that describe the same item (product id, SKU, EAN)
	Key        string
	Source     string
	Quantity   int
	ReportedAt time.Time
}

// StockResolution is the winning report for one key
type StockResolution struct {
	Key        string
	Winner     StockReport
	Candidates int
}

// fresher reports whether a beats b: higher quantity first, newer timestamp on ties.
func fresher(a, b StockReport) bool {
	if a.Quantity != b.Quantity {
		return a.Quantity > b.Quantity
	}
	return a.ReportedAt.After(b.ReportedAt)
}

// ResolveFreshest picks the authoritative report. It is the single
// implementation of the freshest-wins rule for live sync and migration.
func ResolveFreshest(reports []StockReport) (StockReport, bool) {
	if len(reports) == 0 {
		return StockReport{}, false
	}
	best := reports[0]
	for _, r := range reports[1:] {
		if fresher(r, best) {
			best = r
		}
	}
	return best, true
}

// ReconcileReports groups reports by key and resolves each group. The result
// is ordered by key.
func ReconcileReports(reports []StockReport) []StockResolution {
	groups := make(map[string][]StockReport)
	for _, r := range reports {
		if r.Key == "" {
			continue
		}
		groups[r.Key] = append(groups[r.Key], r)
	}

	out := make([]StockResolution, 0, len(groups))
	for key, group := range groups {
		winner, _ := ResolveFreshest(group)
		out = append(out, StockResolution{Key: key, Winner: winner, Candidates: len(group)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

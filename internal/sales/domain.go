// Package sales maintains the read-side index of outbound shipments used by
// the movement classifier and the dead-stock detector.
package sales

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// SaleRecord is one outbound shipment line.
type SaleRecord struct {
	Item     string
	Date     time.Time
	Quantity float64
	CBM      float64
}

// ItemSales aggregates shipments per normalized item key.
type ItemSales struct {
	TotalQty float64
	TotalCBM float64
	// SaleDays counts distinct shipment dates for the item.
	SaleDays int
}

var foldCaser = cases.Fold()

// NormalizeItemKey produces the lossy join key shared with the inventory side:
// whitespace-trimmed, Unicode case-folded. Distinct raw identifiers that
// normalize identically aggregate together silently.
func NormalizeItemKey(item string) string {
	return foldCaser.String(strings.TrimSpace(item))
}

package catalog

import (
	"github.com/shopspring/decimal"
)

// Item is a catalog entry. The order core never creates or deletes items;
// only their stock counters move, and only through order finalization and
// cancellation.
type Item struct {
	ID            int64
	Name          string
	Price         decimal.Decimal
	Stock         int
	PackSizeLabel string
	ImageURL      string
	Uses          string
	SideEffects   string
	Composition   string
	Manufacturer  string
}

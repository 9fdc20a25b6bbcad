package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Cart is a user's single active shopping cart. At most one cart per user
// may be active at any time; a cart goes inactive exactly once, when it is
// finalized into an order.
type Cart struct {
	ID        string
	UserID    string
	Status    Status
	CreatedAt time.Time
}

// LineItem belongs to exactly one cart or one order, never both. Price is
// captured at add time, so finalized orders are immune to later catalog
// price changes.
type LineItem struct {
	ID       string
	ItemID   int64
	Quantity int
	Price    decimal.Decimal
}

// LineItemView is a line item joined with item display metadata.
type LineItemView struct {
	ItemID    int64           `json:"item_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrAlreadyCancelled = errors.New("order has already been cancelled")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Order is immutable once created except for the completed -> cancelled
// transition; cancelled is terminal.
type Order struct {
	ID          string
	UserID      string
	Status      Status
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
}

// Line is an order's line item expanded with item display metadata.
type Line struct {
	ItemID    int64           `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// View aggregates an order with its lines for history reads.
type View struct {
	OrderID     string          `json:"order_id"`
	Status      Status          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
	Lines       []Line          `json:"items"`
}

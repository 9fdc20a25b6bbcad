package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/pharmkart/order-core/internal/cart"
	"github.com/pharmkart/order-core/internal/catalog"
)

const (
	EventOrderCompleted = "order.completed"
	EventOrderCancelled = "order.cancelled"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type eventLine struct {
	ItemID   int64           `json:"item_id"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type eventPayload struct {
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	Status      Status          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []eventLine     `json:"items"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

func (r *PostgresRepository) CompleteOrder(ctx context.Context, userID string, total decimal.Decimal) (*Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin finalize tx: %w", err)
	}
	defer tx.Rollback()

	// Lock the active cart row. A concurrent finalization of the same cart
	// blocks here and then finds the cart already inactive.
	var cartID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM carts WHERE user_id = $1 AND status = 'active' FOR UPDATE`,
		userID).Scan(&cartID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cart.ErrNoActiveCart
	}
	if err != nil {
		return nil, fmt.Errorf("lock active cart: %w", err)
	}

	lines, err := readCartLines(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, cart.ErrEmptyCart
	}

	// Stock is consumed here, not at add time. The conditional update keeps
	// the counter non-negative under concurrent finalizations.
	for _, line := range lines {
		res, err := tx.ExecContext(ctx,
			`UPDATE items SET stock = stock - $1 WHERE id = $2 AND stock >= $1`,
			line.Quantity, line.ItemID)
		if err != nil {
			return nil, fmt.Errorf("decrement stock for item %d: %w", line.ItemID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("decrement stock for item %d: %w", line.ItemID, err)
		}
		if affected == 0 {
			return nil, catalog.ErrInsufficientStock
		}
	}

	order := &Order{
		ID:          uuid.New().String(),
		UserID:      userID,
		Status:      StatusCompleted,
		TotalAmount: total,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (id, user_id, status, total_amount, created_at)
		 VALUES ($1, $2, $3, $4, NOW()) RETURNING created_at`,
		order.ID, order.UserID, order.Status, order.TotalAmount).Scan(&order.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	// Ownership transfer: the same rows move from cart to order, nothing is
	// copied.
	if _, err := tx.ExecContext(ctx,
		`UPDATE line_items SET order_id = $1, cart_id = NULL WHERE cart_id = $2`,
		order.ID, cartID); err != nil {
		return nil, fmt.Errorf("migrate line items: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE carts SET status = 'inactive' WHERE id = $1`, cartID); err != nil {
		return nil, fmt.Errorf("retire cart: %w", err)
	}

	if err := insertOutboxEvent(ctx, tx, EventOrderCompleted, order, lines); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit finalize tx: %w", err)
	}
	return order, nil
}

func (r *PostgresRepository) Cancel(ctx context.Context, orderID string) (*Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cancel tx: %w", err)
	}
	defer tx.Rollback()

	order := &Order{ID: orderID}
	err = tx.QueryRowContext(ctx,
		`SELECT user_id, status, total_amount, created_at FROM orders WHERE id = $1 FOR UPDATE`,
		orderID).Scan(&order.UserID, &order.Status, &order.TotalAmount, &order.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}

	// The check runs under the same row lock as the status write, so a
	// racing second cancellation is rejected rather than restoring twice.
	if order.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = 'cancelled' WHERE id = $1`, orderID); err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	lines, err := readOrderLines(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET stock = stock + $1 WHERE id = $2`,
			line.Quantity, line.ItemID); err != nil {
			return nil, fmt.Errorf("restore stock for item %d: %w", line.ItemID, err)
		}
	}

	order.Status = StatusCancelled
	if err := insertOutboxEvent(ctx, tx, EventOrderCancelled, order, lines); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cancel tx: %w", err)
	}
	return order, nil
}

func (r *PostgresRepository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	order := &Order{ID: orderID}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, status, total_amount, created_at FROM orders WHERE id = $1`,
		orderID).Scan(&order.UserID, &order.Status, &order.TotalAmount, &order.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]View, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, status, total_amount, created_at FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user: %w", err)
	}
	defer rows.Close()

	var views []View
	var orderIDs []string
	byID := make(map[string]int)
	for rows.Next() {
		var v View
		if err := rows.Scan(&v.OrderID, &v.Status, &v.TotalAmount, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		byID[v.OrderID] = len(views)
		views = append(views, v)
		orderIDs = append(orderIDs, v.OrderID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	if len(views) == 0 {
		return []View{}, nil
	}

	lineRows, err := r.db.QueryContext(ctx,
		`SELECT li.order_id, li.item_id, i.name, li.quantity, li.price
		 FROM line_items li
		 JOIN items i ON i.id = li.item_id
		 WHERE li.order_id = ANY($1)
		 ORDER BY li.added_at, li.id`,
		pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var orderID string
		var line Line
		if err := lineRows.Scan(&orderID, &line.ItemID, &line.Name, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		line.LineTotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		idx := byID[orderID]
		views[idx].Lines = append(views[idx].Lines, line)
	}
	if err := lineRows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return views, nil
}

func readCartLines(ctx context.Context, tx *sql.Tx, cartID string) ([]eventLine, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT item_id, quantity, price FROM line_items WHERE cart_id = $1 ORDER BY added_at, id`,
		cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()
	return scanEventLines(rows)
}

func readOrderLines(ctx context.Context, tx *sql.Tx, orderID string) ([]eventLine, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT item_id, quantity, price FROM line_items WHERE order_id = $1 ORDER BY added_at, id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()
	return scanEventLines(rows)
}

func scanEventLines(rows *sql.Rows) ([]eventLine, error) {
	var lines []eventLine
	for rows.Next() {
		var line eventLine
		if err := rows.Scan(&line.ItemID, &line.Quantity, &line.Price); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return lines, nil
}

func insertOutboxEvent(ctx context.Context, tx *sql.Tx, eventType string, order *Order, lines []eventLine) error {
	payload, err := json.Marshal(eventPayload{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Items:       lines,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		order.ID, eventType, payload); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

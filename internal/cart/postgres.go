package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetActiveCart(ctx context.Context, userID string) (*Cart, error) {
	query := `SELECT id, user_id, status, created_at FROM carts WHERE user_id = $1 AND status = 'active'`

	var cart Cart
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&cart.ID, &cart.UserID, &cart.Status, &cart.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveCart
	}
	if err != nil {
		return nil, fmt.Errorf("query active cart: %w", err)
	}
	return &cart, nil
}

func (r *PostgresRepository) GetOrCreateActiveCart(ctx context.Context, userID string) (*Cart, error) {
	// The partial unique index on (user_id) WHERE status = 'active' makes
	// this safe under concurrent calls: only one insert wins, everyone
	// reads the same row back.
	insert := `INSERT INTO carts (id, user_id, status, created_at)
	           VALUES ($1, $2, 'active', NOW())
	           ON CONFLICT (user_id) WHERE status = 'active' DO NOTHING`

	if _, err := r.db.ExecContext(ctx, insert, uuid.New().String(), userID); err != nil {
		return nil, fmt.Errorf("insert active cart: %w", err)
	}

	return r.GetActiveCart(ctx, userID)
}

func (r *PostgresRepository) UpsertLineItem(ctx context.Context, cartID string, itemID int64, quantity int, price decimal.Decimal) error {
	// Merging keeps the price captured when the line was first added.
	query := `INSERT INTO line_items (id, cart_id, item_id, quantity, price, added_at)
	          VALUES ($1, $2, $3, $4, $5, NOW())
	          ON CONFLICT (cart_id, item_id) WHERE cart_id IS NOT NULL
	          DO UPDATE SET quantity = line_items.quantity + EXCLUDED.quantity`

	if _, err := r.db.ExecContext(ctx, query, uuid.New().String(), cartID, itemID, quantity, price); err != nil {
		return fmt.Errorf("upsert line item: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListLineItems(ctx context.Context, cartID string) ([]LineItemView, error) {
	query := `SELECT li.item_id, i.name, i.image_url, li.quantity, li.price
	          FROM line_items li
	          JOIN items i ON i.id = li.item_id
	          WHERE li.cart_id = $1
	          ORDER BY li.added_at, li.id`

	rows, err := r.db.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer rows.Close()

	var items []LineItemView
	for rows.Next() {
		var v LineItemView
		if err := rows.Scan(&v.ItemID, &v.Name, &v.ImageURL, &v.Quantity, &v.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		v.LineTotal = v.UnitPrice.Mul(decimal.NewFromInt(int64(v.Quantity)))
		items = append(items, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

func (r *PostgresRepository) RemoveLineItem(ctx context.Context, cartID string, itemID int64) error {
	query := `DELETE FROM line_items WHERE cart_id = $1 AND item_id = $2`

	res, err := r.db.ExecContext(ctx, query, cartID, itemID)
	if err != nil {
		return fmt.Errorf("delete line item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete line item: %w", err)
	}
	if affected == 0 {
		return ErrLineItemNotFound
	}
	return nil
}

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const itemColumns = `id, name, price, stock, pack_size_label, image_url, uses, side_effects, composition, manufacturer`

func (r *PostgresRepository) GetItem(ctx context.Context, id int64) (*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	item, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query item by id: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) FindByName(ctx context.Context, pattern string) (*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE name ILIKE '%' || $1 || '%' ORDER BY id LIMIT 1`

	item, err := scanItem(r.db.QueryRowContext(ctx, query, pattern))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query item by name: %w", err)
	}
	return item, nil
}

func scanItem(row *sql.Row) (*Item, error) {
	var item Item
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Price,
		&item.Stock,
		&item.PackSizeLabel,
		&item.ImageURL,
		&item.Uses,
		&item.SideEffects,
		&item.Composition,
		&item.Manufacturer,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, p *Payment) error {
	query := `INSERT INTO payments (id, user_id, method, amount, status, created_at)
	          VALUES ($1, $2, $3, $4, $5, NOW())`

	if _, err := r.db.ExecContext(ctx, query, p.ID, p.UserID, p.Method, p.Amount, p.Status); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PostgresRepository) MarkCompleted(ctx context.Context, id, gatewayRef string) error {
	query := `UPDATE payments SET status = 'completed', gateway_ref = $2 WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id, gatewayRef)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateRef
		}
		return fmt.Errorf("mark payment completed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id string) error {
	query := `UPDATE payments SET status = 'failed' WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByGatewayRef(ctx context.Context, ref string) (*Payment, error) {
	query := `SELECT id, user_id, method, amount, status, gateway_ref, created_at
	          FROM payments WHERE gateway_ref = $1`

	var p Payment
	var gatewayRef sql.NullString
	err := r.db.QueryRowContext(ctx, query, ref).Scan(
		&p.ID, &p.UserID, &p.Method, &p.Amount, &p.Status, &gatewayRef, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payment by gateway ref: %w", err)
	}
	p.GatewayRef = gatewayRef.String
	return &p, nil
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forestplant/backend/internal/orders/domain"
	"github.com/forestplant/backend/internal/orders/ports"
)

// Repository persists orders in postgres. Items and social media entries
// are stored as JSONB documents, mirroring the snapshot nature of the
// data; the row-to-entity mapping happens entirely at this boundary.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `id, user_id, items, total, status, phone, social_media, deleted_by_user, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, order domain.Order) error {
	items, social, err := marshalDocs(order)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (id, user_id, items, total, status, phone, social_media, deleted_by_user, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.pool.Exec(ctx, query,
		order.ID,
		order.UserID,
		items,
		order.Total,
		order.Status,
		order.Phone,
		social,
		order.DeletedByUser,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE id = $1
	`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	return order, nil
}

func (r *Repository) ListAll(ctx context.Context) ([]domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		ORDER BY created_at DESC
	`

	return r.list(ctx, query)
}

func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1 AND deleted_by_user = FALSE
		ORDER BY created_at DESC
	`

	return r.list(ctx, query, ownerID)
}

func (r *Repository) Update(ctx context.Context, order domain.Order) error {
	items, social, err := marshalDocs(order)
	if err != nil {
		return err
	}

	query := `
		UPDATE orders
		SET items = $1, total = $2, phone = $3, social_media = $4, updated_at = $5
		WHERE id = $6
	`

	result, err := r.pool.Exec(ctx, query,
		items,
		order.Total,
		order.Phone,
		social,
		time.Now().UTC(),
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	return nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.pool.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	return nil
}

func (r *Repository) SetDeletedByUser(ctx context.Context, id string) error {
	query := `
		UPDATE orders
		SET deleted_by_user = TRUE, updated_at = $1
		WHERE id = $2
	`

	result, err := r.pool.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("soft delete order: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	return nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, nil
}

func marshalDocs(order domain.Order) (items, social []byte, err error) {
	items, err = json.Marshal(order.Items)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal items: %w", err)
	}

	if order.SocialMedia == nil {
		order.SocialMedia = []domain.SocialMediaEntry{}
	}
	social, err = json.Marshal(order.SocialMedia)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal social media: %w", err)
	}

	return items, social, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		order  domain.Order
		items  []byte
		social []byte
	)

	err := row.Scan(
		&order.ID,
		&order.UserID,
		&items,
		&order.Total,
		&order.Status,
		&order.Phone,
		&social,
		&order.DeletedByUser,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	if err := json.Unmarshal(social, &order.SocialMedia); err != nil {
		return nil, fmt.Errorf("unmarshal social media: %w", err)
	}

	return &order, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forestplant/backend/internal/orders/domain"
)

// Store reads user profiles from postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// FindByID returns the user profile, or (nil, nil) when the user does
// not exist. Enrichment callers treat an absent user as best-effort.
func (s *Store) FindByID(ctx context.Context, id string) (*domain.UserProfile, error) {
	query := `
		SELECT id, name, email, role
		FROM users
		WHERE id = $1
	`

	var user domain.UserProfile
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select user: %w", err)
	}

	return &user, nil
}

package ports

import (
	"context"

	"github.com/forestplant/backend/internal/orders/domain"
)

// Identity is a read-only lookup over registered users. FindByID returns
// (nil, nil) when the user is unknown so callers can fall back to
// placeholder data without error handling.
type Identity interface {
	FindByID(ctx context.Context, id string) (*domain.UserProfile, error)
}

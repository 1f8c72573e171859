package ports

import (
	"context"
	"errors"

	"github.com/forestplant/backend/internal/orders/domain"
)

// OrderRepository exposes persistence operations required by the
// application layer. Listing operations return newest orders first.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// ListAll returns every order including soft-deleted ones.
	ListAll(ctx context.Context) ([]domain.Order, error)
	// ListByOwner returns the owner's orders excluding those hidden
	// via the soft-delete flag.
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Order, error)
	Update(ctx context.Context, order domain.Order) error
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error
	SetDeletedByUser(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

var (
	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = errors.New("order not found")
)

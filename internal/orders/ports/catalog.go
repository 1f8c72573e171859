package ports

import (
	"context"

	"github.com/forestplant/backend/internal/orders/domain"
)

// Catalog is a read-only view over the plant catalog. An empty slice is
// returned when the catalog holds no products.
type Catalog interface {
	FindAll(ctx context.Context) ([]domain.Product, error)
}

package memory

import (
	"context"
	"sync"

	"github.com/forestplant/backend/internal/orders/domain"
)

// Store is an in-memory catalog useful for local development and tests.
type Store struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// NewStore creates an in-memory catalog seeded with the given products.
func NewStore(products ...domain.Product) *Store {
	s := &Store{products: make(map[string]domain.Product, len(products))}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

// Put adds or replaces a product.
func (s *Store) Put(product domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
}

// FindAll returns every product in the catalog.
func (s *Store) FindAll(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		result = append(result, p)
	}
	return result, nil
}

// Package wishlist keeps the set of products a customer saved for later.
package wishlist

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/marketplace/internal/domain/product"
	"github.com/xenking/marketplace/internal/domain/validation"
)

// ErrItemNotFound is returned when removing a product that is not saved.
var ErrItemNotFound = errors.New("product is not in the wishlist")

// Repository defines persistence operations for wishlists.
type Repository interface {
	// ProductIDs returns saved product ids, oldest first.
	ProductIDs(ctx context.Context, userID string) ([]string, error)
	// Add saves productID; saving it twice is a no-op.
	Add(ctx context.Context, userID, productID string) error
	Remove(ctx context.Context, userID, productID string) error
}

// Service implements wishlist operations.
type Service struct {
	items    Repository
	products product.Repository
}

// NewService creates a wishlist Service.
func NewService(items Repository, products product.Repository) *Service {
	return &Service{items: items, products: products}
}

// Get returns the saved products that are still in the catalog.
func (s *Service) Get(ctx context.Context, userID string) ([]product.Product, error) {
	ids, err := s.items.ProductIDs(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list wishlist")
	}
	if len(ids) == 0 {
		return []product.Product{}, nil
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get wishlist products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Add saves a product that exists in the catalog.
func (s *Service) Add(ctx context.Context, userID, productID string) ([]product.Product, error) {
	if productID == "" {
		return nil, validation.Required("productId")
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, errors.Wrapf(err, "get product %s", productID)
	}
	if err := s.items.Add(ctx, userID, productID); err != nil {
		return nil, errors.Wrap(err, "add to wishlist")
	}
	return s.Get(ctx, userID)
}

// Remove drops a saved product.
func (s *Service) Remove(ctx context.Context, userID, productID string) ([]product.Product, error) {
	if err := s.items.Remove(ctx, userID, productID); err != nil {
		return nil, errors.Wrap(err, "remove from wishlist")
	}
	return s.Get(ctx, userID)
}

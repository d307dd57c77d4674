package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/marketplace/internal/domain/product"
	"github.com/xenking/marketplace/internal/domain/validation"
)

// ViewLine is a cart line priced against the live catalog.
type ViewLine struct {
	ProductID string
	Quantity  int
	// Product is nil when the product was deleted after it was added.
	Product   *product.Product
	LineTotal decimal.Decimal
}

// View is a cart resolved against the catalog for display.
type View struct {
	CartID   string
	Version  int64
	Lines    []ViewLine
	Subtotal decimal.Decimal
}

// Service implements cart reads and mutations for a customer.
type Service struct {
	carts    Repository
	products product.Repository
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{
		carts:    carts,
		products: products,
	}
}

// Get returns the caller's cart. A user without a cart sees an empty one.
func (s *Service) Get(ctx context.Context, userID string) (*View, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &View{Lines: []ViewLine{}, Subtotal: decimal.Zero}, nil
		}
		return nil, errors.Wrap(err, "get cart")
	}
	return s.resolve(ctx, c)
}

// Add changes the quantity of productID by quantity. A positive quantity
// increments (creating the line), a negative one decrements and drops the
// line when it reaches zero.
func (s *Service) Add(ctx context.Context, userID, productID string, quantity int) (*View, error) {
	if productID == "" {
		return nil, validation.Required("productId")
	}
	if quantity == 0 {
		return nil, validation.New("quantity", "must not be 0")
	}
	if quantity > MaxLineQuantity || quantity < -MaxLineQuantity {
		return nil, ErrQuantityLimit
	}
	if quantity > 0 {
		if _, err := s.products.GetByID(ctx, productID); err != nil {
			return nil, errors.Wrapf(err, "get product %s", productID)
		}
		current, err := s.carts.Get(ctx, userID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, errors.Wrap(err, "get cart")
		}
		if current.Quantity(productID)+quantity > MaxLineQuantity {
			return nil, ErrQuantityLimit
		}
	}

	c, err := s.carts.AdjustLine(ctx, userID, productID, quantity)
	if err != nil {
		return nil, errors.Wrap(err, "adjust cart line")
	}
	return s.resolve(ctx, c)
}

// Remove drops the line of productID from the caller's cart.
func (s *Service) Remove(ctx context.Context, userID, productID string) (*View, error) {
	c, err := s.carts.RemoveLine(ctx, userID, productID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, errors.Wrap(err, "remove cart line")
	}
	return s.resolve(ctx, c)
}

func (s *Service) resolve(ctx context.Context, c *Cart) (*View, error) {
	ids := make([]string, len(c.Lines))
	for i, l := range c.Lines {
		ids[i] = l.ProductID
	}

	byID := make(map[string]product.Product, len(ids))
	if len(ids) > 0 {
		fetched, err := s.products.GetByIDs(ctx, ids)
		if err != nil {
			return nil, errors.Wrap(err, "get cart products")
		}
		for _, p := range fetched {
			byID[p.ID] = p
		}
	}

	v := &View{
		CartID:   c.ID,
		Version:  c.Version,
		Lines:    make([]ViewLine, 0, len(c.Lines)),
		Subtotal: decimal.Zero,
	}
	for _, l := range c.Lines {
		line := ViewLine{ProductID: l.ProductID, Quantity: l.Quantity, LineTotal: decimal.Zero}
		if p, ok := byID[l.ProductID]; ok {
			line.Product = &p
			line.LineTotal = p.SellingPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
			v.Subtotal = v.Subtotal.Add(line.LineTotal)
		}
		v.Lines = append(v.Lines, line)
	}
	return v, nil
}

package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/marketplace/internal/domain/account"
	"github.com/xenking/marketplace/internal/domain/cart"
	"github.com/xenking/marketplace/internal/domain/product"
	"github.com/xenking/marketplace/internal/domain/validation"
)

// Directory resolves account identities for order attribution.
type Directory interface {
	GetByIDs(ctx context.Context, ids []string) ([]account.User, error)
}

// CheckoutRequest holds the input for converting a cart into an order.
type CheckoutRequest struct {
	CustomerID string
	// CartID is optional; when set it must name the caller's cart.
	CartID        string
	Shipping      Address
	PaymentMethod PaymentMethod
	// DeclaredTotal is the client-side total. It is only compared, never used.
	DeclaredTotal  *decimal.Decimal
	IdempotencyKey string
}

// CheckoutResult holds the order produced (or replayed) by a checkout.
type CheckoutResult struct {
	Order *Order
	// Replayed is true when the idempotency key matched an earlier order.
	Replayed bool
}

// Service encapsulates checkout and role-scoped order retrieval.
type Service struct {
	carts    cart.Repository
	products product.Repository
	accounts Directory
	orders   Repository
	locker   Locker
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	carts cart.Repository,
	products product.Repository,
	accounts Directory,
	orders Repository,
	locker Locker,
) *Service {
	return &Service{
		carts:    carts,
		products: products,
		accounts: accounts,
		orders:   orders,
		locker:   locker,
	}
}

// Checkout freezes the caller's cart into a pending, unpaid order priced from
// the live catalog, and empties the cart in the same transaction.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	unlock, ok, err := s.locker.TryLock(ctx, "checkout:"+req.CustomerID)
	if err != nil {
		return nil, errors.Wrap(err, "acquire checkout lock")
	}
	if !ok {
		return nil, ErrCheckoutInProgress
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			zctx.From(ctx).Warn("Release checkout lock", zap.Error(err))
		}
	}()

	if req.IdempotencyKey != "" {
		prev, err := s.orders.GetByIdempotencyKey(ctx, req.CustomerID, req.IdempotencyKey)
		switch {
		case err == nil:
			return &CheckoutResult{Order: prev, Replayed: true}, nil
		case !errors.Is(err, ErrNotFound):
			return nil, errors.Wrap(err, "lookup idempotency key")
		}
	}

	c, err := s.carts.Get(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) && req.CartID == "" {
			return nil, ErrEmptyCart
		}
		return nil, errors.Wrap(err, "get cart")
	}
	if req.CartID != "" && req.CartID != c.ID {
		return nil, cart.ErrNotFound
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	o, err := s.buildOrder(ctx, req, c)
	if err != nil {
		return nil, err
	}

	if req.DeclaredTotal != nil && !req.DeclaredTotal.Round(2).Equal(o.Total) {
		return nil, &TotalMismatchError{Declared: *req.DeclaredTotal, Computed: o.Total}
	}

	if err := s.orders.Create(ctx, o, CartRef{ID: c.ID, Version: c.Version}); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			prev, err := s.orders.GetByIdempotencyKey(ctx, req.CustomerID, req.IdempotencyKey)
			if err != nil {
				return nil, errors.Wrap(err, "lookup idempotency key")
			}
			return &CheckoutResult{Order: prev, Replayed: true}, nil
		}
		return nil, errors.Wrap(err, "create order")
	}

	return &CheckoutResult{Order: o}, nil
}

// buildOrder prices every cart line from the catalog and attributes it to
// the owning vendor. Any missing product rejects the whole checkout.
func (s *Service) buildOrder(ctx context.Context, req CheckoutRequest, c *cart.Cart) (*Order, error) {
	ids := make([]string, len(c.Lines))
	for i, l := range c.Lines {
		ids[i] = l.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	accountIDs := []string{req.CustomerID}
	for _, l := range c.Lines {
		p, ok := productMap[l.ProductID]
		if !ok {
			return nil, &ProductUnavailableError{ProductID: l.ProductID}
		}
		accountIDs = append(accountIDs, p.VendorID)
	}

	users, err := s.accounts.GetByIDs(ctx, accountIDs)
	if err != nil {
		return nil, errors.Wrap(err, "get accounts")
	}
	userMap := make(map[string]account.User, len(users))
	for _, u := range users {
		userMap[u.ID] = u
	}
	customer, ok := userMap[req.CustomerID]
	if !ok {
		return nil, errors.Errorf("customer %s not found", req.CustomerID)
	}

	items := make([]Item, len(c.Lines))
	total := decimal.Zero
	for i, l := range c.Lines {
		p := productMap[l.ProductID]
		items[i] = Item{
			ProductID:       p.ID,
			ProductName:     p.Name,
			VendorID:        p.VendorID,
			VendorName:      vendorName(userMap[p.VendorID]),
			Quantity:        l.Quantity,
			PriceAtPurchase: p.SellingPrice,
		}
		total = total.Add(items[i].Subtotal())
	}
	if total.GreaterThan(MaxTotal) {
		return nil, ErrTotalTooLarge
	}

	now := time.Now().UTC()
	return &Order{
		ID:         uuid.New().String(),
		CustomerID: req.CustomerID,
		Customer: Contact{
			Name:  customer.Name,
			Email: customer.Email,
		},
		Items:          items,
		Shipping:       req.Shipping.trimmed(),
		PaymentMethod:  req.PaymentMethod,
		Status:         StatusPending,
		PaymentStatus:  PaymentUnpaid,
		Total:          total.Round(2),
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func vendorName(u account.User) string {
	if u.BusinessName != "" {
		return u.BusinessName
	}
	return u.Name
}

func (r *CheckoutRequest) validate() error {
	a := r.Shipping.trimmed()
	for _, f := range []struct {
		name  string
		value string
	}{
		{"fullName", a.FullName},
		{"address", a.Address},
		{"city", a.City},
		{"state", a.State},
		{"country", a.Country},
		{"postalCode", a.PostalCode},
		{"phone", a.Phone},
	} {
		if f.value == "" {
			return validation.Required("shippingDetails." + f.name)
		}
	}
	if _, err := ParsePaymentMethod(string(r.PaymentMethod)); err != nil {
		return validation.New("shippingDetails.paymentMethod", "must be cod or card")
	}
	if len(r.IdempotencyKey) > 128 {
		return validation.New("Idempotency-Key", "must be at most 128 characters")
	}
	return nil
}

func (a Address) trimmed() Address {
	return Address{
		FullName:   strings.TrimSpace(a.FullName),
		Address:    strings.TrimSpace(a.Address),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		Country:    strings.TrimSpace(a.Country),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Phone:      strings.TrimSpace(a.Phone),
	}
}

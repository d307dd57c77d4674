package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// VendorOrder is the part of an order a single vendor may see: its own lines,
// their subtotal, and the customer and shipping details needed to fulfil them.
type VendorOrder struct {
	ID            string
	Customer      Contact
	Shipping      Address
	PaymentMethod PaymentMethod
	Status        Status
	PaymentStatus PaymentStatus
	Items         []Item
	Subtotal      decimal.Decimal
	CreatedAt     time.Time
}

// ProjectForVendor keeps only the lines of vendorID. ok is false when the
// order holds none.
func ProjectForVendor(o *Order, vendorID string) (vo VendorOrder, ok bool) {
	subtotal := decimal.Zero
	var items []Item
	for _, it := range o.Items {
		if it.VendorID != vendorID {
			continue
		}
		items = append(items, it)
		subtotal = subtotal.Add(it.Subtotal())
	}
	if len(items) == 0 {
		return VendorOrder{}, false
	}
	return VendorOrder{
		ID:            o.ID,
		Customer:      o.Customer,
		Shipping:      o.Shipping,
		PaymentMethod: o.PaymentMethod,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Items:         items,
		Subtotal:      subtotal.Round(2),
		CreatedAt:     o.CreatedAt,
	}, true
}

// Overview is the admin view over every order.
type Overview struct {
	Orders   []Order
	ByStatus map[Status]int
	// Revenue sums the totals of orders that were not cancelled.
	Revenue decimal.Decimal
}

// ListForCustomer returns the customer's own orders, newest first.
func (s *Service) ListForCustomer(ctx context.Context, customerID string) ([]Order, error) {
	orders, err := s.orders.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "list customer orders")
	}
	return orders, nil
}

// ListForVendor returns every order holding a line of vendorID, reduced to
// that vendor's lines.
func (s *Service) ListForVendor(ctx context.Context, vendorID string) ([]VendorOrder, error) {
	orders, err := s.orders.ListByVendor(ctx, vendorID)
	if err != nil {
		return nil, errors.Wrap(err, "list vendor orders")
	}
	out := make([]VendorOrder, 0, len(orders))
	for i := range orders {
		if vo, ok := ProjectForVendor(&orders[i], vendorID); ok {
			out = append(out, vo)
		}
	}
	return out, nil
}

// ListAll returns every order with per-status counts.
func (s *Service) ListAll(ctx context.Context) (*Overview, error) {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	ov := &Overview{
		Orders: orders,
		ByStatus: map[Status]int{
			StatusPending:    0,
			StatusProcessing: 0,
			StatusDelivered:  0,
			StatusCancelled:  0,
		},
		Revenue: decimal.Zero,
	}
	for _, o := range orders {
		ov.ByStatus[o.Status]++
		if o.Status != StatusCancelled {
			ov.Revenue = ov.Revenue.Add(o.Total)
		}
	}
	return ov, nil
}

// Get returns any order. Only admins reach it.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %s", id)
	}
	return o, nil
}

// GetForCustomer returns an order owned by customerID. Orders of other
// customers are reported as not found.
func (s *Service) GetForCustomer(ctx context.Context, customerID, id string) (*Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, ErrNotFound
	}
	return o, nil
}

// GetForVendor returns the vendor projection of an order, or ErrNotFound when
// the vendor sold nothing in it.
func (s *Service) GetForVendor(ctx context.Context, vendorID, id string) (*VendorOrder, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	vo, ok := ProjectForVendor(o, vendorID)
	if !ok {
		return nil, ErrNotFound
	}
	return &vo, nil
}

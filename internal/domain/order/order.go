package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// MaxTotal is the largest order total the ledger can store.
var MaxTotal = decimal.RequireFromString("9999999999.99")

// Sentinel errors for order operations.
var (
	ErrNotFound           = errors.New("order not found")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCheckoutInProgress = errors.New("another checkout is in progress")
	ErrCartChanged        = errors.New("cart changed during checkout")
	ErrTotalTooLarge      = errors.New("order total exceeds the allowed maximum")
	// ErrDuplicateKey is returned by Repository.Create when the customer
	// already used the idempotency key.
	ErrDuplicateKey = errors.New("idempotency key already used")
)

// ProductUnavailableError indicates a cart line references a product that
// no longer exists in the catalog.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is no longer available", e.ProductID)
}

// TotalMismatchError indicates the client-declared total disagrees with the
// server-computed one.
type TotalMismatchError struct {
	Declared decimal.Decimal
	Computed decimal.Decimal
}

func (e *TotalMismatchError) Error() string {
	return fmt.Sprintf("total amount mismatch: declared %s, computed %s",
		e.Declared.StringFixed(2), e.Computed.StringFixed(2))
}

// TransitionError indicates an order status change that is not allowed.
type TransitionError struct {
	Field string
	From  string
	To    string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change %s from %s to %s", e.Field, e.From, e.To)
}

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// PaymentStatus records whether the order was paid.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// PaymentMethod is the payment method declared by the customer.
type PaymentMethod string

const (
	PaymentCOD  PaymentMethod = "cod"
	PaymentCard PaymentMethod = "card"
)

// Contact is the customer identity frozen into an order.
type Contact struct {
	Name  string
	Email string
}

// Address is the shipping destination of an order.
type Address struct {
	FullName   string
	Address    string
	City       string
	State      string
	Country    string
	PostalCode string
	Phone      string
}

// Item is an order line. All fields are copied at checkout and never change.
type Item struct {
	ProductID       string
	ProductName     string
	VendorID        string
	VendorName      string
	Quantity        int
	PriceAtPurchase decimal.Decimal
}

// Subtotal returns quantity x price-at-purchase.
func (i Item) Subtotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the historical record produced by a checkout.
type Order struct {
	ID             string
	CustomerID     string
	Customer       Contact
	Items          []Item
	Shipping       Address
	PaymentMethod  PaymentMethod
	Status         Status
	PaymentStatus  PaymentStatus
	Total          decimal.Decimal
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// VendorIDs returns the distinct vendors attributed in the order.
func (o *Order) VendorIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	var ids []string
	for _, it := range o.Items {
		if _, ok := seen[it.VendorID]; ok {
			continue
		}
		seen[it.VendorID] = struct{}{}
		ids = append(ids, it.VendorID)
	}
	return ids
}

// CartRef identifies the cart snapshot an order was built from.
type CartRef struct {
	ID      string
	Version int64
}

// Repository defines persistence operations for orders. Listings are ordered
// newest first.
type Repository interface {
	// Create stores o and empties the referenced cart in one transaction.
	// It returns ErrCartChanged when the cart version moved past ref.Version
	// and ErrDuplicateKey when the idempotency key was already used.
	Create(ctx context.Context, o *Order, ref CartRef) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByIdempotencyKey(ctx context.Context, customerID, key string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	// ListByVendor returns whole orders holding at least one line of vendorID.
	ListByVendor(ctx context.Context, vendorID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status, payment PaymentStatus) error
}

// Unlock releases a lock obtained from Locker.
type Unlock func(ctx context.Context) error

// Locker serialises checkouts per customer.
type Locker interface {
	// TryLock acquires key without waiting. ok is false when another holder
	// owns the key.
	TryLock(ctx context.Context, key string) (unlock Unlock, ok bool, err error)
}

package cart

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/marketplace/internal/domain/validation"
)

// MaxLineQuantity caps the quantity of a single cart line.
const MaxLineQuantity = 1000

// Sentinel errors for cart operations.
var (
	ErrNotFound     = errors.New("cart not found")
	ErrItemNotFound = errors.New("product is not in the cart")
	// ErrQuantityLimit is returned when a line would exceed MaxLineQuantity.
	ErrQuantityLimit = validation.New("quantity", "line quantity must not exceed "+strconv.Itoa(MaxLineQuantity))
)

// Line is one product entry of a cart. Quantity is always at least 1.
type Line struct {
	ProductID string
	Quantity  int
	AddedAt   time.Time
}

// Cart is the single mutable basket of a user. Version increases on every
// mutation and guards checkout against stale snapshots.
type Cart struct {
	ID        string
	UserID    string
	Lines     []Line
	Version   int64
	UpdatedAt time.Time
}

// Quantity returns the quantity of productID, or 0 when it has no line.
func (c *Cart) Quantity(productID string) int {
	if c == nil {
		return 0
	}
	for _, l := range c.Lines {
		if l.ProductID == productID {
			return l.Quantity
		}
	}
	return 0
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

// Repository defines persistence operations for carts.
type Repository interface {
	// Get returns the cart of userID or ErrNotFound if none was created yet.
	Get(ctx context.Context, userID string) (*Cart, error)
	// AdjustLine atomically adds delta to the line of productID, creating the
	// cart and the line when needed. A line that drops to zero is removed.
	// A negative delta on a missing line returns ErrItemNotFound, a line
	// growing past MaxLineQuantity returns ErrQuantityLimit.
	AdjustLine(ctx context.Context, userID, productID string, delta int) (*Cart, error)
	// RemoveLine deletes the line of productID or returns ErrItemNotFound.
	RemoveLine(ctx context.Context, userID, productID string) (*Cart, error)
}

package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for catalog operations.
var (
	// ErrNotFound is returned when a product does not exist, was soft-deleted,
	// or belongs to another vendor.
	ErrNotFound = errors.New("product not found or access denied")
	// ErrSellingAboveMRP is returned when the selling price exceeds the list price.
	ErrSellingAboveMRP = errors.New("selling price must not exceed mrp")
)

// HighlightLimit caps the trending, new-arrival and best-seller lists.
const HighlightLimit = 10

// Product is a catalog item owned by a single vendor.
type Product struct {
	ID           string
	VendorID     string
	Name         string
	Description  string
	MRP          decimal.Decimal
	SellingPrice decimal.Decimal
	Images       []string
	Categories   []string
	IsTrending   bool
	IsNewArrival bool
	IsBestSeller bool
	ReleaseDate  time.Time
	DeletedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Highlight selects one of the display-flag lists.
type Highlight string

const (
	HighlightTrending   Highlight = "trending"
	HighlightNewArrival Highlight = "new-arrival"
	HighlightBestSeller Highlight = "best-seller"
)

// Filter narrows catalog listings. Zero values mean "no constraint".
type Filter struct {
	VendorID  string
	Category  string
	Highlight Highlight
	Limit     int
}

// Repository defines persistence operations for the catalog. Reads never
// return soft-deleted products.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	// Update replaces the mutable fields of a product owned by p.VendorID.
	Update(ctx context.Context, p *Product) error
	SoftDelete(ctx context.Context, vendorID, id string) error
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	List(ctx context.Context, f Filter) ([]Product, error)
}

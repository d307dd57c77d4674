package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/marketplace/internal/domain/validation"
)

// Input is the vendor-editable part of a product.
type Input struct {
	Name         string
	Description  string
	MRP          decimal.Decimal
	SellingPrice decimal.Decimal
	Images       []string
	Categories   []string
	IsTrending   bool
	IsNewArrival bool
	IsBestSeller bool
	// ReleaseDate defaults to the creation time when nil.
	ReleaseDate *time.Time
}

// MaxPrice bounds MRP and selling price so line totals stay within the
// NUMERIC(12,2) money columns.
var MaxPrice = decimal.NewFromInt(10_000_000)

// Validate checks the write-boundary rules for a product.
func (in *Input) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return validation.Required("name")
	}
	if err := validatePrice("mrp", in.MRP); err != nil {
		return err
	}
	if err := validatePrice("sellingPrice", in.SellingPrice); err != nil {
		return err
	}
	if in.SellingPrice.GreaterThan(in.MRP) {
		return ErrSellingAboveMRP
	}
	return nil
}

func validatePrice(field string, d decimal.Decimal) error {
	switch {
	case !d.Equal(d.Round(2)):
		return validation.New(field, "must have at most 2 decimal places")
	case !d.IsPositive():
		return validation.New(field, "must be greater than 0")
	case d.GreaterThan(MaxPrice):
		return validation.New(field, "must not exceed "+MaxPrice.String())
	}
	return nil
}

// Service implements the vendor catalog and public catalog reads.
type Service struct {
	products Repository
}

// NewService creates a catalog Service.
func NewService(products Repository) *Service {
	return &Service{products: products}
}

// Create adds a product owned by vendorID.
func (s *Service) Create(ctx context.Context, vendorID string, in Input) (*Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &Product{
		ID:        uuid.New().String(),
		VendorID:  vendorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	apply(p, in, now)

	if err := s.products.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// Update replaces the editable fields of a product owned by vendorID.
func (s *Service) Update(ctx context.Context, vendorID, id string, in Input) (*Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	p, err := s.GetOwned(ctx, vendorID, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	apply(p, in, p.ReleaseDate)
	p.UpdatedAt = now

	if err := s.products.Update(ctx, p); err != nil {
		return nil, errors.Wrapf(err, "update product %s", id)
	}
	return p, nil
}

// Delete soft-deletes a product owned by vendorID. Existing orders keep their
// copy of the product data.
func (s *Service) Delete(ctx context.Context, vendorID, id string) error {
	if err := s.products.SoftDelete(ctx, vendorID, id); err != nil {
		return errors.Wrapf(err, "delete product %s", id)
	}
	return nil
}

// GetOwned returns a product only when vendorID owns it.
func (s *Service) GetOwned(ctx context.Context, vendorID, id string) (*Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %s", id)
	}
	if p.VendorID != vendorID {
		return nil, ErrNotFound
	}
	return p, nil
}

// ListOwned returns all live products of a vendor.
func (s *Service) ListOwned(ctx context.Context, vendorID string) ([]Product, error) {
	products, err := s.products.List(ctx, Filter{VendorID: vendorID})
	if err != nil {
		return nil, errors.Wrap(err, "list vendor products")
	}
	return products, nil
}

// Get returns a publicly visible product.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %s", id)
	}
	return p, nil
}

// List returns the public catalog, optionally restricted to a category.
func (s *Service) List(ctx context.Context, category string) ([]Product, error) {
	products, err := s.products.List(ctx, Filter{Category: strings.TrimSpace(category)})
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// Highlights returns up to HighlightLimit products carrying flag h. New
// arrivals are ordered by release date, newest first.
func (s *Service) Highlights(ctx context.Context, h Highlight) ([]Product, error) {
	switch h {
	case HighlightTrending, HighlightNewArrival, HighlightBestSeller:
	default:
		return nil, validation.New("highlight", "unknown list")
	}
	products, err := s.products.List(ctx, Filter{Highlight: h, Limit: HighlightLimit})
	if err != nil {
		return nil, errors.Wrapf(err, "list %s products", h)
	}
	return products, nil
}

func apply(p *Product, in Input, defaultRelease time.Time) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = strings.TrimSpace(in.Description)
	p.MRP = in.MRP
	p.SellingPrice = in.SellingPrice
	p.Images = nonEmpty(in.Images)
	p.Categories = dedupe(in.Categories)
	p.IsTrending = in.IsTrending
	p.IsNewArrival = in.IsNewArrival
	p.IsBestSeller = in.IsBestSeller
	p.ReleaseDate = defaultRelease
	if in.ReleaseDate != nil {
		p.ReleaseDate = in.ReleaseDate.UTC()
	}
}

// nonEmpty drops blank references and keeps the order.
func nonEmpty(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// dedupe drops blank and repeated labels, comparing case-insensitively.
func dedupe(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		key := strings.ToLower(l)
		if l == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}

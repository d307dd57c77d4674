package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/marketplace/internal/domain/product"
)

const (
	productColumns = `id, vendor_id, name, description, mrp, selling_price, images, categories,
		is_trending, is_new_arrival, is_best_seller, release_date, deleted_at, created_at, updated_at`

	insertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	updateProductSQL = `UPDATE products SET
			name = $3, description = $4, mrp = $5, selling_price = $6, images = $7, categories = $8,
			is_trending = $9, is_new_arrival = $10, is_best_seller = $11, release_date = $12, updated_at = $13
		WHERE id = $1 AND vendor_id = $2 AND deleted_at IS NULL`

	softDeleteProductSQL = `UPDATE products SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND vendor_id = $2 AND deleted_at IS NULL`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products
		WHERE id = $1 AND deleted_at IS NULL`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE id = ANY($1) AND deleted_at IS NULL`

	// Empty filter arguments disable their predicate; a zero limit means no limit.
	listProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE deleted_at IS NULL
		  AND ($1::text = '' OR vendor_id = $1)
		  AND ($2::text = '' OR EXISTS (SELECT 1 FROM unnest(categories) c WHERE lower(c) = lower($2)))
		  AND ($3::text <> 'trending' OR is_trending)
		  AND ($3::text <> 'new-arrival' OR is_new_arrival)
		  AND ($3::text <> 'best-seller' OR is_best_seller)
		ORDER BY release_date DESC, created_at DESC
		LIMIT NULLIF($4::int, 0)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, insertProductSQL,
		p.ID, p.VendorID, p.Name, p.Description, p.MRP, p.SellingPrice, p.Images, p.Categories,
		p.IsTrending, p.IsNewArrival, p.IsBestSeller, p.ReleaseDate, p.DeletedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Update rewrites a live product owned by p.VendorID.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.VendorID, p.Name, p.Description, p.MRP, p.SellingPrice, p.Images, p.Categories,
		p.IsTrending, p.IsNewArrival, p.IsBestSeller, p.ReleaseDate, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) SoftDelete(ctx context.Context, vendorID, id string) error {
	tag, err := r.pool.Exec(ctx, softDeleteProductSQL, id, vendorID)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// GetByID returns a single live product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns live products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// List returns live products matching f, newest release first.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL, f.VendorID, f.Category, string(f.Highlight), f.Limit)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.VendorID, &p.Name, &p.Description, &p.MRP, &p.SellingPrice, &p.Images, &p.Categories,
		&p.IsTrending, &p.IsNewArrival, &p.IsBestSeller, &p.ReleaseDate, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/marketplace/internal/domain/order"
)

const (
	orderColumns = `id, customer_id, customer, items, shipping, payment_method, status, payment_status,
		total, idempotency_key, created_at, updated_at`

	// claimCartSQL succeeds only if nothing touched the cart since the
	// checkout snapshot was taken.
	claimCartSQL = `UPDATE carts SET version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2`

	clearCartSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	insertOrderSQL = `INSERT INTO orders (id, customer_id, customer, items, vendor_ids, shipping,
			payment_method, status, payment_status, total, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderByKeySQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE customer_id = $1 AND idempotency_key = $2`

	listOrdersByCustomerSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE customer_id = $1 ORDER BY created_at DESC`

	listOrdersByVendorSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE vendor_ids @> ARRAY[$1::text] ORDER BY created_at DESC`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, payment_status = $3, updated_at = now()
		WHERE id = $1`
)

// idempotencyConstraint is the name Postgres gives UNIQUE (customer_id, idempotency_key).
const idempotencyConstraint = "orders_customer_id_idempotency_key_key"

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Line
// items, customer and shipping snapshots live in JSONB columns.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

type contactRecord struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type addressRecord struct {
	FullName   string `json:"fullName"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
	Phone      string `json:"phone"`
}

type itemRecord struct {
	ProductID       string          `json:"productId"`
	ProductName     string          `json:"productName"`
	VendorID        string          `json:"vendorId"`
	VendorName      string          `json:"vendorName"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"priceAtPurchase"`
}

// Create persists o, claims the cart version and empties the cart in one
// transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, ref order.CartRef) error {
	customerJSON, err := json.Marshal(contactRecord(o.Customer))
	if err != nil {
		return fmt.Errorf("marshaling order customer: %w", err)
	}
	shippingJSON, err := json.Marshal(addressRecord(o.Shipping))
	if err != nil {
		return fmt.Errorf("marshaling order shipping: %w", err)
	}
	items := make([]itemRecord, len(o.Items))
	for i, it := range o.Items {
		items[i] = itemRecord(it)
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	var key *string
	if o.IdempotencyKey != "" {
		key = &o.IdempotencyKey
	}

	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, claimCartSQL, ref.ID, ref.Version)
		if err != nil {
			return fmt.Errorf("claiming cart %q: %w", ref.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return order.ErrCartChanged
		}
		if _, err := tx.Exec(ctx, clearCartSQL, ref.ID); err != nil {
			return fmt.Errorf("clearing cart %q: %w", ref.ID, err)
		}

		_, err = tx.Exec(ctx, insertOrderSQL,
			o.ID, o.CustomerID, customerJSON, itemsJSON, o.VendorIDs(), shippingJSON,
			string(o.PaymentMethod), string(o.Status), string(o.PaymentStatus), o.Total, key,
			o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			if uniqueConstraint(err) == idempotencyConstraint {
				return order.ErrDuplicateKey
			}
			return fmt.Errorf("creating order %q: %w", o.ID, err)
		}
		return nil
	})
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

func (r *OrderRepository) GetByIdempotencyKey(ctx context.Context, customerID, key string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByKeySQL, customerID, key)
}

func (r *OrderRepository) getOne(ctx context.Context, query string, args ...any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}
	return &o, nil
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	return r.list(ctx, listOrdersByCustomerSQL, customerID)
}

// ListByVendor uses the GIN index on vendor_ids.
func (r *OrderRepository) ListByVendor(ctx context.Context, vendorID string) ([]order.Order, error) {
	return r.list(ctx, listOrdersByVendorSQL, vendorID)
}

func (r *OrderRepository) ListAll(ctx context.Context) ([]order.Order, error) {
	return r.list(ctx, listOrdersSQL)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, payment order.PaymentStatus) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(status), string(payment))
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                                    order.Order
		customerJSON, itemsJSON, shippingJSON []byte
		method, status, payment              string
		key                                  *string
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &customerJSON, &itemsJSON, &shippingJSON,
		&method, &status, &payment, &o.Total, &key, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}

	var (
		customer contactRecord
		shipping addressRecord
		items    []itemRecord
	)
	if err := json.Unmarshal(customerJSON, &customer); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling order customer: %w", err)
	}
	if err := json.Unmarshal(shippingJSON, &shipping); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling order shipping: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &items); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling order items: %w", err)
	}

	o.Customer = order.Contact(customer)
	o.Shipping = order.Address(shipping)
	o.Items = make([]order.Item, len(items))
	for i, it := range items {
		o.Items[i] = order.Item(it)
	}
	o.PaymentMethod = order.PaymentMethod(method)
	o.Status = order.Status(status)
	o.PaymentStatus = order.PaymentStatus(payment)
	if key != nil {
		o.IdempotencyKey = *key
	}
	return o, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/marketplace/internal/domain/cart"
)

const (
	getCartSQL = `SELECT id, user_id, version, updated_at FROM carts WHERE user_id = $1`

	getCartForUpdateSQL = getCartSQL + ` FOR UPDATE`

	getCartItemsSQL = `SELECT product_id, quantity, added_at FROM cart_items
		WHERE cart_id = $1 ORDER BY added_at, product_id`

	// ensureCartSQL creates the cart on first use. The no-op update makes
	// RETURNING yield the existing row on conflict.
	ensureCartSQL = `INSERT INTO carts (id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, version, updated_at`

	bumpCartSQL = `UPDATE carts SET version = version + 1, updated_at = now() WHERE id = $1
		RETURNING version, updated_at`

	// incrementItemSQL affects no row when the line would exceed $4.
	incrementItemSQL = `INSERT INTO cart_items (cart_id, product_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		WHERE cart_items.quantity + EXCLUDED.quantity <= $4`

	getItemQuantitySQL = `SELECT quantity FROM cart_items WHERE cart_id = $1 AND product_id = $2`

	setItemQuantitySQL = `UPDATE cart_items SET quantity = $3 WHERE cart_id = $1 AND product_id = $2`

	deleteItemSQL = `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Every
// mutation locks the cart row and bumps its version.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	return loadCart(ctx, r.pool, getCartSQL, userID)
}

// AdjustLine adds delta to the line of productID in a single transaction.
func (r *CartRepository) AdjustLine(ctx context.Context, userID, productID string, delta int) (*cart.Cart, error) {
	var out *cart.Cart
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			c   *cart.Cart
			err error
		)
		if delta > 0 {
			c, err = ensureCart(ctx, tx, userID)
		} else {
			c, err = lockCart(ctx, tx, userID)
			if errors.Is(err, cart.ErrNotFound) {
				return cart.ErrItemNotFound
			}
		}
		if err != nil {
			return err
		}

		if delta > 0 {
			tag, err := tx.Exec(ctx, incrementItemSQL, c.ID, productID, delta, cart.MaxLineQuantity)
			if err != nil {
				return fmt.Errorf("incrementing cart item: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return cart.ErrQuantityLimit
			}
		} else {
			var qty int
			err := tx.QueryRow(ctx, getItemQuantitySQL, c.ID, productID).Scan(&qty)
			switch {
			case errors.Is(err, pgx.ErrNoRows):
				return cart.ErrItemNotFound
			case err != nil:
				return fmt.Errorf("getting cart item: %w", err)
			}
			if qty += delta; qty <= 0 {
				_, err = tx.Exec(ctx, deleteItemSQL, c.ID, productID)
			} else {
				_, err = tx.Exec(ctx, setItemQuantitySQL, c.ID, productID, qty)
			}
			if err != nil {
				return fmt.Errorf("decrementing cart item: %w", err)
			}
		}

		out, err = bumpAndLoad(ctx, tx, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CartRepository) RemoveLine(ctx context.Context, userID, productID string) (*cart.Cart, error) {
	var out *cart.Cart
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		c, err := lockCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, deleteItemSQL, c.ID, productID)
		if err != nil {
			return fmt.Errorf("deleting cart item: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return cart.ErrItemNotFound
		}
		out, err = bumpAndLoad(ctx, tx, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func ensureCart(ctx context.Context, tx pgx.Tx, userID string) (*cart.Cart, error) {
	var c cart.Cart
	err := tx.QueryRow(ctx, ensureCartSQL, uuid.New().String(), userID).
		Scan(&c.ID, &c.UserID, &c.Version, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ensuring cart for %q: %w", userID, err)
	}
	return &c, nil
}

func lockCart(ctx context.Context, tx pgx.Tx, userID string) (*cart.Cart, error) {
	var c cart.Cart
	err := tx.QueryRow(ctx, getCartForUpdateSQL, userID).Scan(&c.ID, &c.UserID, &c.Version, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("locking cart for %q: %w", userID, err)
	}
	return &c, nil
}

func bumpAndLoad(ctx context.Context, tx pgx.Tx, c *cart.Cart) (*cart.Cart, error) {
	if err := tx.QueryRow(ctx, bumpCartSQL, c.ID).Scan(&c.Version, &c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("bumping cart version: %w", err)
	}
	lines, err := loadLines(ctx, tx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Lines = lines
	return c, nil
}

func loadCart(ctx context.Context, q querier, query, userID string) (*cart.Cart, error) {
	var c cart.Cart
	err := q.QueryRow(ctx, query, userID).Scan(&c.ID, &c.UserID, &c.Version, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart for %q: %w", userID, err)
	}
	lines, err := loadLines(ctx, q, c.ID)
	if err != nil {
		return nil, err
	}
	c.Lines = lines
	return &c, nil
}

func loadLines(ctx context.Context, q querier, cartID string) ([]cart.Line, error) {
	rows, err := q.Query(ctx, getCartItemsSQL, cartID)
	if err != nil {
		return nil, fmt.Errorf("getting cart items: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Line, error) {
		var l cart.Line
		err := row.Scan(&l.ProductID, &l.Quantity, &l.AddedAt)
		return l, err
	})
}

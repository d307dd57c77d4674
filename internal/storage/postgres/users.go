package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/marketplace/internal/domain/account"
	"github.com/xenking/marketplace/internal/domain/auth"
)

const (
	userColumns = `id, name, email, password_hash, role, business_name, business_address, phone,
		vendor_status, created_at, updated_at`

	insertUserSQL = `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	getUserByIDSQL    = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	getUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	getUsersByIDsSQL  = `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`

	listVendorsSQL = `SELECT ` + userColumns + ` FROM users
		WHERE role = 'vendor' AND ($1::text = '' OR vendor_status = $1)
		ORDER BY created_at DESC`

	updateVendorStatusSQL = `UPDATE users SET vendor_status = $2, updated_at = now()
		WHERE id = $1 AND role = 'vendor'`

	countByRoleSQL  = `SELECT count(*) FROM users WHERE role = $1`
	countVendorsSQL = `SELECT count(*) FROM users WHERE role = 'vendor' AND ($1::text = '' OR vendor_status = $1)`
)

var _ account.Repository = (*UserRepository)(nil)

// UserRepository implements account.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts u. The unique index on email turns a duplicate into
// account.ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, u *account.User) error {
	_, err := r.pool.Exec(ctx, insertUserSQL,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role),
		u.BusinessName, u.BusinessAddress, u.Phone, string(u.VendorStatus),
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if uniqueConstraint(err) != "" {
			return account.ErrEmailTaken
		}
		return fmt.Errorf("creating user %q: %w", u.Email, err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*account.User, error) {
	return r.getOne(ctx, getUserByIDSQL, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*account.User, error) {
	return r.getOne(ctx, getUserByEmailSQL, email)
}

func (r *UserRepository) getOne(ctx context.Context, query, arg string) (*account.User, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting user %q: %w", arg, err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", arg, err)
	}
	return &u, nil
}

// GetByIDs returns users matching any of the given IDs.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) ([]account.User, error) {
	rows, err := r.pool.Query(ctx, getUsersByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting users by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanUser)
}

// ListVendors returns vendors in the given status, or all vendors when status
// is empty, newest first.
func (r *UserRepository) ListVendors(ctx context.Context, status account.VendorStatus) ([]account.User, error) {
	rows, err := r.pool.Query(ctx, listVendorsSQL, string(status))
	if err != nil {
		return nil, fmt.Errorf("listing vendors: %w", err)
	}
	return pgx.CollectRows(rows, scanUser)
}

func (r *UserRepository) UpdateVendorStatus(ctx context.Context, id string, status account.VendorStatus) error {
	tag, err := r.pool.Exec(ctx, updateVendorStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating vendor %q status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (r *UserRepository) CountByRole(ctx context.Context, role auth.Role) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countByRoleSQL, string(role)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s users: %w", role, err)
	}
	return n, nil
}

func (r *UserRepository) CountVendors(ctx context.Context, status account.VendorStatus) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countVendorsSQL, string(status)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting vendors: %w", err)
	}
	return n, nil
}

func scanUser(row pgx.CollectableRow) (account.User, error) {
	var (
		u            account.User
		role, status string
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role,
		&u.BusinessName, &u.BusinessAddress, &u.Phone, &status,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return account.User{}, err
	}
	u.Role = auth.Role(role)
	u.VendorStatus = account.VendorStatus(status)
	return u, nil
}

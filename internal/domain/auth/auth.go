// Package auth defines the identity carried by authenticated requests and the
// credential primitives the account service depends on.
package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrInvalidToken is returned for missing, malformed, expired or forged
// bearer tokens.
var ErrInvalidToken = errors.New("invalid token")

// Role is the closed set of account kinds.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

// ParseRole converts s into a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCustomer, RoleVendor, RoleAdmin:
		return r, nil
	default:
		return "", errors.Errorf("unknown role %q", s)
	}
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Role   Role
	// VendorApproved reflects the stored approval state at request time.
	VendorApproved bool
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Claims is the decoded content of a bearer token.
type Claims struct {
	UserID    string
	Role      Role
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies bearer tokens.
type TokenIssuer interface {
	Issue(userID string, role Role) (string, error)
	Parse(token string) (*Claims, error)
}

// PasswordHasher derives and checks salted password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

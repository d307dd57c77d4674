package account

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/marketplace/internal/domain/auth"
)

// Sentinel errors for account operations.
var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrVendorNotApproved  = errors.New("vendor account not approved yet")
	ErrNotVendor          = errors.New("user is not a vendor")
	ErrAdminRegistration  = errors.New("admin accounts cannot be registered")
)

// VendorStatus is the approval state of a vendor account.
type VendorStatus string

const (
	VendorPending  VendorStatus = "pending"
	VendorApproved VendorStatus = "approved"
	VendorRejected VendorStatus = "rejected"
)

// ParseVendorStatus converts s into a VendorStatus.
func ParseVendorStatus(s string) (VendorStatus, error) {
	switch v := VendorStatus(s); v {
	case VendorPending, VendorApproved, VendorRejected:
		return v, nil
	default:
		return "", errors.Errorf("unknown vendor status %q", s)
	}
}

// User is a customer, vendor or admin account.
type User struct {
	ID              string
	Name            string
	Email           string
	PasswordHash    string
	Role            auth.Role
	BusinessName    string
	BusinessAddress string
	Phone           string
	// VendorStatus is empty for non-vendor roles.
	VendorStatus VendorStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsApprovedVendor reports whether u may use vendor capabilities.
func (u *User) IsApprovedVendor() bool {
	return u.Role == auth.RoleVendor && u.VendorStatus == VendorApproved
}

// Repository defines persistence operations for user accounts.
type Repository interface {
	// Create stores a new user and returns ErrEmailTaken on a duplicate email.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// GetByIDs returns the users that exist among ids, in no particular order.
	GetByIDs(ctx context.Context, ids []string) ([]User, error)
	ListVendors(ctx context.Context, status VendorStatus) ([]User, error)
	UpdateVendorStatus(ctx context.Context, id string, status VendorStatus) error
	CountByRole(ctx context.Context, role auth.Role) (int, error)
	CountVendors(ctx context.Context, status VendorStatus) (int, error)
}

// AuditEntry records one admin decision on a vendor account.
type AuditEntry struct {
	ID        string
	VendorID  string
	AdminID   string
	From      VendorStatus
	To        VendorStatus
	CreatedAt time.Time
}

// AuditLog is an append-only store of vendor approval decisions.
type AuditLog interface {
	Record(ctx context.Context, e *AuditEntry) error
	// List returns entries for vendorID, newest first.
	List(ctx context.Context, vendorID string, limit int64) ([]AuditEntry, error)
}

// Stats summarises the account directory for the admin dashboard.
type Stats struct {
	TotalVendorRequests int
	ApprovedVendors     int
	RejectedVendors     int
	PendingVendors      int
	TotalCustomers      int
}

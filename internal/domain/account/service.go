package account

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/marketplace/internal/domain/auth"
	"github.com/xenking/marketplace/internal/domain/validation"
)

const minPasswordLen = 6

// RegisterRequest holds the input for creating an account.
type RegisterRequest struct {
	Name            string
	Email           string
	Password        string
	Role            auth.Role
	BusinessName    string
	BusinessAddress string
	Phone           string
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token string
	User  *User
}

// Service implements registration, login and vendor approval.
type Service struct {
	users  Repository
	hasher auth.PasswordHasher
	tokens auth.TokenIssuer
	audit  AuditLog
}

// NewService creates an account Service.
func NewService(users Repository, hasher auth.PasswordHasher, tokens auth.TokenIssuer, audit AuditLog) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		audit:  audit,
	}
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register validates req and creates the account. Vendors start pending.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validation.Required("name")
	}
	email := NormalizeEmail(req.Email)
	if email == "" {
		return nil, validation.Required("email")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, validation.New("email", "is not a valid address")
	}
	if len(req.Password) < minPasswordLen {
		return nil, validation.New("password", fmt.Sprintf("must be at least %d characters", minPasswordLen))
	}

	role := req.Role
	if role == "" {
		role = auth.RoleCustomer
	}

	u := &User{
		ID:    uuid.New().String(),
		Name:  name,
		Email: email,
		Role:  role,
		Phone: strings.TrimSpace(req.Phone),
	}

	switch role {
	case auth.RoleCustomer:
	case auth.RoleVendor:
		u.BusinessName = strings.TrimSpace(req.BusinessName)
		if u.BusinessName == "" {
			return nil, validation.Required("businessName")
		}
		u.BusinessAddress = strings.TrimSpace(req.BusinessAddress)
		u.VendorStatus = VendorPending
	case auth.RoleAdmin:
		return nil, ErrAdminRegistration
	default:
		return nil, validation.New("role", "must be customer or vendor")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	u.PasswordHash = hash

	if err := s.users.Create(ctx, u); err != nil {
		return nil, errors.Wrap(err, "create user")
	}
	return u, nil
}

// CreateAdmin creates an admin account. It is only reachable from operator
// tooling, never from the public API.
func (s *Service) CreateAdmin(ctx context.Context, name, email, password string) (*User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	u := &User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        NormalizeEmail(email),
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, errors.Wrap(err, "create admin")
	}
	return u, nil
}

// Login checks credentials and issues a bearer token. Vendors must be
// approved before they can log in.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "get user")
	}

	ok, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	if u.Role == auth.RoleVendor && u.VendorStatus != VendorApproved {
		return nil, ErrVendorNotApproved
	}

	token, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, errors.Wrap(err, "issue token")
	}
	return &LoginResult{Token: token, User: u}, nil
}

// Authenticate verifies a bearer token and reloads the account so that role
// and approval changes apply to tokens issued before them.
func (s *Service) Authenticate(ctx context.Context, token string) (auth.Principal, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return auth.Principal{}, auth.ErrInvalidToken
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return auth.Principal{}, auth.ErrInvalidToken
		}
		return auth.Principal{}, errors.Wrap(err, "get user")
	}

	return auth.Principal{
		UserID:         u.ID,
		Role:           u.Role,
		VendorApproved: u.IsApprovedVendor(),
	}, nil
}

// Profile returns the account with the given id.
func (s *Service) Profile(ctx context.Context, id string) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return u, nil
}

// ListVendors returns vendors in the given approval state.
func (s *Service) ListVendors(ctx context.Context, status VendorStatus) ([]User, error) {
	vendors, err := s.users.ListVendors(ctx, status)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s vendors", status)
	}
	return vendors, nil
}

// SetVendorStatus moves a vendor to status on behalf of adminID. Setting the
// current status again is a no-op and is not audited. The status never
// changes without a recorded audit entry.
func (s *Service) SetVendorStatus(ctx context.Context, adminID, vendorID string, status VendorStatus) (*User, error) {
	if status != VendorApproved && status != VendorRejected {
		return nil, validation.New("status", "must be approved or rejected")
	}

	u, err := s.users.GetByID(ctx, vendorID)
	if err != nil {
		return nil, errors.Wrap(err, "get vendor")
	}
	if u.Role != auth.RoleVendor {
		return nil, ErrNotVendor
	}
	if u.VendorStatus == status {
		return u, nil
	}

	// Audit first: a status write never lands without its entry.
	entry := &AuditEntry{
		ID:        uuid.New().String(),
		VendorID:  vendorID,
		AdminID:   adminID,
		From:      u.VendorStatus,
		To:        status,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		return nil, errors.Wrap(err, "record audit entry")
	}
	if err := s.users.UpdateVendorStatus(ctx, vendorID, status); err != nil {
		return nil, errors.Wrap(err, "update vendor status")
	}
	u.VendorStatus = status
	return u, nil
}

// VendorAudit returns the approval history of a vendor, newest first.
func (s *Service) VendorAudit(ctx context.Context, vendorID string, limit int64) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.audit.List(ctx, vendorID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list audit entries")
	}
	return entries, nil
}

// Stats counts vendors by approval state and customers in parallel.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.TotalVendorRequests, err = s.users.CountByRole(ctx, auth.RoleVendor)
		return errors.Wrap(err, "count vendors")
	})
	g.Go(func() (err error) {
		st.ApprovedVendors, err = s.users.CountVendors(ctx, VendorApproved)
		return errors.Wrap(err, "count approved vendors")
	})
	g.Go(func() (err error) {
		st.RejectedVendors, err = s.users.CountVendors(ctx, VendorRejected)
		return errors.Wrap(err, "count rejected vendors")
	})
	g.Go(func() (err error) {
		st.PendingVendors, err = s.users.CountVendors(ctx, VendorPending)
		return errors.Wrap(err, "count pending vendors")
	})
	g.Go(func() (err error) {
		st.TotalCustomers, err = s.users.CountByRole(ctx, auth.RoleCustomer)
		return errors.Wrap(err, "count customers")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &st, nil
}

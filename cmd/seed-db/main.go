package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/marketplace/internal/domain/account"
	"github.com/xenking/marketplace/internal/domain/auth"
	"github.com/xenking/marketplace/internal/domain/product"
	"github.com/xenking/marketplace/internal/security"
	"github.com/xenking/marketplace/internal/storage/memory"
	"github.com/xenking/marketplace/internal/storage/postgres"
)

type productJSON struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	MRP          decimal.Decimal `json:"mrp"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
	Images       []string        `json:"images"`
	Categories   []string        `json:"categories"`
	IsTrending   bool            `json:"isTrending"`
	IsNewArrival bool            `json:"isNewArrival"`
	IsBestSeller bool            `json:"isBestSeller"`
}

type options struct {
	databaseURL    string
	productsFile   string
	adminEmail     string
	adminPassword  string
	vendorEmail    string
	vendorPassword string
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&opts.adminEmail, "admin-email", "admin@marketplace.local", "email of the seeded admin")
	flag.StringVar(&opts.adminPassword, "admin-password", "", "password of the seeded admin (or MARKET_SEED_ADMIN_PASSWORD env)")
	flag.StringVar(&opts.vendorEmail, "vendor-email", "vendor@marketplace.local", "email of the seeded demo vendor")
	flag.StringVar(&opts.vendorPassword, "vendor-password", "vendor123", "password of the seeded demo vendor")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.adminPassword == "" {
		opts.adminPassword = os.Getenv("MARKET_SEED_ADMIN_PASSWORD")
	}
	if opts.adminPassword == "" {
		slog.Error("admin password is required: set --admin-password or MARKET_SEED_ADMIN_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

// seeder creates accounts through the domain services so that hashing and
// validation match the API.
type seeder struct {
	users    *postgres.UserRepository
	accounts *account.Service
	products *product.Service
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	s, err := newSeeder(pool)
	if err != nil {
		return err
	}

	admin, err := s.seedAdmin(ctx, opts.adminEmail, opts.adminPassword)
	if err != nil {
		return errors.Wrap(err, "seed admin")
	}

	vendor, err := s.seedVendor(ctx, admin.ID, opts.vendorEmail, opts.vendorPassword)
	if err != nil {
		return errors.Wrap(err, "seed vendor")
	}

	if err := s.seedProducts(ctx, vendor.ID, opts.productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	return nil
}

func newSeeder(pool *pgxpool.Pool) (*seeder, error) {
	// Tokens are never issued by the seeder; the secret only satisfies the constructor.
	tokens, err := security.NewJWTIssuer("seed", time.Minute)
	if err != nil {
		return nil, errors.Wrap(err, "create token issuer")
	}
	users := postgres.NewUserRepository(pool)
	return &seeder{
		users:    users,
		accounts: account.NewService(users, security.NewArgon2Hasher(security.DefaultArgon2Params), tokens, memory.NewAuditLog()),
		products: product.NewService(postgres.NewProductRepository(pool)),
	}, nil
}

func (s *seeder) seedAdmin(ctx context.Context, email, password string) (*account.User, error) {
	if u, err := s.users.GetByEmail(ctx, account.NormalizeEmail(email)); err == nil {
		slog.Info("admin already exists", slog.String("id", u.ID), slog.String("email", u.Email))
		return u, nil
	}

	u, err := s.accounts.CreateAdmin(ctx, "Administrator", email, password)
	if err != nil {
		return nil, err
	}
	slog.Info("created admin", slog.String("id", u.ID), slog.String("email", u.Email))
	return u, nil
}

func (s *seeder) seedVendor(ctx context.Context, adminID, email, password string) (*account.User, error) {
	u, err := s.users.GetByEmail(ctx, account.NormalizeEmail(email))
	switch {
	case errors.Is(err, account.ErrNotFound):
		u, err = s.accounts.Register(ctx, account.RegisterRequest{
			Name:            "Demo Vendor",
			Email:           email,
			Password:        password,
			Role:            auth.RoleVendor,
			BusinessName:    "Demo Outfitters",
			BusinessAddress: "1 Market Street",
		})
		if err != nil {
			return nil, errors.Wrap(err, "register vendor")
		}
		slog.Info("registered vendor", slog.String("id", u.ID), slog.String("email", u.Email))
	case err != nil:
		return nil, errors.Wrap(err, "get vendor")
	}

	u, err = s.accounts.SetVendorStatus(ctx, adminID, u.ID, account.VendorApproved)
	if err != nil {
		return nil, errors.Wrap(err, "approve vendor")
	}
	slog.Info("vendor approved", slog.String("id", u.ID), slog.String("business", u.BusinessName))
	return u, nil
}

func (s *seeder) seedProducts(ctx context.Context, vendorID, productsFile string) error {
	existing, err := s.products.ListOwned(ctx, vendorID)
	if err != nil {
		return errors.Wrap(err, "list vendor products")
	}
	if len(existing) > 0 {
		slog.Info("vendor already has products, skipping", slog.Int("count", len(existing)))
		return nil
	}

	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("creating products", slog.Int("count", len(products)))

	for _, p := range products {
		created, err := s.products.Create(ctx, vendorID, product.Input{
			Name:         p.Name,
			Description:  p.Description,
			MRP:          p.MRP,
			SellingPrice: p.SellingPrice,
			Images:       p.Images,
			Categories:   p.Categories,
			IsTrending:   p.IsTrending,
			IsNewArrival: p.IsNewArrival,
			IsBestSeller: p.IsBestSeller,
		})
		if err != nil {
			return errors.Wrapf(err, "create product %q", p.Name)
		}

		slog.Info("created product", slog.String("id", created.ID), slog.String("name", created.Name))
	}

	return nil
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/marketplace/internal/domain/account"
	"github.com/xenking/marketplace/internal/domain/auth"
	"github.com/xenking/marketplace/internal/domain/cart"
	"github.com/xenking/marketplace/internal/domain/order"
	"github.com/xenking/marketplace/internal/domain/product"
	"github.com/xenking/marketplace/internal/domain/wishlist"
	"github.com/xenking/marketplace/internal/security"
	"github.com/xenking/marketplace/internal/storage/memory"
)

// --- Mock implementations ---

type fakeUsers struct {
	mu   sync.Mutex
	byID map[string]account.User
}

func (f *fakeUsers) Create(_ context.Context, u *account.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return account.ErrEmailTaken
		}
	}
	u.CreatedAt = time.Now().UTC()
	f.byID[u.ID] = *u
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*account.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*account.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, account.ErrNotFound
}

func (f *fakeUsers) GetByIDs(_ context.Context, ids []string) ([]account.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []account.User
	for _, id := range ids {
		if u, ok := f.byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) ListVendors(_ context.Context, status account.VendorStatus) ([]account.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []account.User
	for _, u := range f.byID {
		if u.Role == auth.RoleVendor && u.VendorStatus == status {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) UpdateVendorStatus(_ context.Context, id string, status account.VendorStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return account.ErrNotFound
	}
	u.VendorStatus = status
	f.byID[id] = u
	return nil
}

func (f *fakeUsers) CountByRole(_ context.Context, role auth.Role) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.byID {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (f *fakeUsers) CountVendors(ctx context.Context, status account.VendorStatus) (int, error) {
	vendors, err := f.ListVendors(ctx, status)
	return len(vendors), err
}

type fakeProducts struct {
	mu   sync.Mutex
	byID map[string]product.Product
}

func (f *fakeProducts) Create(_ context.Context, p *product.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[p.ID] = *p
	return nil
}

func (f *fakeProducts) Update(_ context.Context, p *product.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[p.ID]
	if !ok || cur.VendorID != p.VendorID || cur.DeletedAt != nil {
		return product.ErrNotFound
	}
	f.byID[p.ID] = *p
	return nil
}

func (f *fakeProducts) SoftDelete(_ context.Context, vendorID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok || p.VendorID != vendorID || p.DeletedAt != nil {
		return product.ErrNotFound
	}
	now := time.Now()
	p.DeletedAt = &now
	f.byID[id] = p
	return nil
}

func (f *fakeProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok || p.DeletedAt != nil {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProducts) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, err := f.GetByID(ctx, id); err == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProducts) List(_ context.Context, filter product.Filter) ([]product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []product.Product
	for _, p := range f.byID {
		if p.DeletedAt != nil {
			continue
		}
		if filter.VendorID != "" && p.VendorID != filter.VendorID {
			continue
		}
		if filter.Category != "" && !slices.ContainsFunc(p.Categories, func(c string) bool {
			return strings.EqualFold(c, filter.Category)
		}) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

type fakeCarts struct {
	mu     sync.Mutex
	byUser map[string]*cart.Cart
}

func (f *fakeCarts) snapshot(c *cart.Cart) *cart.Cart {
	cp := *c
	cp.Lines = slices.Clone(c.Lines)
	return &cp
}

func (f *fakeCarts) Get(_ context.Context, userID string) (*cart.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byUser[userID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return f.snapshot(c), nil
}

func (f *fakeCarts) AdjustLine(_ context.Context, userID, productID string, delta int) (*cart.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byUser[userID]
	if !ok {
		if delta < 0 {
			return nil, cart.ErrItemNotFound
		}
		c = &cart.Cart{ID: "cart-" + userID, UserID: userID}
		f.byUser[userID] = c
	}
	c.Version++
	for i := range c.Lines {
		if c.Lines[i].ProductID != productID {
			continue
		}
		c.Lines[i].Quantity += delta
		if c.Lines[i].Quantity <= 0 {
			c.Lines = slices.Delete(c.Lines, i, i+1)
		}
		return f.snapshot(c), nil
	}
	if delta < 0 {
		return nil, cart.ErrItemNotFound
	}
	c.Lines = append(c.Lines, cart.Line{ProductID: productID, Quantity: delta})
	return f.snapshot(c), nil
}

func (f *fakeCarts) RemoveLine(_ context.Context, userID, productID string) (*cart.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byUser[userID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = slices.Delete(c.Lines, i, i+1)
			c.Version++
			return f.snapshot(c), nil
		}
	}
	return nil, cart.ErrItemNotFound
}

type fakeWishlists struct {
	mu     sync.Mutex
	byUser map[string][]string
}

func (f *fakeWishlists) ProductIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.byUser[userID]), nil
}

func (f *fakeWishlists) Add(_ context.Context, userID, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !slices.Contains(f.byUser[userID], productID) {
		f.byUser[userID] = append(f.byUser[userID], productID)
	}
	return nil
}

func (f *fakeWishlists) Remove(_ context.Context, userID, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := slices.Index(f.byUser[userID], productID)
	if i < 0 {
		return wishlist.ErrItemNotFound
	}
	f.byUser[userID] = slices.Delete(f.byUser[userID], i, i+1)
	return nil
}

type fakeOrders struct {
	mu     sync.Mutex
	carts  *fakeCarts
	orders []order.Order
}

func (f *fakeOrders) Create(_ context.Context, o *order.Order, ref order.CartRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, prev := range f.orders {
		if o.IdempotencyKey != "" && prev.CustomerID == o.CustomerID && prev.IdempotencyKey == o.IdempotencyKey {
			return order.ErrDuplicateKey
		}
	}

	f.carts.mu.Lock()
	defer f.carts.mu.Unlock()
	c, ok := f.carts.byUser[o.CustomerID]
	if !ok || c.ID != ref.ID || c.Version != ref.Version {
		return order.ErrCartChanged
	}
	c.Lines = nil
	c.Version++

	f.orders = append(f.orders, *o)
	return nil
}

func (f *fakeOrders) find(match func(order.Order) bool) []order.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []order.Order
	for i := len(f.orders) - 1; i >= 0; i-- {
		if match(f.orders[i]) {
			out = append(out, f.orders[i])
		}
	}
	return out
}

func (f *fakeOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	found := f.find(func(o order.Order) bool { return o.ID == id })
	if len(found) == 0 {
		return nil, order.ErrNotFound
	}
	return &found[0], nil
}

func (f *fakeOrders) GetByIdempotencyKey(_ context.Context, customerID, key string) (*order.Order, error) {
	found := f.find(func(o order.Order) bool { return o.CustomerID == customerID && o.IdempotencyKey == key })
	if len(found) == 0 {
		return nil, order.ErrNotFound
	}
	return &found[0], nil
}

func (f *fakeOrders) ListByCustomer(_ context.Context, customerID string) ([]order.Order, error) {
	return f.find(func(o order.Order) bool { return o.CustomerID == customerID }), nil
}

func (f *fakeOrders) ListByVendor(_ context.Context, vendorID string) ([]order.Order, error) {
	return f.find(func(o order.Order) bool { return slices.Contains(o.VendorIDs(), vendorID) }), nil
}

func (f *fakeOrders) ListAll(context.Context) ([]order.Order, error) {
	return f.find(func(order.Order) bool { return true }), nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id string, status order.Status, payment order.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.orders {
		if f.orders[i].ID == id {
			f.orders[i].Status = status
			f.orders[i].PaymentStatus = payment
			return nil
		}
	}
	return order.ErrNotFound
}

// --- Helpers ---

type testEnv struct {
	t        *testing.T
	router   http.Handler
	users    *fakeUsers
	tokens   *security.JWTIssuer
	accounts *account.Service
	admin    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := &fakeUsers{byID: make(map[string]account.User)}
	products := &fakeProducts{byID: make(map[string]product.Product)}
	carts := &fakeCarts{byUser: make(map[string]*cart.Cart)}
	wishlists := &fakeWishlists{byUser: make(map[string][]string)}
	orders := &fakeOrders{carts: carts}

	tokens, err := security.NewJWTIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	hasher := security.NewArgon2Hasher(security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1})

	accounts := account.NewService(users, hasher, tokens, memory.NewAuditLog())
	h, err := NewHandler(HandlerConfig{ImageBaseURL: "https://cdn.example.com"}, Services{
		Accounts:  accounts,
		Products:  product.NewService(products),
		Carts:     cart.NewService(carts, products),
		Wishlists: wishlist.NewService(wishlists, products),
		Orders:    order.NewService(carts, products, users, orders, memory.NewLocker()),
	}, metricnoop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/api", h.Mount)

	env := &testEnv{t: t, router: r, users: users, tokens: tokens, accounts: accounts}

	_, err = accounts.CreateAdmin(context.Background(), "Root", "admin@example.com", "admin-pass")
	require.NoError(t, err)
	env.admin = env.login("admin@example.com", "admin-pass")
	return env
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) register(body map[string]any) userResponse {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/auth/register", "", body)
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[registerResponse](e.t, rec).User
}

func (e *testEnv) login(email, password string) string {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": email, "password": password})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[loginResponse](e.t, rec).Token
}

func (e *testEnv) customer(email string) (userResponse, string) {
	e.t.Helper()
	u := e.register(map[string]any{"name": "Alice", "email": email, "password": "secret1"})
	return u, e.login(email, "secret1")
}

func (e *testEnv) approvedVendor(email, business string) (userResponse, string) {
	e.t.Helper()
	u := e.register(map[string]any{
		"name": "Vera", "email": email, "password": "secret1",
		"role": "vendor", "businessName": business,
	})
	rec := e.do(http.MethodPut, "/api/admin/vendors/approve/"+u.ID, e.admin, nil)
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	return u, e.login(email, "secret1")
}

func (e *testEnv) createProduct(token string, mrp, selling float64) productResponse {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/vendor/products", token, map[string]any{
		"name": "Road Bike", "mrp": mrp, "sellingPrice": selling,
		"images": []string{"bike.jpg"}, "categories": []string{"Bikes"},
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[productResponse](e.t, rec)
}

func shipping() map[string]any {
	return map[string]any{
		"fullName": "Alice Doe", "address": "1 Main St", "city": "Springfield",
		"state": "IL", "country": "US", "postalCode": "62701", "phone": "555-0100",
		"paymentMethod": "cod",
	}
}

// --- Tests ---

func TestMarketplaceFlow(t *testing.T) {
	env := newTestEnv(t)

	vendor := env.register(map[string]any{
		"name": "Vera", "email": "vera@example.com", "password": "secret1",
		"role": "vendor", "businessName": "Bikes Ltd",
	})
	assert.Equal(t, "pending", vendor.VendorStatus)

	rec := env.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "vera@example.com", "password": "secret1"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPut, "/api/admin/vendors/approve/"+vendor.ID, env.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "approved", decode[vendorStatusResponse](t, rec).Vendor.VendorStatus)

	vendorToken := env.login("vera@example.com", "secret1")
	p := env.createProduct(vendorToken, 600, 500)
	assert.Equal(t, vendor.ID, p.VendorID)
	assert.Equal(t, []string{"https://cdn.example.com/bike.jpg"}, p.Images)

	_, customerToken := env.customer("alice@example.com")
	rec = env.do(http.MethodPost, "/api/cart/add", customerToken, map[string]any{"productId": p.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(http.MethodPost, "/api/cart/add", customerToken, map[string]any{"productId": p.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := decode[cartResponse](t, rec)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.InDelta(t, 1000, c.Subtotal, 0.001)

	rec = env.do(http.MethodPost, "/api/order/create", customerToken, map[string]any{
		"shippingDetails": shipping(),
		"totalAmount":     1000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decode[orderResponse](t, rec)
	assert.InDelta(t, 1000, o.TotalAmount, 0.001)
	assert.Equal(t, "pending", o.OrderStatus)
	assert.Equal(t, "unpaid", o.PaymentStatus)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Bikes Ltd", o.Items[0].VendorName)

	rec = env.do(http.MethodGet, "/api/cart", customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[cartResponse](t, rec).Items, "checkout empties the cart")

	rec = env.do(http.MethodGet, "/api/order/vendor", vendorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	vendorOrders := decode[[]vendorOrderResponse](t, rec)
	require.Len(t, vendorOrders, 1)
	assert.InDelta(t, 1000, vendorOrders[0].VendorSubtotal, 0.001)

	rec = env.do(http.MethodGet, "/api/order/all", env.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[allOrdersResponse](t, rec)
	assert.Equal(t, 1, all.Total)
	assert.Equal(t, 1, all.Summary.Pending)
	assert.InDelta(t, 1000, all.Summary.Revenue, 0.001)

	rec = env.do(http.MethodPut, "/api/order/"+o.ID+"/status", env.admin, map[string]any{
		"orderStatus": "processing", "paymentStatus": "paid",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[orderResponse](t, rec)
	assert.Equal(t, "processing", updated.OrderStatus)
	assert.Equal(t, "paid", updated.PaymentStatus)

	rec = env.do(http.MethodPut, "/api/order/"+o.ID+"/status", env.admin, map[string]any{"orderStatus": "pending"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(http.MethodGet, "/api/admin/dashboard/stats", env.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[statsResponse](t, rec)
	assert.Equal(t, 1, stats.TotalVendorRequests)
	assert.Equal(t, 1, stats.ApprovedVendorCount)
	assert.Equal(t, 1, stats.TotalUserCount)

	rec = env.do(http.MethodGet, "/api/admin/vendors/"+vendor.ID+"/audit", env.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	audit := decode[[]auditEntryResponse](t, rec)
	require.Len(t, audit, 1)
	assert.Equal(t, "pending", audit[0].From)
	assert.Equal(t, "approved", audit[0].To)
}

func TestAuthorization(t *testing.T) {
	env := newTestEnv(t)
	_, customerToken := env.customer("alice@example.com")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", http.MethodGet, "/api/user/profile", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/api/user/profile", "not-a-jwt", http.StatusUnauthorized},
		{"customer profile", http.MethodGet, "/api/user/profile", customerToken, http.StatusOK},
		{"customer on admin route", http.MethodGet, "/api/admin/dashboard/stats", customerToken, http.StatusForbidden},
		{"customer on vendor route", http.MethodGet, "/api/vendor/products", customerToken, http.StatusForbidden},
		{"admin on cart", http.MethodGet, "/api/cart", env.admin, http.StatusForbidden},
		{"public catalog", http.MethodGet, "/api/products", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestPendingVendorTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	vendor := env.register(map[string]any{
		"name": "Vera", "email": "vera@example.com", "password": "secret1",
		"role": "vendor", "businessName": "Bikes Ltd",
	})

	token, err := env.tokens.Issue(vendor.ID, auth.RoleVendor)
	require.NoError(t, err)

	rec := env.do(http.MethodGet, "/api/vendor/products", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, account.ErrVendorNotApproved.Error(), decode[errorResponse](t, rec).Message)

	rec = env.do(http.MethodPut, "/api/admin/vendors/reject/"+vendor.ID, env.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, "/api/vendor/products", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegister_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.register(map[string]any{"name": "Alice", "email": "alice@example.com", "password": "secret1"})

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"duplicate email", map[string]any{"name": "A", "email": "ALICE@example.com", "password": "secret1"}, http.StatusConflict},
		{"admin role", map[string]any{"name": "A", "email": "a@example.com", "password": "secret1", "role": "admin"}, http.StatusForbidden},
		{"unknown role", map[string]any{"name": "A", "email": "a@example.com", "password": "secret1", "role": "root"}, http.StatusBadRequest},
		{"short password", map[string]any{"name": "A", "email": "a@example.com", "password": "123"}, http.StatusBadRequest},
		{"vendor without business", map[string]any{"name": "A", "email": "a@example.com", "password": "secret1", "role": "vendor"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/auth/register", "", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := env.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "alice@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateProduct_SellingAboveMRP(t *testing.T) {
	env := newTestEnv(t)
	_, vendorToken := env.approvedVendor("vera@example.com", "Bikes Ltd")

	rec := env.do(http.MethodPost, "/api/vendor/products", vendorToken, map[string]any{
		"name": "Road Bike", "mrp": 500, "sellingPrice": 600,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/vendor/products", vendorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]productResponse](t, rec))
}

func TestCreateProduct_PriceBounds(t *testing.T) {
	env := newTestEnv(t)
	_, vendorToken := env.approvedVendor("vera@example.com", "Bikes Ltd")

	for _, body := range []map[string]any{
		{"name": "Freebie", "mrp": 1, "sellingPrice": 0.004},
		{"name": "Yacht", "mrp": 20_000_000, "sellingPrice": 15_000_000},
	} {
		rec := env.do(http.MethodPost, "/api/vendor/products", vendorToken, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	}
}

func TestCartAdd_QuantityBounds(t *testing.T) {
	env := newTestEnv(t)
	_, vendorToken := env.approvedVendor("vera@example.com", "Bikes Ltd")
	p := env.createProduct(vendorToken, 600, 500)
	_, customerToken := env.customer("alice@example.com")

	rec := env.do(http.MethodPost, "/api/cart/add", customerToken, map[string]any{"productId": p.ID, "quantity": 3_000_000_000})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPost, "/api/cart/add", customerToken, map[string]any{"productId": p.ID, "quantity": 1000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(http.MethodPost, "/api/cart/add", customerToken, map[string]any{"productId": p.ID, "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestVendorProductOwnership(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.approvedVendor("owner@example.com", "Owner Co")
	_, otherToken := env.approvedVendor("other@example.com", "Other Co")
	p := env.createProduct(ownerToken, 600, 500)

	body := map[string]any{"name": "Stolen", "mrp": 10, "sellingPrice": 5}
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPut, "/api/vendor/products/"+p.ID, otherToken, body).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/api/vendor/products/"+p.ID, otherToken, nil).Code)

	rec := env.do(http.MethodDelete, "/api/vendor/products/"+p.ID, ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/products/"+p.ID, "", nil).Code)
}

func TestCreateOrder_IdempotencyKey(t *testing.T) {
	env := newTestEnv(t)
	_, vendorToken := env.approvedVendor("vera@example.com", "Bikes Ltd")
	p := env.createProduct(vendorToken, 600, 500)
	_, customerToken := env.customer("alice@example.com")

	rec := env.do(http.MethodPost, "/api/cart/add", customerToken, map[string]any{"productId": p.ID, "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	place := func() *httptest.ResponseRecorder {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{"shippingDetails": shipping()}))
		req := httptest.NewRequest(http.MethodPost, "/api/order/create", &buf)
		req.Header.Set("Authorization", "Bearer "+customerToken)
		req.Header.Set(idempotencyHeader, "checkout-1")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	first := place()
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := place()
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())
	assert.Equal(t, decode[orderResponse](t, first).ID, decode[orderResponse](t, second).ID)

	rec = env.do(http.MethodGet, "/api/order/my", customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]orderResponse](t, rec), 1)
}

func TestCreateOrder_Errors(t *testing.T) {
	env := newTestEnv(t)
	_, vendorToken := env.approvedVendor("vera@example.com", "Bikes Ltd")
	p := env.createProduct(vendorToken, 600, 500)
	_, customerToken := env.customer("alice@example.com")

	rec := env.do(http.MethodPost, "/api/order/create", customerToken, map[string]any{"shippingDetails": shipping()})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "empty cart")

	rec = env.do(http.MethodPost, "/api/cart/add", customerToken, map[string]any{"productId": p.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	sd := shipping()
	delete(sd, "city")
	rec = env.do(http.MethodPost, "/api/order/create", customerToken, map[string]any{"shippingDetails": sd})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/order/create", customerToken, map[string]any{
		"shippingDetails": shipping(), "totalAmount": 1,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "declared total mismatch")

	rec = env.do(http.MethodDelete, "/api/vendor/products/"+p.ID, vendorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodPost, "/api/order/create", customerToken, map[string]any{"shippingDetails": shipping()})
	assert.Equal(t, http.StatusNotFound, rec.Code, "product deleted after it was added")
}

func TestGetOrder_Scoping(t *testing.T) {
	env := newTestEnv(t)
	_, vendorToken := env.approvedVendor("vera@example.com", "Bikes Ltd")
	_, otherVendorToken := env.approvedVendor("olga@example.com", "Other Co")
	p := env.createProduct(vendorToken, 600, 500)
	_, aliceToken := env.customer("alice@example.com")
	_, bobToken := env.customer("bob@example.com")

	rec := env.do(http.MethodPost, "/api/cart/add", aliceToken, map[string]any{"productId": p.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodPost, "/api/order/create", aliceToken, map[string]any{"shippingDetails": shipping()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[orderResponse](t, rec).ID

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/order/"+id, aliceToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/order/"+id, bobToken, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/order/"+id, env.admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/order/"+id, otherVendorToken, nil).Code)

	rec = env.do(http.MethodGet, "/api/order/"+id, vendorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 500, decode[vendorOrderResponse](t, rec).VendorSubtotal, 0.001)

	rec = env.do(http.MethodPut, "/api/order/"+id+"/status", aliceToken, map[string]any{"orderStatus": "cancelled"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWishlist(t *testing.T) {
	env := newTestEnv(t)
	_, vendorToken := env.approvedVendor("vera@example.com", "Bikes Ltd")
	p := env.createProduct(vendorToken, 600, 500)
	_, customerToken := env.customer("alice@example.com")

	for range 2 {
		rec := env.do(http.MethodPost, "/api/wishlist/add", customerToken, map[string]any{"productId": p.ID})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := env.do(http.MethodGet, "/api/wishlist", customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]productResponse](t, rec)["products"], 1)

	rec = env.do(http.MethodDelete, "/api/wishlist/remove/"+p.ID, customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodDelete, "/api/wishlist/remove/"+p.ID, customerToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusBadRequest, decode[errorResponse](t, rec).Code)
}

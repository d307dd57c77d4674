package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/marketplace/internal/domain/account"
	"github.com/xenking/marketplace/internal/domain/cart"
	"github.com/xenking/marketplace/internal/domain/order"
	"github.com/xenking/marketplace/internal/domain/product"
	"github.com/xenking/marketplace/internal/domain/wishlist"
	"github.com/xenking/marketplace/internal/handler"
	"github.com/xenking/marketplace/internal/security"
	"github.com/xenking/marketplace/internal/storage/memory"
	mongostore "github.com/xenking/marketplace/internal/storage/mongo"
	"github.com/xenking/marketplace/internal/storage/postgres"
	redisstore "github.com/xenking/marketplace/internal/storage/redis"
	"github.com/xenking/marketplace/pkg/health"
	"github.com/xenking/marketplace/pkg/httpmiddleware"
)

const (
	serviceName = "marketplace-api"
	livezPath   = "/livez"
	readyzPath  = "/readyz"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application. m is usually
// the *app.Telemetry of go-faster/sdk.
func Run(ctx context.Context, lg *zap.Logger, m httpmiddleware.TelemetryProvider, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	rdb, closeRedis, err := openRedis(ctx, lg, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeRedis()

	// Checkout locks and rate limit counters are shared across replicas
	// only when Redis is configured.
	var (
		locker  order.Locker = memory.NewLocker()
		limiter httpmiddleware.Limiter
	)
	if rdb != nil {
		rl := redisstore.NewLocker(rdb, "market:lock:", cfg.Redis.LockTTL)
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck("redis", rl))
		locker = rl
		limiter = httpmiddleware.NewRedisLimiter(rdb, "market:rl:", cfg.RateLimit.Max, cfg.RateLimit.Window)
	}

	auditLog, closeAudit, err := openAuditLog(ctx, lg, cfg.Mongo, healthSvc)
	if err != nil {
		return err
	}
	defer closeAudit()

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Credentials.
	tokens, err := security.NewJWTIssuer(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		return errors.Wrap(err, "create token issuer")
	}
	hasher := security.NewArgon2Hasher(security.DefaultArgon2Params)

	// Repositories.
	userRepo := postgres.NewUserRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	wishlistRepo := postgres.NewWishlistRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	// Domain services.
	services := handler.Services{
		Accounts:  account.NewService(userRepo, hasher, tokens, auditLog),
		Products:  product.NewService(productRepo),
		Carts:     cart.NewService(cartRepo, productRepo),
		Wishlists: wishlist.NewService(wishlistRepo, productRepo),
		Orders:    order.NewService(cartRepo, productRepo, userRepo, orderRepo, locker),
	}

	// HTTP handlers.
	h, err := handler.NewHandler(
		handler.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL},
		services,
		m.MeterProvider().Meter("marketplace"),
	)
	if err != nil {
		return errors.Wrap(err, "create handler")
	}

	// Router: health endpoints + API routes on one server. Route-aware
	// middleware runs inside chi so the matched pattern is known.
	router := chi.NewRouter()
	router.Use(
		httpmiddleware.Instrument(serviceName, httpmiddleware.ChiRouteFinder, m),
		httpmiddleware.LogRequests(httpmiddleware.ChiRouteFinder),
		httpmiddleware.Labeler(httpmiddleware.ChiRouteFinder),
	)
	router.Get(livezPath, healthSvc.LiveEndpoint)
	router.Get(readyzPath, healthSvc.ReadyEndpoint)
	router.Route("/api", h.Mount)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "Idempotency-Key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				Limiter: limiter,
				Skip:    httpmiddleware.SkipPaths(livezPath, readyzPath),
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// openRedis connects to Redis when a URL is configured. A nil client means
// the process runs without it.
func openRedis(ctx context.Context, lg *zap.Logger, cfg RedisConfig) (*redis.Client, func(), error) {
	if cfg.URL == "" {
		lg.Warn("Redis not configured, checkout locks and rate limits are process-local")
		return nil, func() {}, nil
	}

	client, err := redisstore.NewClient(ctx, cfg.URL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect redis")
	}

	return client, func() {
		if err := client.Close(); err != nil {
			lg.Warn("Close redis client", zap.Error(err))
		}
	}, nil
}

// openAuditLog returns the MongoDB vendor audit log when a URI is configured,
// and an in-process one otherwise.
func openAuditLog(ctx context.Context, lg *zap.Logger, cfg MongoConfig, hs *health.Health) (account.AuditLog, func(), error) {
	if cfg.URI == "" {
		lg.Warn("MongoDB not configured, vendor audit log is process-local")
		return memory.NewAuditLog(), func() {}, nil
	}

	client, err := mongostore.Connect(ctx, cfg.URI)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect mongodb")
	}
	auditLog := mongostore.NewAuditLog(client, cfg.Database, cfg.Collection)
	if err := auditLog.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, nil, errors.Wrap(err, "ensure audit indexes")
	}
	hs.AddReadinessCheck("mongodb", 2*time.Second, health.PingCheck("mongodb", auditLog))

	return auditLog, func() {
		if err := client.Disconnect(context.WithoutCancel(ctx)); err != nil {
			lg.Warn("Disconnect mongodb", zap.Error(err))
		}
	}, nil
}

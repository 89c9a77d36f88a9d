package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"souq_back_end/internal/auth"
	"souq_back_end/internal/cache"
	"souq_back_end/internal/cart"
	"souq_back_end/internal/config"
	"souq_back_end/internal/database"
	"souq_back_end/internal/handlers/admin"
	"souq_back_end/internal/handlers/order"
	"souq_back_end/internal/handlers/product"
	"souq_back_end/internal/handlers/user"
	"souq_back_end/internal/middleware"
	"souq_back_end/internal/repository"
	"souq_back_end/internal/routes"
	"souq_back_end/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ invalid configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("❌ logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Prices go out as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scylla, err := database.NewScyllaManager(cfg.Scylla, logger)
	if err != nil {
		return err
	}
	defer scylla.Close()

	if err := scylla.EnsureSchema(); err != nil {
		return err
	}

	rdb, err := database.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	es, err := database.NewElastic(cfg.Elastic, logger)
	if err != nil {
		return err
	}

	minioClient, err := database.NewMinIO(ctx, cfg.MinIO, logger)
	if err != nil {
		return err
	}

	productsRepo := repository.NewProductRepository(scylla.ProductsSession)
	ordersRepo := repository.NewOrderRepository(scylla.OrdersSession, productsRepo)
	usersRepo := repository.NewUserRepository(scylla.UsersSession)
	auditRepo := repository.NewAuditRepository(scylla.UsersSession)

	catalog := cache.NewProductCache(rdb, productsRepo.List, logger)
	blacklist := cache.NewBlacklist(rdb)
	loginLimiter := cache.NewLimiter(rdb, "login", middleware.LoginMaxAttempts, middleware.LoginCooldown, middleware.LoginCooldown)
	cartLimiter := cache.NewLimiter(rdb, "cart", middleware.CartMaxRequests, time.Minute, 0)
	checkoutLimiter := cache.NewLimiter(rdb, "checkout", middleware.CheckoutMaxRequests, 10*time.Minute, 0)

	search := services.NewSearchIndex(es, cfg.Elastic.Index, logger)
	media := services.NewMediaStorage(minioClient, cfg.MinIO)
	orderEvents := services.NewOrderEvents(rdb, logger)
	metrics := middleware.NewMetrics()

	checkoutOpts := []cart.Option{
		cart.WithListener(orderEvents),
		cart.WithObserver(metrics),
	}
	mailer, err := services.NewMailer(cfg.SMTP, productsRepo, logger)
	if err != nil {
		return err
	}
	if mailer != nil {
		checkoutOpts = append(checkoutOpts, cart.WithListener(mailer))
	}
	checkout := cart.NewCheckout(ordersRepo, logger, checkoutOpts...)
	carts := cart.NewStore(rdb)
	checkoutLocks := cache.NewLocks(rdb, "checkout", 30*time.Second)

	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL)
	notifier := auth.NewNotifier()
	auditor := middleware.NewAuditor(auditRepo, logger)
	unsubscribe := notifier.Subscribe(auditor.OnSessionEvent)
	defer unsubscribe()

	admins := middleware.NewAdminSessions(cfg.Auth.SessionSecret, cfg.IsProduction(),
		cfg.Auth.AdminUsername, cfg.Auth.AdminPasswordHash)

	if products, err := catalog.List(ctx); err != nil {
		logger.Warn("⚠️ catalog warmup failed", zap.Error(err))
	} else {
		logger.Info("✅ catalog cache warmed", zap.Int("products", len(products)))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	routes.Register(r, routes.Deps{
		Logger:      logger,
		Metrics:     metrics,
		CORSOrigins: cfg.CORSOrigins,
		Secure:      cfg.IsProduction(),

		Issuer:    issuer,
		Blacklist: blacklist,
		Admins:    admins,
		Auditor:   auditor,

		LoginLimiter:    loginLimiter,
		CartLimiter:     cartLimiter,
		CheckoutLimiter: checkoutLimiter,

		Products:     product.NewHandler(productsRepo, catalog, search, media, logger),
		Cart:         user.NewCartHandler(carts, productsRepo, logger),
		CartSync:     user.NewCartSync(carts, carts, cfg.CORSOrigins, logger),
		Auth:         user.NewAuthHandler(usersRepo, issuer, blacklist, notifier, logger),
		MyOrders:     user.NewOrderHandler(ordersRepo, logger),
		Orders:       order.NewHandler(carts, productsRepo, checkout, ordersRepo, orderEvents, checkoutLocks, cfg.BaseURL, logger),
		AdminSession: admin.NewSessionHandler(admins, notifier, auditor, logger),
		Audit:        admin.NewAuditHandler(auditRepo, logger),
		Feed:         admin.NewOrderFeed(orderEvents, cfg.CORSOrigins, logger),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if mailer != nil {
		statusFeed := orderEvents.Subscribe(gctx)
		g.Go(func() error {
			defer func() { _ = statusFeed.Close() }()
			mailer.RelayStatusChanges(gctx, statusFeed.Channel(), usersRepo)
			return nil
		})
	}
	g.Go(func() error {
		logger.Info("🚀 server listening", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("🛑 shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

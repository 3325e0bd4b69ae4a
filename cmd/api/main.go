package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tienda-labs/backend-tienda/internal/analytics"
	"github.com/tienda-labs/backend-tienda/internal/app"
	"github.com/tienda-labs/backend-tienda/internal/audit"
	"github.com/tienda-labs/backend-tienda/internal/auth"
	"github.com/tienda-labs/backend-tienda/internal/cart"
	"github.com/tienda-labs/backend-tienda/internal/catalog"
	"github.com/tienda-labs/backend-tienda/internal/checkout"
	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/config"
	"github.com/tienda-labs/backend-tienda/internal/events"
	"github.com/tienda-labs/backend-tienda/internal/favorites"
	"github.com/tienda-labs/backend-tienda/internal/health"
	"github.com/tienda-labs/backend-tienda/internal/notify"
	"github.com/tienda-labs/backend-tienda/internal/obs"
	"github.com/tienda-labs/backend-tienda/internal/order"
	"github.com/tienda-labs/backend-tienda/internal/payment"
	"github.com/tienda-labs/backend-tienda/internal/promo"
	"github.com/tienda-labs/backend-tienda/internal/ratelimit"
	"github.com/tienda-labs/backend-tienda/internal/resilience"
	"github.com/tienda-labs/backend-tienda/internal/reviews"
	"github.com/tienda-labs/backend-tienda/internal/security"
	"github.com/tienda-labs/backend-tienda/internal/shipping"
	"github.com/tienda-labs/backend-tienda/internal/store"
	"github.com/tienda-labs/backend-tienda/internal/user"
	"github.com/tienda-labs/backend-tienda/internal/voucher"
)

func main() {
	cfg := config.MustLoad()
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("service", "tienda-api").Logger()

	obs.MustRegisterDomainMetrics("tienda", nil)
	httpMetrics := obs.NewHTTPMetrics("tienda", nil, nil)

	tracingEnabled := cfg.OTLPEndpoint != ""
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "tienda-api",
			Endpoint:      cfg.OTLPEndpoint,
			SamplingRatio: 1.0,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	pool, err := app.NewPool(ctx, cfg, "tienda-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()

	redisClient, err := app.NewRedis(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("open redis")
	}
	defer func() { _ = redisClient.Close() }()

	asynqOpt, err := app.AsynqRedisOpt(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse asynq redis options")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() { _ = taskClient.Close() }()

	st := store.New(pool)
	mailer := common.NopEmailSender{}

	scheduler := &notify.Scheduler{
		Q:           st,
		Client:      taskClient,
		Targets:     cfg.NotifyWebhookTargets,
		MaxAttempts: cfg.NotifyMaxAttempts,
	}
	emailNotifier := notify.EmailNotifier{Mail: mailer, Enabled: cfg.NotifyEmailEnabled}
	bus := &events.Bus{
		Store:     st,
		Scheduler: scheduler,
		Notifiers: []events.Notifier{emailNotifier},
	}

	deliveryHTTP := &resilience.HTTPClient{
		Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("notify").WithLogger(logger),
		BaseBackoff: 200 * time.Millisecond,
		MaxAttempts: 2,
		Jitter:      0.2,
		Timeout:     10 * time.Second,
	}
	deliverer := &notify.Deliverer{
		Q:           st,
		HTTP:        deliveryHTTP,
		Secret:      cfg.NotifyWebhookSecret,
		MaxAttempts: cfg.NotifyMaxAttempts,
		Log:         logger,
	}

	verifier := auth.Verifier{Secret: []byte(cfg.JWTSecret), ClockSkew: 30 * time.Second}
	authMW := auth.Middleware{Verifier: verifier, Accounts: st}

	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Queries: st,
		Cache:   catalog.NewCache(redisClient, 5*time.Minute),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogSvc})
	catalogAdmin := catalog.NewAdminHandler(st, catalog.NewCache(redisClient, 5*time.Minute))

	cartSvc := &cart.Service{
		Q:        st,
		GuestTTL: cfg.GuestCartTTL,
		UserTTL:  cfg.UserCartTTL,
		TaxBps:   cfg.TaxBps,
		Shipping: promo.Money(cfg.ShippingFlatFee),
	}
	cartHandler := &cart.Handler{Svc: cartSvc}

	checkoutSvc := &checkout.Service{
		Store:    st,
		TaxBps:   cfg.TaxBps,
		Shipping: promo.Money(cfg.ShippingFlatFee),
		Bus:      bus,
		Log:      logger,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}

	orderHandler := &order.Handler{Q: st}
	orderAdmin := &order.AdminHandler{Q: st, Bus: bus}

	var ratesClient shipping.Client = shipping.MockClient{}
	if cfg.ShippingAPIKey != "" {
		ratesClient = &shipping.HTTPRatesClient{
			BaseURL: cfg.ShippingBaseURL,
			APIKey:  cfg.ShippingAPIKey,
			HTTP: &resilience.HTTPClient{
				Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("shipping").WithLogger(logger),
				BaseBackoff: 200 * time.Millisecond,
				MaxAttempts: 3,
				Jitter:      0.2,
				Timeout:     5 * time.Second,
			},
		}
	}
	shipSvc := &shipping.Service{
		Q:      st,
		Rates:  ratesClient,
		Mail:   mailer,
		Bus:    bus,
		Log:    logger,
		Notify: cfg.NotifyEmailEnabled,
	}
	shipHandler := &shipping.Handler{Svc: shipSvc}
	shipWebhook := shipping.Webhook{Svc: shipSvc, Replay: st, Token: cfg.ShippingWebhookToken}

	paymentWebhook := payment.Webhook{
		Q:         st,
		Providers: map[string]payment.Provider{"pasarela": payment.HMACProvider{Secret: cfg.PaymentWebhookSecret}},
		Bus:       bus,
		Log:       logger,
	}

	voucherHandler := &voucher.Handler{Q: st}
	reviewHandler := &reviews.Handler{Q: st}
	favoriteHandler := &favorites.Handler{Q: st}
	userAdmin := &user.AdminHandler{Q: st}
	notifyAdmin := &notify.AdminHandler{Q: st, Deliverer: deliverer}
	analyticsHandler := &analytics.Handler{Svc: &analytics.Service{Q: st, R: redisClient, TTL: 5 * time.Minute}}

	auditSvc := audit.Service{Q: st, Enabled: true}
	auditHandler := audit.Handler{Svc: auditSvc}
	auditRecorder := audit.Recorder{Svc: auditSvc, Log: logger}

	publicLimiter, err := ratelimit.New(redisClient, "ratelimit:", cfg.RateLimitPerMin, time.Minute)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	limited := ratelimit.Handler{
		Limiter: publicLimiter,
		Max:     cfg.RateLimitPerMin,
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter degraded") },
	}

	idem := common.Idem{R: redisClient, TTL: 24 * time.Hour}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", cart.TokenHeader, "Idempotency-Key"},
		ExposedHeaders:   []string{cart.TokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/debug", chimw.Profiler())

	healthHandler := health.Handler{Checker: app.ReadinessChecker{DB: pool, Redis: redisClient}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(authMW.Authenticate)

		v.Group(func(pub chi.Router) {
			pub.Use(limited.Middleware)
			pub.Get("/products", catalogHandler.Products)
			pub.Get("/products/{slug}", catalogHandler.ProductDetail)
			pub.Get("/products/{slug}/price", catalogHandler.PricePreview)
			pub.Get("/products/{id}/reviews", reviewHandler.List)
			pub.Post("/shipping/rates", shipHandler.Rates)
		})

		v.Route("/cart", func(c chi.Router) {
			c.Get("/", cartHandler.Get)
			c.Delete("/", cartHandler.Clear)
			c.Post("/items", cartHandler.AddItem)
			c.Patch("/items/{productId}", cartHandler.UpdateItem)
			c.Delete("/items/{productId}", cartHandler.RemoveItem)
			c.Post("/voucher", cartHandler.ApplyVoucher)
			c.Delete("/voucher", cartHandler.RemoveVoucher)
			c.With(authMW.RequireAuth).Post("/merge", cartHandler.Merge)
		})

		v.With(authMW.RequireAuth, idem.Middleware).Post("/checkout", checkoutHandler.Checkout)

		v.Group(func(priv chi.Router) {
			priv.Use(authMW.RequireAuth)
			priv.Get("/orders", orderHandler.List)
			priv.Get("/orders/{orderId}", orderHandler.Get)
			priv.Post("/orders/{orderId}/cancel", orderHandler.Cancel)
			priv.Get("/orders/{orderId}/shipment", shipHandler.GetByOrder)

			priv.Post("/products/{id}/reviews", reviewHandler.Create)
			priv.Delete("/reviews/{id}", reviewHandler.Delete)

			priv.Get("/favorites", favoriteHandler.List)
			priv.Get("/favorites/{productId}", favoriteHandler.Check)
			priv.Put("/favorites/{productId}", favoriteHandler.Add)
			priv.Delete("/favorites/{productId}", favoriteHandler.Remove)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMW.RequireAuth)
			admin.Use(auth.RequireRole(user.RoleStaff, user.RoleAdmin))
			admin.Use(auditRecorder.Middleware)

			admin.Post("/products", catalogAdmin.CreateProduct)
			admin.Put("/products/{id}", catalogAdmin.UpdateProduct)
			admin.Delete("/products/{id}", catalogAdmin.DeleteProduct)

			admin.Get("/promotions", catalogAdmin.ListPromotions)
			admin.Post("/promotions", catalogAdmin.CreatePromotion)
			admin.Put("/promotions/{id}", catalogAdmin.UpdatePromotion)
			admin.Delete("/promotions/{id}", catalogAdmin.DeletePromotion)
			admin.Post("/promotions/preview", catalogAdmin.PreviewPromotion)

			admin.Get("/vouchers", voucherHandler.List)
			admin.Post("/vouchers", voucherHandler.Create)
			admin.Patch("/vouchers/{id}/active", voucherHandler.SetActive)
			admin.Post("/vouchers/preview", voucherHandler.Preview)

			admin.Get("/orders", orderAdmin.List)
			admin.Patch("/orders/{id}/status", orderAdmin.PatchStatus)
			admin.Post("/orders/{id}/shipment", shipHandler.AdminCreate)

			admin.Get("/notify/dlq", notifyAdmin.ListDLQ)
			admin.Post("/notify/dlq/{id}/replay", notifyAdmin.ReplayDLQ)

			admin.Get("/analytics/sales", analyticsHandler.Sales)
			admin.Get("/analytics/top-products", analyticsHandler.TopProducts)
			admin.Get("/audit", auditHandler.List)

			admin.Group(func(root chi.Router) {
				root.Use(auth.RequireRole(user.RoleAdmin))
				root.Get("/users", userAdmin.List)
				root.Post("/users", userAdmin.CreateStaff)
				root.Patch("/users/{id}/role", userAdmin.SetRole)
				root.Patch("/users/{id}/block", userAdmin.SetBlocked)
			})
		})

		v.Post("/webhooks/payment/{provider}", paymentWebhook.Handle)
		v.Post("/webhooks/shipping/{courier}", shipWebhook.Handle)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-runCtx.Done()
	logger.Info().Msg("shutting down")
	health.SetReady(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

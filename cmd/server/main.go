package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DukeRupert/rateflow/internal"
	"github.com/DukeRupert/rateflow/internal/ai"
	"github.com/DukeRupert/rateflow/internal/ai/anthropic"
	"github.com/DukeRupert/rateflow/internal/ai/mock"
	"github.com/DukeRupert/rateflow/internal/auth"
	"github.com/DukeRupert/rateflow/internal/billing"
	"github.com/DukeRupert/rateflow/internal/cache"
	"github.com/DukeRupert/rateflow/internal/clock"
	"github.com/DukeRupert/rateflow/internal/email"
	"github.com/DukeRupert/rateflow/internal/handler"
	"github.com/DukeRupert/rateflow/internal/jobs"
	"github.com/DukeRupert/rateflow/internal/metrics"
	"github.com/DukeRupert/rateflow/internal/middleware"
	"github.com/DukeRupert/rateflow/internal/report"
	"github.com/DukeRupert/rateflow/internal/repository"
	"github.com/DukeRupert/rateflow/internal/scheduler"
	"github.com/DukeRupert/rateflow/internal/service"
	"github.com/DukeRupert/rateflow/internal/storage"
	"github.com/DukeRupert/rateflow/internal/taxid"
	"github.com/DukeRupert/rateflow/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 30 * time.Second

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	store := repository.NewStore(db)
	clk := clock.Real{}

	// ==========================================================================
	// Collaborators
	// ==========================================================================

	objects, err := storage.New(storage.Config{
		Provider: cfg.StorageProvider,
		Local: storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		},
		R2: storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
			Endpoint:        cfg.R2Endpoint,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	mailer, err := email.NewSMTPEmailService(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, logger)
	if err != nil {
		return fmt.Errorf("email initialization failed: %w", err)
	}

	provider, err := newAIProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("AI provider initialization failed: %w", err)
	}

	var taxIDs taxid.Verifier
	if cfg.TaxIDAPIURL != "" {
		taxIDs = taxid.NewClient(taxid.Config{
			BaseURL: cfg.TaxIDAPIURL,
			APIKey:  cfg.TaxIDAPIKey,
			Timeout: cfg.TaxIDTimeout,
		})
	} else {
		logger.Warn("Tax ID verification is not configured")
	}

	var gateway billing.Gateway
	if cfg.BillingEnabled() {
		gateway = billing.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.PaymentSigningSecret)
	} else {
		logger.Warn("Billing is not configured, payment endpoints are disabled")
	}

	// ==========================================================================
	// Services
	// ==========================================================================

	quotaService := service.NewQuotaService(store, clk, logger)
	businessService := service.NewBusinessService(service.BusinessServiceConfig{
		Store:   store,
		Storage: objects,
		Logos:   service.NewLogoProcessor(),
		TaxIDs:  taxIDs,
		Email:   mailer,
		Clock:   clk,
		Logger:  logger,
	})
	invoiceService := service.NewInvoiceService(service.InvoiceServiceConfig{
		Store:     store,
		Quota:     quotaService,
		Generator: report.NewPDFGenerator(),
		Storage:   objects,
		BaseURL:   cfg.BaseURL,
		Clock:     clk,
		Logger:    logger,
	})
	couponService := service.NewCouponService(store, clk, logger)
	feedbackService := service.NewFeedbackService(store, cache.NewUsernameCache(cfg.UsernameCacheSize, cfg.UsernameCacheTTL), objects, clk, logger)
	subscriptionService := service.NewSubscriptionService(store, clk, logger)
	paymentService := service.NewPaymentService(store, gateway, service.PaymentConfig{
		AmountCents: cfg.ProPriceAmount,
		Currency:    cfg.ProPriceCurrency,
	}, clk, logger)
	insightService := service.NewInsightService(store, quotaService, provider, clk, logger)

	// ==========================================================================
	// Middleware
	// ==========================================================================

	sessions, err := newSessionProvider(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("session provider initialization failed: %w", err)
	}
	sessionMw := middleware.NewSessionMiddleware(sessions, businessService, logger)

	limiter, closeLimiter, err := newRateLimiter(cfg, logger)
	if err != nil {
		return fmt.Errorf("rate limiter initialization failed: %w", err)
	}
	defer closeLimiter()

	securityMw := middleware.NewSecurityHeadersMiddleware(!cfg.IsDevelopment())
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()
	requireSession := sessionMw.RequireSession

	handler.NewHealthHandler(db, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	handler.NewProfileHandler(businessService, quotaService, logger).RegisterRoutes(mux, requireSession)
	handler.NewInvoiceHandler(invoiceService, quotaService, logger).RegisterRoutes(mux, requireSession)
	handler.NewCouponHandler(couponService, logger).RegisterRoutes(mux, requireSession)
	handler.NewFeedbackHandler(feedbackService, logger).RegisterRoutes(mux, requireSession, limiter.Limit)
	handler.NewPlanHandler(subscriptionService, paymentService, logger).RegisterRoutes(mux, requireSession)
	handler.NewInsightHandler(insightService, logger).RegisterRoutes(mux, requireSession)
	handler.NewWebhookHandler(paymentService, logger).RegisterRoutes(mux)

	if cfg.StorageProvider == storage.ProviderLocal {
		mux.Handle("GET /files/", http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.LocalStoragePath))))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	})

	// Outermost first: security headers, request log, metrics, session.
	root := middleware.Stack(
		securityMw.Handler,
		loggingMw.Handler,
		metrics.Middleware,
		sessionMw.WithSession,
	)(mux)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ==========================================================================
	// Start server, worker and scheduler
	// ==========================================================================

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received, initiating graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if cfg.WorkerEnabled {
		w, err := worker.New(store, worker.Config{
			Concurrency:     cfg.WorkerConcurrency,
			PollInterval:    cfg.WorkerPollInterval,
			JobTimeout:      cfg.WorkerJobTimeout,
			ShutdownTimeout: shutdownTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		w.Register(jobs.NewSendInvoiceEmailHandler(store, objects, mailer, cfg.BaseURL, logger))
		w.Register(jobs.NewGenerateInsightsHandler(insightService, logger))
		w.Register(jobs.NewPruneFilesHandler(store, objects, clk, logger))

		g.Go(func() error { return w.Run(gctx) })
	}

	if cfg.SchedulerEnabled {
		s := scheduler.New(store, clk, scheduler.DefaultPruneAge, logger)
		g.Go(func() error { return s.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Graceful shutdown complete")
	return nil
}

// newAIProvider returns the configured insight provider.
func newAIProvider(cfg *internal.Config, logger *slog.Logger) (ai.Provider, error) {
	if cfg.AIProvider != "anthropic" {
		logger.Info("Using mock AI provider")
		return mock.New(logger), nil
	}
	return anthropic.New(anthropic.Config{
		APIKey: cfg.AnthropicAPIKey,
		Model:  cfg.AnthropicModel,
		ProviderConfig: ai.ProviderConfig{
			MaxRetries:     cfg.AIMaxRetries,
			RetryBaseDelay: cfg.AIRetryBaseDelay,
			RequestTimeout: cfg.AIRequestTimeout,
		},
	}, logger)
}

// newSessionProvider verifies OIDC tokens when an issuer is configured. In
// development without one, identity headers are trusted.
func newSessionProvider(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (auth.SessionProvider, error) {
	if cfg.OIDCIssuer != "" && cfg.OIDCClientID != "" {
		return auth.NewOIDCProvider(ctx, auth.OIDCConfig{
			Issuer:   cfg.OIDCIssuer,
			ClientID: cfg.OIDCClientID,
		}, logger)
	}
	if !cfg.IsDevelopment() {
		return nil, errors.New("OIDC is required outside development")
	}
	logger.Warn("Using development identity headers; never enable this in production")
	return auth.DevProvider{}, nil
}

// newRateLimiter shares limits through Redis when REDIS_URL is set.
func newRateLimiter(cfg *internal.Config, logger *slog.Logger) (*middleware.RateLimiter, func(), error) {
	if cfg.RedisURL == "" {
		rl, err := middleware.NewRateLimiter(cfg.PublicRateLimit, logger)
		return rl, func() {}, err
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	rl, err := middleware.NewRedisRateLimiter(cfg.PublicRateLimit, client, logger)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return rl, func() { _ = client.Close() }, nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

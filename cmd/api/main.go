package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/carepoint/internal/auth"
	"github.com/BradenHooton/carepoint/internal/background"
	"github.com/BradenHooton/carepoint/internal/config"
	"github.com/BradenHooton/carepoint/internal/database"
	"github.com/BradenHooton/carepoint/internal/handlers"
	"github.com/BradenHooton/carepoint/internal/middleware"
	"github.com/BradenHooton/carepoint/internal/notify"
	"github.com/BradenHooton/carepoint/internal/observability"
	"github.com/BradenHooton/carepoint/internal/repositories"
	"github.com/BradenHooton/carepoint/internal/routes"
	"github.com/BradenHooton/carepoint/internal/services"
	pkgauth "github.com/BradenHooton/carepoint/pkg/auth"
	pkglogger "github.com/BradenHooton/carepoint/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := pkglogger.New(os.Stdout, cfg.Server.LogLevel, cfg.Server.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	if err := observability.InitSentry(cfg.Sentry.DSN, cfg.Server.Env); err != nil {
		logger.Warn("sentry disabled", slog.Any("error", err))
	}
	defer observability.FlushSentry()

	// Initialize databases
	coreDB, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer coreDB.Close()

	contentDB := coreDB
	if cfg.Content.URL != "" {
		contentDB, err = database.NewConnectionFromURL(cfg.Content.URL, "content", logger)
		if err != nil {
			logger.Error("failed to connect to content database", slog.Any("error", err))
			os.Exit(1)
		}
		defer contentDB.Close()
	}

	if cfg.Database.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		for _, db := range uniqueDBs(coreDB, contentDB) {
			if err := db.Migrate(migrateCtx); err != nil {
				cancel()
				logger.Error("failed to apply migrations", slog.Any("error", err))
				os.Exit(1)
			}
		}
		cancel()
	}

	// Notification dispatch
	dispatcher, closeDispatcher, err := newDispatcher(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize notifications", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize repositories
	adminRepo := repositories.NewAdminRepository(coreDB)
	appointmentRepo := repositories.NewAppointmentRepository(coreDB)
	contactRepo := repositories.NewContactRepository(contentDB)
	reviewRepo := repositories.NewReviewRepository(contentDB)

	// Security services
	auditLogger := pkglogger.NewAuditLogger(logger)

	hasher, err := pkgauth.NewHasher(pkgauth.Algorithm(cfg.Auth.PasswordHash), cfg.Auth.BcryptCost)
	if err != nil {
		logger.Error("failed to initialize password hasher", slog.Any("error", err))
		os.Exit(1)
	}

	tokenManager, err := auth.NewTokenManagerFromConfig(&cfg.Auth)
	if err != nil {
		logger.Error("failed to initialize token manager", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("token signing configured", slog.String("alg", tokenManager.Algorithm()))

	var totpManager *auth.TOTPManager
	if cfg.Auth.MFAEncryptionKey != "" {
		totpManager, err = auth.NewTOTPManagerFromHex(cfg.Auth.MFAEncryptionKey, cfg.Auth.MFAIssuer)
		if err != nil {
			logger.Error("invalid MFA_ENCRYPTION_KEY", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Warn("MFA_ENCRYPTION_KEY not set, MFA enrollment disabled")
	}

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:    cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs:  cfg.Auth.TimingDelayRandomMs,
		DelayOnSuccess: cfg.Auth.TimingDelayOnSuccess,
	})

	// Initialize services
	authService := services.NewAuthService(adminRepo, hasher, tokenManager, totpManager, timingDelay, dispatcher, services.AuthConfig{
		Lockout:          auth.LockoutPolicy{Threshold: cfg.Auth.LockoutThreshold, Duration: cfg.Auth.LockoutDuration},
		ResetURLBase:     cfg.Auth.ResetURLBase,
		ResetTokenExpiry: cfg.Auth.ResetTokenExpiry,
	}, logger, auditLogger)
	slotChecker := services.NewSlotChecker(appointmentRepo, cfg.Hospital.Location)
	appointmentService := services.NewAppointmentService(appointmentRepo, slotChecker, dispatcher, cfg.Mail.HospitalEmail, logger, auditLogger)
	contentService := services.NewContentService(contactRepo, reviewRepo, dispatcher, cfg.Mail.HospitalEmail, logger, auditLogger)
	adminService := services.NewAdminService(adminRepo, hasher, logger, auditLogger)

	// Initialize handlers
	responder := handlers.NewErrorResponder(logger, cfg.Server.IsProduction())
	healthDeps := map[string]handlers.Pinger{"core": coreDB}
	if contentDB != coreDB {
		healthDeps["content"] = contentDB
	}

	redisClient := newRedisClient(cfg.RateLimit.RedisURL, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	router := routes.NewRouter(routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService, responder),
		Appointments: handlers.NewAppointmentHandler(appointmentService, responder),
		Content:      handlers.NewContentHandler(contentService, responder),
		Admins:       handlers.NewAdminHandler(adminService, responder),
		Health:       handlers.NewHealthHandler(healthDeps, responder),
	}, routes.Options{
		Logger:         logger,
		Verifier:       auth.NewVerifier(tokenManager, adminRepo),
		Limiter:        middleware.NewRateLimiter(cfg.RateLimit, redisClient, logger),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Production:     cfg.Server.IsProduction(),
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(adminRepo, logger, cfg.Auth.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	cleanupCancel()
	cleanupManager.Stop()

	// Requests are finished, so nothing enqueues after this point
	if err := closeDispatcher(shutdownCtx); err != nil {
		logger.Error("notification shutdown error", slog.Any("error", err))
	}

	logger.Info("server stopped gracefully")
}

// newDispatcher returns the in-process queue or a NATS publisher, plus the
// function that drains it on shutdown.
func newDispatcher(cfg *config.Config, logger *slog.Logger) (notify.Dispatcher, func(context.Context) error, error) {
	if cfg.Notify.Transport == "nats" {
		conn, err := notify.ConnectNATS(cfg.Notify.NATSURL, "carepoint-api", logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func(context.Context) error {
			return conn.Drain()
		}
		logger.Info("notifications published to NATS", slog.String("subject", cfg.Notify.Subject))
		return notify.NewNATSPublisher(conn, cfg.Notify.Subject, logger), closeFn, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	queue, err := notify.NewDeliveryQueue(ctx, cfg, logger, reportUndelivered)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("notifications delivered in-process",
		slog.String("mailer", cfg.Mail.Provider),
		slog.Int("workers", cfg.Notify.Workers))
	return queue, queue.Close, nil
}

func reportUndelivered(ctx context.Context, msg notify.Message, err error) {
	observability.CaptureError(ctx, err, map[string]string{
		"notification_id":   msg.ID,
		"notification_kind": string(msg.Kind),
	})
}

// newRedisClient connects to the shared rate-limit store. Any failure leaves
// rate limiting per process.
func newRedisClient(url string, logger *slog.Logger) *redis.Client {
	if url == "" {
		return nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn("invalid REDIS_URL, rate limits are per instance", slog.Any("error", err))
		return nil
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, rate limits are per instance", slog.Any("error", err))
		_ = client.Close()
		return nil
	}

	logger.Info("rate limits shared through redis", slog.String("addr", opts.Addr))
	return client
}

func uniqueDBs(dbs ...*database.DB) []*database.DB {
	var out []*database.DB
	seen := make(map[*database.DB]bool)
	for _, db := range dbs {
		if !seen[db] {
			seen[db] = true
			out = append(out, db)
		}
	}
	return out
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/projectgrid/internal/auth"
	"github.com/BradenHooton/projectgrid/internal/background"
	"github.com/BradenHooton/projectgrid/internal/config"
	"github.com/BradenHooton/projectgrid/internal/database"
	"github.com/BradenHooton/projectgrid/internal/email"
	"github.com/BradenHooton/projectgrid/internal/handlers"
	middlewareCustom "github.com/BradenHooton/projectgrid/internal/middleware"
	"github.com/BradenHooton/projectgrid/internal/models"
	"github.com/BradenHooton/projectgrid/internal/observability/metrics"
	"github.com/BradenHooton/projectgrid/internal/repositories"
	"github.com/BradenHooton/projectgrid/internal/routes"
	"github.com/BradenHooton/projectgrid/internal/services"
	pkgauth "github.com/BradenHooton/projectgrid/pkg/auth"
	pkghttp "github.com/BradenHooton/projectgrid/pkg/http"
	pkglogger "github.com/BradenHooton/projectgrid/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := database.Migrate(ctx, db.Pool, logger)
		cancel()
		if err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Optional Redis for the resend throttle
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, email throttling will fail open", slog.Any("error", err))
		}
		cancel()
	}

	// Email delivery
	sender, err := newEmailSender(cfg.Email, logger)
	if err != nil {
		logger.Error("failed to initialize email sender", slog.Any("error", err))
		os.Exit(1)
	}
	sender = email.NewThrottledSender(sender, redisClient, cfg.Email.ResendWindow, cfg.Email.ResendLimit, logger)
	dispatcher := email.NewDispatcher(sender, cfg.Email.SendTimeout, logger)
	composer := email.NewComposer(cfg.Email.AppBaseURL, cfg.Email.FromName)

	// Token manager with optional per-purpose secrets
	tokenManager, err := auth.NewTokenManager(auth.TokenConfig{
		Secret: cfg.Auth.JWTSecret,
		PurposeSecrets: map[models.TokenPurpose]string{
			models.PurposeEmailVerification: cfg.Auth.EmailVerificationSecret,
			models.PurposePasswordReset:     cfg.Auth.PasswordResetSecret,
			models.PurposeLogin:             cfg.Auth.LoginSecret,
		},
	})
	if err != nil {
		logger.Error("failed to initialize token manager", slog.Any("error", err))
		os.Exit(1)
	}

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   cfg.Auth.TimingDelayBase,
		RandomDelay: cfg.Auth.TimingDelayJitter,
	})
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	tokenRepo := repositories.NewVerificationTokenRepository(db)
	workspaceRepo := repositories.NewWorkspaceRepository(db)
	projectRepo := repositories.NewProjectRepository(db)
	taskRepo := repositories.NewTaskRepository(db)
	activityRepo := repositories.NewActivityRepository(db)

	// Initialize services
	accountService := services.NewAccountService(services.AccountDeps{
		Users:       userRepo,
		Tokens:      tokenRepo,
		Issuer:      tokenManager,
		Hasher:      pkgauth.NewHasher(cfg.Auth.BcryptCost),
		Mailer:      dispatcher,
		Composer:    composer,
		Timing:      timingDelay,
		Logger:      logger,
		AuditLogger: auditLogger,
	}, services.AccountConfig{
		EmailVerificationTTL: cfg.Auth.EmailVerificationTokenTTL,
		PasswordResetTTL:     cfg.Auth.PasswordResetTokenTTL,
		LoginTTL:             cfg.Auth.LoginTokenTTL,
	})
	userService := services.NewUserService(userRepo, logger)
	workspaceService := services.NewWorkspaceService(workspaceRepo, userRepo, activityRepo, logger, auditLogger)
	projectService := services.NewProjectService(projectRepo, workspaceRepo, activityRepo, logger)
	taskService := services.NewTaskService(taskRepo, projectRepo, workspaceRepo, activityRepo, logger)

	// Initialize handlers
	h := routes.Handlers{
		Auth:       handlers.NewAuthHandler(accountService),
		Users:      handlers.NewUserHandler(userService),
		Workspaces: handlers.NewWorkspaceHandler(workspaceService),
		Projects:   handlers.NewProjectHandler(projectService),
		Tasks:      handlers.NewTaskHandler(taskService),
		Health:     handlers.NewHealthHandler(db, logger),
	}

	ipResolver, err := pkghttp.NewClientIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid TRUSTED_PROXIES", slog.Any("error", err))
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.MustRegister(registry)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, ipResolver))
	router.Use(middlewareCustom.Metrics)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, h, routes.Options{
		AuthRateLimit:  middlewareCustom.RateLimitByIP(middlewareCustom.DefaultAuthRateLimit(cfg.Server.AuthRateLimit), ipResolver),
		BotProtection:  cfg.Server.BotProtectionEnabled,
		TokenVerifier:  tokenManager,
		UserRepository: userRepo,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:         logger,
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
	cleanupManager := background.NewCleanupManager(tokenRepo, logger, cfg.Auth.CleanupInterval)
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

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// newEmailSender picks the delivery backend named by EMAIL_PROVIDER
func newEmailSender(cfg config.EmailConfig, logger *slog.Logger) (email.Sender, error) {
	switch cfg.Provider {
	case "ses":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return email.NewSESSender(ctx, cfg.AWSRegion, cfg.From, logger)
	case "smtp":
		return email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.From,
			FromName: cfg.FromName,
			UseTLS:   cfg.SMTPUseTLS,
		})
	case "log":
		return email.NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

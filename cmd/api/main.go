package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/carelink/internal/auth"
	"github.com/BradenHooton/carelink/internal/config"
	"github.com/BradenHooton/carelink/internal/database"
	"github.com/BradenHooton/carelink/internal/handlers"
	middlewareCustom "github.com/BradenHooton/carelink/internal/middleware"
	"github.com/BradenHooton/carelink/internal/models"
	"github.com/BradenHooton/carelink/internal/repositories"
	"github.com/BradenHooton/carelink/internal/routes"
	"github.com/BradenHooton/carelink/internal/services"
	pkgauth "github.com/BradenHooton/carelink/pkg/auth"
	pkghttp "github.com/BradenHooton/carelink/pkg/http"
	pkglogger "github.com/BradenHooton/carelink/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.Bool("google_oauth", cfg.OAuth.GoogleEnabled()))

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := database.Migrate(ctx, &cfg.Database, logger)
		cancel()
		if err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()
	prometheus.MustRegister(database.NewPoolStatsCollector(db.Stats))

	// Initialize redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = rdb.Ping(pingCtx).Err()
	pingCancel()
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err), slog.String("addr", cfg.Redis.Addr))
		os.Exit(1)
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db.Pool)
	sessionRepo := repositories.NewSessionRepository(db.Pool)
	patientRepo := repositories.NewPatientRepository(db.Pool)
	profileRepo := repositories.NewProfileRepository(db.Pool)
	oauthAccountRepo := repositories.NewOAuthAccountRepository(db.Pool)
	otpStore := repositories.NewOTPStore(rdb)

	// Token manager with distinct access and refresh secrets
	tokenManager := auth.NewTokenManager(
		cfg.Auth.AccessTokenSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenSecret,
		cfg.Auth.RefreshTokenExpiry,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:    cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs:  cfg.Auth.TimingDelayRandomMs,
		DelayOnSuccess: cfg.Auth.TimingDelayOnSuccess,
	})

	// AWS SES email service
	sesCtx, sesCancel := context.WithTimeout(context.Background(), 10*time.Second)
	emailService, err := services.NewAWSSESEmailService(sesCtx, cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.AppName, logger)
	sesCancel()
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	identity := services.NewIdentityProvider(
		userRepo,
		sessionRepo,
		otpStore,
		oauthAccountRepo,
		emailService,
		auth.NewOTPGenerator(cfg.Email.AppName),
		timingDelay,
		services.IdentityConfig{
			SessionExpiry:  cfg.Auth.SessionExpiry,
			OTPExpiry:      cfg.Auth.OTPExpiry,
			OTPMaxAttempts: cfg.Auth.OTPMaxAttempts,
		},
		logger,
	)
	authService := services.NewAuthService(identity, tokenManager, patientRepo, db, logger, auditLogger)
	directoryService := services.NewDirectoryService(userRepo, profileRepo, logger)
	userService := services.NewUserService(userRepo, sessionRepo, logger, auditLogger)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	cookieConfig := auth.CookieConfig{
		Domain:   cfg.Cookie.Domain,
		Secure:   cfg.Cookie.Secure,
		SameSite: cfg.Cookie.SameSite,
	}
	lifetimes := auth.CookieLifetimes{
		Access:  cfg.Auth.AccessTokenExpiry,
		Refresh: cfg.Auth.RefreshTokenExpiry,
		Session: cfg.Auth.SessionExpiry,
	}

	healthHandler := handlers.NewHealthHandler(logger)
	healthHandler.Register("database", db.HealthCheck)
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	h := routes.Handlers{
		Auth:   handlers.NewAuthHandler(authService, directoryService, cookieConfig, lifetimes, ipConfig, logger),
		Users:  handlers.NewUserHandler(userService, logger),
		Health: healthHandler,
	}

	if cfg.OAuth.GoogleEnabled() {
		oauthService := services.NewOAuthService(cfg.OAuth, cfg.Server.BaseURL, identity, logger)
		stateStore := handlers.NewOAuthStateStore(cfg.OAuth.StateSecret, cfg.Cookie.Secure)
		h.OAuth = handlers.NewOAuthHandler(oauthService, authService, stateStore, cookieConfig, lifetimes, cfg.Server.FrontendURL, ipConfig, logger)
	}

	// Bootstrap first super admin if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.Metrics())
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(cfg.Server.AllowedOrigins))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig, cfg.Server.Env))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	gate := auth.NewGate(sessionRepo, tokenManager, logger)
	routes.RegisterRoutes(router, h, gate, routes.Options{
		AuthRequestsPerMinute:  cfg.Auth.AuthRequestsPerMin,
		AdminRequestsPerMinute: cfg.Auth.AdminRequestsPerMin,
		IPConfig:               ipConfig,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

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
		return
	}

	logger.Info("server stopped gracefully")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensureAdminUser creates the first super admin if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	if err := pkgauth.ValidatePassword(adminPassword); err != nil {
		return fmt.Errorf("invalid ADMIN_PASSWORD: %w", err)
	}
	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	_, err = userRepo.Create(ctx, &models.User{
		Email:              adminEmail,
		PasswordHash:       hashedPassword,
		Name:               "Super Admin",
		Role:               models.RoleSuperAdmin,
		Status:             models.UserStatusActive,
		EmailVerified:      true,
		NeedPasswordChange: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("super admin user created", slog.String("email", pkglogger.SanitizedEmail(adminEmail)))
	return nil
}

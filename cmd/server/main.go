package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"napdiary/internal/config"
	"napdiary/internal/database"
	"napdiary/internal/handlers"
	"napdiary/internal/repository"
	"napdiary/internal/security"
	"napdiary/internal/service"
	"napdiary/migrations"
	"napdiary/templates"
)

const (
	_sessionCleanupInterval = time.Hour
	_visitorCleanupInterval = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error(err.Error(), "trace", string(debug.Stack()))
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

type application struct {
	config *config.Config
	logger *slog.Logger
	db     *database.DB
	wg     sync.WaitGroup

	middleware   *handlers.Middleware
	authService  *service.AuthService
	limiter      *security.RateLimiter
	authHandler  *handlers.AuthHandler
	childHandler *handlers.ChildHandler
	napHandler   *handlers.NapHandler
	adminHandler *handlers.AdminHandler
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	db, err := database.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	logger.Info("database connection established", "type", cfg.DatabaseType)

	if err := db.RunMigrations(ctx, migrationFiles(cfg)); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	app, err := newApplication(ctx, cfg, logger, db)
	if err != nil {
		return err
	}

	return app.serveHTTP()
}

// newApplication wires repositories, services and handlers around an open database
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *database.DB) (*application, error) {
	tmpl, err := handlers.LoadTemplates(templateFiles(cfg))
	if err != nil {
		return nil, err
	}

	emailService, err := service.NewEmailService(ctx, service.EmailConfig{
		AWSRegion:  cfg.AWSRegion,
		FromEmail:  cfg.SESFromEmail,
		FromName:   cfg.SESFromName,
		AppBaseURL: cfg.AppBaseURL,
		Debug:      cfg.EmailDebug,
	}, logger)
	if err != nil {
		return nil, err
	}

	userRepo := repository.NewUserRepository(db)
	childRepo := repository.NewChildRepository(db)
	napRepo := repository.NewNapRepository(db)
	nightNapRepo := repository.NewNightNapRepository(db)

	authService := service.NewAuthService(userRepo, emailService, cfg.SessionDuration, logger)
	childService := service.NewChildService(childRepo, userRepo, emailService, logger)
	napService := service.NewNapService(napRepo, nightNapRepo, cfg.WeekStart, cfg.Location, logger)
	backupService := service.NewBackupService(db, logger)

	limiter := security.NewRateLimiter(cfg.LoginRateLimit, time.Minute)
	mw := handlers.NewMiddleware(authService, childService, security.NewCSRFGenerator(cfg.SecretKey), limiter)
	oauthProviders := handlers.NewOAuthProviders(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.AppleClientID, cfg.AppleClientSecret)

	return &application{
		config:       cfg,
		logger:       logger,
		db:           db,
		middleware:   mw,
		authService:  authService,
		limiter:      limiter,
		authHandler:  handlers.NewAuthHandler(authService, mw, tmpl, oauthProviders, cfg.OAuthRedirectBaseURL),
		childHandler: handlers.NewChildHandler(childService, mw, tmpl),
		napHandler:   handlers.NewNapHandler(napService, mw, tmpl),
		adminHandler: handlers.NewAdminHandler(authService, backupService, mw, tmpl),
	}, nil
}

// migrationFiles prefers MIGRATIONS_PATH on disk over the embedded files
func migrationFiles(cfg *config.Config) fs.FS {
	if cfg.MigrationsPath != "" {
		return os.DirFS(cfg.MigrationsPath)
	}
	return migrations.Files
}

// templateFiles prefers TEMPLATES_PATH on disk over the embedded templates
func templateFiles(cfg *config.Config) fs.FS {
	if cfg.TemplatesPath != "" {
		return os.DirFS(cfg.TemplatesPath)
	}
	return templates.Files
}

// backgroundTasks runs periodic cleanups until ctx is done
func (app *application) backgroundTasks(ctx context.Context) {
	app.wg.Add(2)

	go func() {
		defer app.wg.Done()
		app.limiter.Cleanup(ctx, _visitorCleanupInterval)
	}()

	go func() {
		defer app.wg.Done()
		ticker := time.NewTicker(_sessionCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := app.authService.CleanupExpiredSessions(ctx); err != nil {
					app.logger.Error("failed to clean up expired sessions", "error", err)
				}
			}
		}
	}()
}

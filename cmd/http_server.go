package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/rhodrigo081/doare.back/internal"
	"github.com/rhodrigo081/doare.back/internal/charge"
	"github.com/rhodrigo081/doare.back/internal/core/events"
	"github.com/rhodrigo081/doare.back/internal/donation"
	donationpostgres "github.com/rhodrigo081/doare.back/internal/donation/postgres"
	"github.com/rhodrigo081/doare.back/internal/notification"
	"github.com/rhodrigo081/doare.back/internal/pixgateway"
	"github.com/rhodrigo081/doare.back/internal/registry"
	"github.com/rhodrigo081/doare.back/internal/transport"
	"github.com/rhodrigo081/doare.back/internal/transport/middleware"
	"github.com/rhodrigo081/doare.back/internal/transport/rest"
	"github.com/rhodrigo081/doare.back/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config              *internal.Config
	DB                  *sqlx.DB
	Router              *chi.Mux
	Logger              *slog.Logger
	ChargeHandler       *charge.Handler
	WebhookHandler      *donation.WebhookHandler
	NotificationHandler *notification.Handler
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	// trace id + context logger for every request
	deps.Router.Use(middleware.RequestID)

	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, deps.ChargeHandler, deps.WebhookHandler, deps.NotificationHandler, deps.Logger)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:        addr,
		Handler:     deps.Router,
		ReadTimeout: deps.Config.Server.ReadTimeout,
		// WriteTimeout stays unset: the notification stream is a long-lived
		// response and a write deadline would sever it.
		IdleTimeout: deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	pixClient, err := pixgateway.NewClient(config.Pix, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pix gateway client: %w", err)
	}
	registryClient := registry.NewClient(config.Registry, lg)

	eventBus := events.NewEventBus(lg)

	hub := notification.NewHub(lg)
	notification.NewEventHandler(hub, lg).RegisterEventHandlers(eventBus)

	donationRepo := donationpostgres.NewDonationRepository(gormDB)
	donationService := donation.NewService(donationRepo, pixClient, registryClient, eventBus, lg)
	chargeService := charge.NewService(pixClient, registryClient, lg)

	baseHandler := transport.NewBaseHandler(lg)

	return &Dependencies{
		Config:              config,
		Logger:              lg,
		DB:                  db,
		Router:              chi.NewRouter(),
		ChargeHandler:       charge.NewHandler(baseHandler, chargeService, lg),
		WebhookHandler:      donation.NewWebhookHandler(baseHandler, donationService, lg),
		NotificationHandler: notification.NewHandler(baseHandler, hub, config.Notification.KeepAliveInterval, lg),
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

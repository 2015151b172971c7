package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/academy/internal/catalog"
	"github.com/MarkoPoloResearchLab/academy/internal/dashboard"
	"github.com/MarkoPoloResearchLab/academy/internal/httpapi"
	"github.com/MarkoPoloResearchLab/academy/internal/logging"
	"github.com/MarkoPoloResearchLab/academy/internal/mq"
	"github.com/MarkoPoloResearchLab/academy/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/academy/internal/store/pgstore"
	"github.com/MarkoPoloResearchLab/academy/internal/stripegateway"
	"github.com/MarkoPoloResearchLab/academy/pkg/admission"
	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	driverPostgres    = "postgres"
	driverSQLite      = "sqlite"
	defaultSQLiteFile = "academy.db"
)

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()

	if err := prepareSchema(ctx, gormDB); err != nil {
		return err
	}

	gormStore := gormstore.New(gormDB)
	var admissionStore admission.Store = gormStore
	if cfg.StoreBackend == storeBackendPgx {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("pgx pool: %w", err)
		}
		defer pool.Close()
		admissionStore = pgstore.New(pool)
	}

	clock := func() time.Time { return time.Now().UTC() }
	options := []admission.ServiceOption{
		admission.WithOperationLogger(logging.NewOperationLogger(logger)),
		admission.WithCheckoutConfig(admission.CheckoutConfig{
			Currency:               cfg.Currency,
			DefaultRedirectBaseURL: cfg.HTTP.AppBaseURL,
		}),
	}
	if cfg.StripeSecretKey != "" {
		gateway, err := stripegateway.New(cfg.StripeSecretKey, stripegateway.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("stripe gateway init: %w", err)
		}
		options = append(options, admission.WithPaymentGateway(gateway))
	} else {
		logger.Warn("stripe secret key not set; checkout and payment verification are disabled")
	}
	if cfg.AMQPURL != "" {
		publisher, err := mq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return fmt.Errorf("amqp publisher init: %w", err)
		}
		defer func() { _ = publisher.Close() }()
		options = append(options, admission.WithEventPublisher(publisher))
	}

	admissions, err := admission.NewService(admissionStore, clock, options...)
	if err != nil {
		return fmt.Errorf("admission service init: %w", err)
	}
	catalogService, err := catalog.NewService(gormStore, clock)
	if err != nil {
		return fmt.Errorf("catalog service init: %w", err)
	}
	dashboards, err := dashboard.NewService(gormStore, clock, logger)
	if err != nil {
		return fmt.Errorf("dashboard service init: %w", err)
	}

	validator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: []byte(cfg.HTTP.SessionSigningKey),
		Issuer:     cfg.HTTP.SessionIssuer,
		CookieName: cfg.HTTP.SessionCookieName,
	})
	if err != nil {
		return fmt.Errorf("session validator init: %w", err)
	}
	handler, err := httpapi.NewHandler(admissions, catalogService, dashboards, logger, cfg.HTTP.RequestTimeout)
	if err != nil {
		return fmt.Errorf("http handler init: %w", err)
	}

	logger.Info("academy api starting",
		zap.String("listen_addr", cfg.HTTP.ListenAddr),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Bool("events_enabled", cfg.AMQPURL != ""),
	)
	return httpapi.Serve(ctx, cfg.HTTP, httpapi.NewRouter(cfg.HTTP, handler, validator, logger), logger)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, err
	}

	var db *gorm.DB
	cfg := &gorm.Config{}
	switch driver {
	case driverPostgres:
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	case driverSQLite:
		db, err = gorm.Open(sqlite.Open(sqlitePath), cfg)
	default:
		return nil, nil, fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return driverPostgres, "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = defaultSQLiteFile
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return driverSQLite, sqlitePath, err
	}
	// Anything else is a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return driverSQLite, sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

func prepareSchema(ctx context.Context, db *gorm.DB) error {
	if err := gormstore.Migrate(ctx, db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

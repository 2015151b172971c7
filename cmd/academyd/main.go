package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/academy/internal/httpapi"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagEnvFile         = "env-file"
	flagListenAddr      = "listen-addr"
	flagDatabaseURL     = "database-url"
	flagStoreBackend    = "store-backend"
	flagAllowedOrigins  = "allowed-origins"
	flagJWTSigningKey   = "jwt-signing-key"
	flagJWTIssuer       = "jwt-issuer"
	flagJWTCookieName   = "jwt-cookie-name"
	flagStripeSecretKey = "stripe-secret-key"
	flagAppBaseURL      = "app-base-url"
	flagCurrency        = "currency"
	flagRequestTimeout  = "request-timeout"
	flagAMQPURL         = "amqp-url"
	flagAMQPExchange    = "amqp-exchange"
	envPrefix           = "ACADEMY"

	defaultEnvFile        = ".env"
	defaultDatabaseURL    = "sqlite:///tmp/academy.db"
	defaultStoreBackend   = storeBackendGorm
	defaultAllowedOrigins = "http://localhost:3000"
	defaultCurrency       = "usd"
	defaultAMQPExchange   = "academy.events"
	defaultRequestTimeout = 10 * time.Second

	storeBackendGorm = "gorm"
	storeBackendPgx  = "pgx"
)

type runtimeConfig struct {
	HTTP            httpapi.Config
	DatabaseURL     string
	StoreBackend    string
	StripeSecretKey string
	Currency        string
	AMQPURL         string
	AMQPExchange    string
}

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "academyd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "academyd",
		Short:         "Course enrollment, live lesson booking, and checkout API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(flagEnvFile, defaultEnvFile, "optional dotenv file loaded before reading the environment")
	flags.String(flagListenAddr, ":8080", "HTTP listen address")
	flags.String(flagDatabaseURL, defaultDatabaseURL, "postgres:// or sqlite:// connection string")
	flags.String(flagStoreBackend, defaultStoreBackend, "admission store backend (gorm or pgx)")
	flags.String(flagAllowedOrigins, defaultAllowedOrigins, "comma-separated list of allowed CORS origins")
	flags.String(flagJWTSigningKey, "", "TAuth JWT signing key")
	flags.String(flagJWTIssuer, "tauth", "expected JWT issuer")
	flags.String(flagJWTCookieName, "app_session", "JWT cookie name")
	flags.String(flagStripeSecretKey, "", "Stripe secret key; checkout is disabled when empty")
	flags.String(flagAppBaseURL, "http://localhost:3000", "default base URL for checkout redirects")
	flags.String(flagCurrency, defaultCurrency, "checkout currency")
	flags.Duration(flagRequestTimeout, defaultRequestTimeout, "per-request timeout")
	flags.String(flagAMQPURL, "", "RabbitMQ URL; admission events are not published when empty")
	flags.String(flagAMQPExchange, defaultAMQPExchange, "topic exchange for admission events")

	cmd.AddCommand(newMigrateCommand(cfg))
	return cmd
}

func newMigrateCommand(cfg *runtimeConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), cfg)
		},
	}
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	envFile, err := cmd.Flags().GetString(flagEnvFile)
	if err != nil {
		return err
	}
	if err := loadEnvFile(envFile); err != nil {
		return err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, flagName := range []string{flagListenAddr, flagDatabaseURL, flagStoreBackend, flagAllowedOrigins, flagJWTSigningKey, flagJWTIssuer, flagJWTCookieName, flagStripeSecretKey, flagAppBaseURL, flagCurrency, flagRequestTimeout, flagAMQPURL, flagAMQPExchange} {
		if err := v.BindPFlag(flagName, cmd.Flags().Lookup(flagName)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = strings.TrimSpace(v.GetString(flagDatabaseURL))
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("%s is required", flagDatabaseURL)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(v.GetString(flagStoreBackend)))
	switch cfg.StoreBackend {
	case storeBackendGorm:
	case storeBackendPgx:
		if driver, _, err := resolveDriver(cfg.DatabaseURL); err != nil || driver != driverPostgres {
			return fmt.Errorf("%s %q requires a postgres database url", flagStoreBackend, storeBackendPgx)
		}
	default:
		return fmt.Errorf("unsupported %s %q", flagStoreBackend, cfg.StoreBackend)
	}
	cfg.StripeSecretKey = strings.TrimSpace(v.GetString(flagStripeSecretKey))
	cfg.Currency = strings.ToLower(strings.TrimSpace(v.GetString(flagCurrency)))
	cfg.AMQPURL = strings.TrimSpace(v.GetString(flagAMQPURL))
	cfg.AMQPExchange = strings.TrimSpace(v.GetString(flagAMQPExchange))
	if cfg.AMQPURL != "" && cfg.AMQPExchange == "" {
		return fmt.Errorf("%s is required when %s is set", flagAMQPExchange, flagAMQPURL)
	}

	cfg.HTTP = httpapi.Config{
		ListenAddr:        strings.TrimSpace(v.GetString(flagListenAddr)),
		AllowedOrigins:    httpapi.ParseAllowedOrigins(v.GetString(flagAllowedOrigins)),
		SessionSigningKey: v.GetString(flagJWTSigningKey),
		SessionIssuer:     strings.TrimSpace(v.GetString(flagJWTIssuer)),
		SessionCookieName: strings.TrimSpace(v.GetString(flagJWTCookieName)),
		AppBaseURL:        strings.TrimSpace(v.GetString(flagAppBaseURL)),
		RequestTimeout:    v.GetDuration(flagRequestTimeout),
	}
	if cmd.Name() == "migrate" {
		return nil
	}
	return cfg.HTTP.Validate()
}

// loadEnvFile loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func runMigrate(ctx context.Context, cfg *runtimeConfig) error {
	gormDB, cleanup, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()
	return prepareSchema(ctx, gormDB)
}

package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Storage backends understood by STORE_BACKEND.
const (
	StoreBackendPostgres = "postgres"
	StoreBackendDynamoDB = "dynamodb"
)

// DynamoDB holds settings for the DynamoDB invoice store.
type DynamoDB struct {
	Table           string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// SMTP holds settings for the mail gateway.
type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress           string
	StoreBackend         string
	DatabaseURI          string
	DynamoDB             DynamoDB
	OrdersServiceAddress string
	InvoiceDir           string
	ExpireMinutes        int
	SweepInterval        time.Duration
	DispatchTimeout      time.Duration
	SMTP                 SMTP
	ShutdownTimeout      time.Duration
	LogLevel             string
}

const (
	defaultRunAddress      = ":8080"
	defaultStoreBackend    = StoreBackendPostgres
	defaultDynamoTable     = "invoices"
	defaultAWSRegion       = "us-east-1"
	defaultInvoiceDir      = "invoices"
	defaultExpireMinutes   = 43200
	defaultSweepInterval   = 24 * time.Hour
	defaultDispatchTimeout = 30 * time.Second
	defaultSMTPPort        = 587
	defaultShutdownTimeout = 10 * time.Second
	defaultLogLevel        = "info"
)

// Load parses server configuration from flags and environment variables.
func Load() (*Config, error) {
	return loadServer(os.Args[1:], os.LookupEnv)
}

// FromEnv parses configuration from environment variables only. It is meant for
// tools that own their command line and only need storage settings.
func FromEnv() (*Config, error) {
	return load(nil, os.LookupEnv)
}

func loadServer(args []string, lookup envLookup) (*Config, error) {
	cfg, err := load(args, lookup)
	if err != nil {
		return nil, err
	}
	if cfg.OrdersServiceAddress == "" {
		return nil, fmt.Errorf("orders service address must be provided")
	}
	return cfg, nil
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:   getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		StoreBackend: getString(lookup, "STORE_BACKEND", defaultStoreBackend),
		DatabaseURI:  getString(lookup, "DATABASE_URI", ""),
		DynamoDB: DynamoDB{
			Table:           getString(lookup, "DYNAMODB_TABLE", defaultDynamoTable),
			Region:          getString(lookup, "AWS_REGION", defaultAWSRegion),
			Endpoint:        getString(lookup, "DYNAMODB_ENDPOINT", ""),
			AccessKeyID:     getString(lookup, "AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getString(lookup, "AWS_SECRET_ACCESS_KEY", ""),
		},
		OrdersServiceAddress: getString(lookup, "ORDERS_SERVICE_ADDRESS", ""),
		InvoiceDir:           getString(lookup, "INVOICE_DIR", defaultInvoiceDir),
		ExpireMinutes:        getInt(lookup, "INVOICE_EXPIRE_MINUTES", defaultExpireMinutes),
		SweepInterval:        getDuration(lookup, "SWEEP_INTERVAL", defaultSweepInterval),
		DispatchTimeout:      getDuration(lookup, "DISPATCH_TIMEOUT", defaultDispatchTimeout),
		SMTP: SMTP{
			Host:     getString(lookup, "SMTP_HOST", ""),
			Port:     getInt(lookup, "SMTP_PORT", defaultSMTPPort),
			Username: getString(lookup, "SMTP_USERNAME", ""),
			Password: getString(lookup, "SMTP_PASSWORD", ""),
			From:     getString(lookup, "SMTP_FROM", ""),
		},
		ShutdownTimeout: getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		LogLevel:        getString(lookup, "LOG_LEVEL", defaultLogLevel),
	}

	fs := flag.NewFlagSet("invoicekeeper", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		sweepIntervalStr   = cfg.SweepInterval.String()
		dispatchTimeoutStr = cfg.DispatchTimeout.String()
		shutdownTimeoutStr = cfg.ShutdownTimeout.String()
	)

	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&cfg.OrdersServiceAddress, "o", cfg.OrdersServiceAddress, "Orders service base URL")
	fs.StringVar(&cfg.StoreBackend, "store", cfg.StoreBackend, "Invoice store backend (postgres|dynamodb)")
	fs.StringVar(&cfg.InvoiceDir, "invoice-dir", cfg.InvoiceDir, "Directory for rendered invoice files")
	fs.IntVar(&cfg.ExpireMinutes, "expire-minutes", cfg.ExpireMinutes, "Default invoice retention in minutes")
	fs.StringVar(&sweepIntervalStr, "sweep-interval", sweepIntervalStr, "Interval between expired invoice sweeps")
	fs.StringVar(&dispatchTimeoutStr, "dispatch-timeout", dispatchTimeoutStr, "Timeout for sending invoice emails")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.SweepInterval, err = time.ParseDuration(sweepIntervalStr); err != nil {
		return nil, fmt.Errorf("invalid sweep interval: %w", err)
	}

	if cfg.DispatchTimeout, err = time.ParseDuration(dispatchTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid dispatch timeout: %w", err)
	}

	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	if passwordFile, ok := lookup("SMTP_PASSWORD_FILE"); ok && passwordFile != "" {
		content, err := os.ReadFile(passwordFile)
		if err != nil {
			return nil, fmt.Errorf("read smtp password file: %w", err)
		}
		cfg.SMTP.Password = string(content)
	}

	if cfg.ExpireMinutes < 0 {
		cfg.ExpireMinutes = defaultExpireMinutes
	}

	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}

	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = defaultDispatchTimeout
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.SMTP.Port <= 0 {
		cfg.SMTP.Port = defaultSMTPPort
	}

	switch cfg.StoreBackend {
	case StoreBackendPostgres:
		if cfg.DatabaseURI == "" {
			return nil, fmt.Errorf("database URI must be provided")
		}
	case StoreBackendDynamoDB:
		if cfg.DynamoDB.Table == "" {
			return nil, fmt.Errorf("dynamodb table must be provided")
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	return cfg, nil
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

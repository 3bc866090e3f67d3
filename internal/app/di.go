// Package app provides the dependency injection container for assembling
// BackyDB's components from a single config.Settings snapshot, in the
// lazy-initialization shape of the teacher's own Container.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/allisson/backydb/internal/config"
	"github.com/allisson/backydb/internal/database"
	apperrors "github.com/allisson/backydb/internal/errors"
	backyhttp "github.com/allisson/backydb/internal/http"
	"github.com/allisson/backydb/internal/jobstore"
	"github.com/allisson/backydb/internal/keyprovider"
	"github.com/allisson/backydb/internal/metrics"
	"github.com/allisson/backydb/internal/schemaengine"
	"github.com/allisson/backydb/internal/storage"
)

// Container holds every BackyDB dependency and builds each on first
// access, so a CLI invocation that only needs, say, the key provider never
// pays for opening a database connection.
type Container struct {
	config *config.Settings

	logger          *slog.Logger
	db              *sql.DB
	txManager       database.TxManager
	schemaAdapter   schemaengine.Adapter
	keyProvider     keyprovider.Provider
	store           storage.Store
	metadataDB      *sql.DB
	jobStore        jobstore.Store
	metricsProvider *metrics.Provider
	businessMetric  metrics.BusinessMetrics
	httpServer      *backyhttp.Server

	mu                  sync.Mutex
	loggerInit          sync.Once
	dbInit              sync.Once
	txManagerInit       sync.Once
	schemaAdapterInit   sync.Once
	keyProviderInit     sync.Once
	storeInit           sync.Once
	jobStoreInit        sync.Once
	metricsInit         sync.Once
	metricsProviderInit sync.Once
	httpServerInit      sync.Once
	initErrors          map[string]error
}

// NewContainer creates a Container over cfg. Nothing is opened yet.
func NewContainer(cfg *config.Settings) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the settings snapshot this container was built with.
func (c *Container) Config() *config.Settings {
	return c.config
}

// Logger returns the configured structured logger.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection, opening it on first access.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, ok := c.initErrors["db"]; ok {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager over DB().
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, ok := c.initErrors["txManager"]; ok {
		return nil, storedErr
	}
	return c.txManager, nil
}

// SchemaAdapter returns the schemaengine.Adapter selected by
// Settings.DBDriver, over DB().
func (c *Container) SchemaAdapter() (schemaengine.Adapter, error) {
	var err error
	c.schemaAdapterInit.Do(func() {
		c.schemaAdapter, err = c.initSchemaAdapter()
		if err != nil {
			c.initErrors["schemaAdapter"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, ok := c.initErrors["schemaAdapter"]; ok {
		return nil, storedErr
	}
	return c.schemaAdapter, nil
}

// KeyProvider returns the Key Provider variant selected by
// Settings.Provider, wrapped in keyprovider.NewRetrying.
func (c *Container) KeyProvider() (keyprovider.Provider, error) {
	var err error
	c.keyProviderInit.Do(func() {
		c.keyProvider, err = c.initKeyProvider()
		if err != nil {
			c.initErrors["keyProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, ok := c.initErrors["keyProvider"]; ok {
		return nil, storedErr
	}
	return c.keyProvider, nil
}

// Store returns the storage.Store variant selected by Settings.StorageType.
func (c *Container) Store() (storage.Store, error) {
	var err error
	c.storeInit.Do(func() {
		c.store, err = c.initStore()
		if err != nil {
			c.initErrors["store"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, ok := c.initErrors["store"]; ok {
		return nil, storedErr
	}
	return c.store, nil
}

// JobStore returns the backy_jobs bookkeeping store, over its own metadata
// connection (Settings.MetadataDBDriver/MetadataDBConnectionString, not
// DB()), or nil when no metadata connection string is set. The admin
// HTTP surface's /jobs endpoints read through it; orchestrator.Backup and
// orchestrator.Restore never depend on it, since the manifest alone remains
// authoritative for a restore.
func (c *Container) JobStore() (jobstore.Store, error) {
	var err error
	c.jobStoreInit.Do(func() {
		c.jobStore, err = c.initJobStore()
		if err != nil {
			c.initErrors["jobStore"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, ok := c.initErrors["jobStore"]; ok {
		return nil, storedErr
	}
	return c.jobStore, nil
}

// Metrics returns the business metrics recorder: a no-op implementation
// when Settings.MetricsEnabled is false, otherwise one backed by the
// OpenTelemetry/Prometheus provider also used by the HTTP server's
// /metrics handler.
func (c *Container) Metrics() (metrics.BusinessMetrics, error) {
	var err error
	c.metricsInit.Do(func() {
		c.businessMetric, err = c.initMetrics()
		if err != nil {
			c.initErrors["metrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, ok := c.initErrors["metrics"]; ok {
		return nil, storedErr
	}
	return c.businessMetric, nil
}

// MetricsProvider returns the OpenTelemetry/Prometheus provider backing
// Metrics(), or nil when Settings.MetricsEnabled is false. The admin HTTP
// server uses it to serve /metrics.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		_, err = c.Metrics()
	})
	if err != nil {
		return nil, err
	}
	return c.metricsProvider, nil
}

// HTTPServer returns the admin/status HTTP server (/healthz, /metrics).
func (c *Container) HTTPServer() (*backyhttp.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, ok := c.initErrors["httpServer"]; ok {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// Shutdown releases every resource this container opened.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("storage close: %w", err))
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}
	if c.metadataDB != nil {
		if err := c.metadataDB.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metadata database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}
	return nil
}

func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}

func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

func (c *Container) initSchemaAdapter() (schemaengine.Adapter, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for schema adapter: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return schemaengine.NewMySQLAdapter(db), nil
	case "postgres":
		return schemaengine.NewPostgresAdapter(db), nil
	default:
		return nil, apperrors.Wrap(apperrors.ErrConfigInvalid, "unsupported database driver: "+c.config.DBDriver)
	}
}

// initKeyProvider selects LocalVault or a gocloud.dev/secrets-backed
// provider per Settings.Provider, and wraps either in RetryingProvider so
// every Wrap/Unwrap retries transient ErrProviderUnavailable failures
// (§4.1).
func (c *Container) initKeyProvider() (keyprovider.Provider, error) {
	switch c.config.Provider {
	case "local", "":
		return keyprovider.NewRetrying(keyprovider.NewLocalVault(c.config.LocalKeyStorePath, c.config.PrivateKeyPassword)), nil
	case "gcp", "aws":
		ctx, cancel := context.WithTimeout(context.Background(), c.config.KMSTimeout)
		defer cancel()
		provider, err := keyprovider.OpenGocloudProvider(ctx, c.config.KMSKeyURI, c.config.KMSTimeout)
		if err != nil {
			return nil, err
		}
		return keyprovider.NewRetrying(provider), nil
	default:
		return nil, apperrors.Wrap(apperrors.ErrConfigInvalid, "unsupported key provider: "+c.config.Provider)
	}
}

func (c *Container) initStore() (storage.Store, error) {
	switch c.config.StorageType {
	case "local", "":
		return storage.OpenLocalStore(c.config.LocalPath)
	case "s3":
		ctx, cancel := context.WithTimeout(context.Background(), c.config.StorageTimeout)
		defer cancel()
		return storage.OpenS3Store(ctx, c.config.AWSS3Bucket, c.config.AWSRegion, "")
	default:
		return nil, apperrors.Wrap(apperrors.ErrConfigInvalid, "unsupported storage type: "+c.config.StorageType)
	}
}

// initMetrics builds the OpenTelemetry/Prometheus provider and the
// BusinessMetrics recorder over it, or a no-op recorder with no provider
// when metrics are disabled.
func (c *Container) initMetrics() (metrics.BusinessMetrics, error) {
	if !c.config.MetricsEnabled {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	c.metricsProvider = provider

	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// initJobStore opens the dedicated metadata database (deliberately distinct
// from the database under backup, see config.Settings.MetadataDBDriver) and
// runs golang-migrate against it before returning the store, the same
// startup ordering as the teacher's RunMigrations-before-serve CLI flow, so
// backy_jobs always exists before anything writes to it. An unconfigured
// MetadataDBConnectionString disables job bookkeeping entirely.
func (c *Container) initJobStore() (jobstore.Store, error) {
	if c.config.MetadataDBConnectionString == "" {
		return nil, nil
	}

	db, err := database.Connect(database.Config{
		Driver:             c.config.MetadataDBDriver,
		ConnectionString:   c.config.MetadataDBConnectionString,
		MaxOpenConnections: 5,
		MaxIdleConnections: 2,
		ConnMaxLifetime:    5 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to metadata database: %w", err)
	}
	c.metadataDB = db

	if err := database.RunMigrations(c.config.MetadataDBDriver, c.config.MetadataDBConnectionString, c.Logger()); err != nil {
		return nil, fmt.Errorf("failed to run job store migrations: %w", err)
	}
	return jobstore.New(db, c.config.MetadataDBDriver), nil
}

func (c *Container) initHTTPServer() (*backyhttp.Server, error) {
	logger := c.Logger()

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	jobStore, err := c.JobStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get job store for http server: %w", err)
	}

	return backyhttp.NewServer(c.config.ServerHost, c.config.ServerPort, logger, provider, c.config.MetricsNamespace, c.config.CORSAllowOrigins, jobStore), nil
}

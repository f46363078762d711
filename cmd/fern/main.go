package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/pkg/access"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/services/placement"
	"github.com/Ramsey-B/fern/pkg/services/sourcer"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fern: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zapLogger, err := newZapLogger(cfg)
	if err != nil {
		return err
	}
	defer zapLogger.Sync() //nolint:errcheck
	logger := zapadapter.NewZapEctoLogger(zapLogger, nil)

	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEnabled {
		shutdown, err := tracing.Setup(ctx, cfg.AppName, cfg.Version, exporters.OTLPConfig{
			Endpoint: cfg.OTLPEndpoint,
			Protocol: cfg.OTLPProtocol,
			Insecure: cfg.OTLPInsecure,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			return err
		}
		defer shutdown(context.Background()) //nolint:errcheck
	}

	checker := health.NewChecker(cfg.Version)
	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)

	dbDependency := startup.NewDatabaseDependency(startup.DatabaseConfig{
		DSN:             cfg.DatabaseDSN(),
		DatabaseName:    cfg.DatabaseName,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
		Migration: database.MigrationConfig{
			MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
			Version:             cfg.DatabaseMigrationVersion,
			Force:               cfg.DatabaseMigrationForce,
			AutoRollback:        cfg.DatabaseMigrationAutoRollback,
		},
	}, logger)
	boot.AddDependency(dbDependency)

	var locker sourcer.Locker
	if cfg.RedisEnabled {
		redisClient := redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		boot.AddDependency(startup.NewRedisDependency(redisClient))
		checker.Register(startup.RedisDependencyName, redisClient, false)
		locker = redis.NewLocker(redisClient, cfg.SourcerLockPrefix, cfg.SourcerLockTTL, cfg.SourcerLockWait)
	}

	var publisher events.Publisher
	if cfg.KafkaEnabled {
		producer := kafka.NewProducer(kafka.ParseConfig(cfg.KafkaBrokers, cfg.KafkaTopic), logger)
		boot.AddDependency(startup.NewKafkaDependency(producer))
		checker.Register(startup.KafkaDependencyName, producer, false)
		publisher = producer
	}

	if err := boot.Start(ctx); err != nil {
		return err
	}
	defer boot.Stop(context.Background()) //nolint:errcheck

	db := database.NewDatabaseInstance(dbDependency.DB(), logger)
	checker.Register(startup.DatabaseDependencyName, health.PingFunc(db.PingContext), true)

	emitter := events.NewEmitter(publisher, logger, events.Options{
		QueueSize:      cfg.EventQueueSize,
		PublishTimeout: cfg.EventPublishTimeout,
	})
	// Runs before boot.Stop so queued events reach kafka before the producer closes.
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.EventDrainTimeout)
		defer cancel()
		if err := emitter.Close(drainCtx); err != nil {
			logger.WithError(err).Warn("event queue not drained before shutdown")
		}
	}()

	srv, err := newServer(cfg, logger, db, locker, emitter, checker)
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}

func newZapLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.InitialFields = map[string]any{"service": cfg.AppName}
	return zapConfig.Build()
}

type server struct {
	echo    *echo.Echo
	cfg     *config.Config
	logger  ectologger.Logger
	checker *health.Checker
}

func newServer(cfg *config.Config, logger ectologger.Logger, db database.DB, locker sourcer.Locker, emitter *events.Emitter, checker *health.Checker) (*server, error) {
	identities := repositories.NewIdentityRepository(db, logger)
	directory := repositories.NewDirectoryRepository(db, logger)

	candidateSourcers := sourcer.NewService(repositories.NewCandidateSourcerRepository(db, logger), directory, locker, emitter, logger)
	companySourcers := sourcer.NewService(repositories.NewCompanySourcerRepository(db, logger), directory, locker, emitter, logger)
	placements := placement.NewService(
		repositories.NewPlacementRepository(db, logger),
		directory,
		candidateSourcers,
		companySourcers,
		db,
		emitter,
		logger,
		placement.Options{DefaultGuaranteeDays: cfg.DefaultGuaranteeDays},
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomiddleware.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	authn := middleware.HeaderAuth()
	if cfg.AuthEnabled {
		oidcAuth, err := middleware.Authentication(context.Background(), logger, cfg.AuthIssuerURL, cfg.AuthClientID)
		if err != nil {
			return nil, err
		}
		authn = oidcAuth
	} else {
		logger.Warn("AUTH_ENABLED=false, caller identity is read from the X-User-ID header")
	}

	public := e.Group("/api/v1")
	protected := e.Group("/api/v1", authn, middleware.RequireAccess(access.NewResolver(identities, logger)))

	handlers.NewPlacementHandler(placements, logger).Register(protected)
	handlers.NewSourcerHandler(companySourcers, logger).Register(protected, public)
	handlers.NewSourcerHandler(candidateSourcers, logger).Register(protected, public)

	return &server{echo: e, cfg: cfg, logger: logger, checker: checker}, nil
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.echo,
		ReadTimeout:       time.Duration(s.cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    s.cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("fern listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.checker.SetReady(true)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.checker.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Info("shutting down http server")
	return httpServer.Shutdown(shutdownCtx)
}

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

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	// The deploy image has no system certificate store
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/Amund211/taskcache"
	"github.com/Amund211/taskcache/executor"
	"github.com/Amund211/taskcache/internal/app"
	"github.com/Amund211/taskcache/internal/config"
	"github.com/Amund211/taskcache/internal/database"
	"github.com/Amund211/taskcache/internal/ports"
	"github.com/Amund211/taskcache/internal/reporting"
	"github.com/Amund211/taskcache/internal/telemetry"
	"github.com/Amund211/taskcache/internal/upstream"
	"github.com/Amund211/taskcache/logging"
	"github.com/Amund211/taskcache/store"
)

const (
	poolWorkers   = 8
	poolQueueSize = 256

	shutdownTimeout = 10 * time.Second
)

func main() {
	instanceID := uuid.New().String()
	logger := slog.New(
		logging.NewTracingLogHandler(slog.NewJSONHandler(os.Stdout, nil)),
	).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	conf, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", conf.NonSensitiveString())

	ctx := logging.AddToContext(context.Background(), logger)

	otelShutdown, err := telemetry.SetupOTelSDK(ctx, "proxyd")
	if err != nil {
		fail("Failed to initialize OpenTelemetry", "error", err.Error())
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
		}
	}()

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(conf)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	var source upstream.Source
	var sink upstream.Sink
	if conf.UpstreamIsPostgres() {
		logger.Info("Initializing database connection")
		db, err := database.NewConfiguredPostgresDatabase(conf)
		if err != nil {
			fail("Failed to initialize database connection", "error", err.Error())
		}

		schemaName := database.GetSchemaName(!conf.IsProduction())
		err = database.NewDatabaseMigrator(db, logger.With("component", "migrator")).Migrate(ctx, schemaName)
		if err != nil {
			fail("Failed to migrate database", "error", err.Error())
		}

		pg := upstream.NewPostgres(db, schemaName)
		source = pg
		sink = pg
		logger.Info("Initialized postgres upstream", "schema", schemaName)
	} else {
		source, err = upstream.NewHTTPSourceOrMock(conf, httpClient)
		if err != nil {
			fail("Failed to initialize HTTP upstream", "error", err.Error())
		}
		logger.Info("Initialized HTTP upstream")
	}

	pool := executor.NewPool(poolWorkers, poolQueueSize)

	lookupStore := store.NewTTLCache[string, *taskcache.Task[[]byte]](conf.CacheTTL())
	cache := taskcache.New(
		pool,
		conf.CacheTTL(),
		taskcache.WithStore[string, []byte](lookupStore),
		taskcache.WithName[string, []byte]("lookups"),
		taskcache.WithBaseContext[string, []byte](ctx),
	)

	allowedOrigins, err := ports.NewDomainSuffixes(conf.AllowedOrigins()...)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	lookup := app.BuildLookup(cache, source)

	mux := http.NewServeMux()

	mux.HandleFunc(
		"OPTIONS /v1/lookup/{key}",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/lookup/{key}",
		ports.MakeLookupHandler(
			lookup,
			allowedOrigins,
			logger.With("port", "lookup"),
			sentryMiddleware,
		),
	)
	mux.HandleFunc(
		"DELETE /v1/lookup/{key}",
		ports.MakeInvalidateKeyHandler(
			cache,
			logger.With("port", "invalidatekey"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"DELETE /v1/cache",
		ports.MakeInvalidateAllHandler(
			cache,
			logger.With("port", "invalidateall"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/cache/stats",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/cache/stats",
		ports.MakeCacheStatsHandler(
			cache,
			allowedOrigins,
			logger.With("port", "cachestats"),
			sentryMiddleware,
		),
	)

	if sink != nil {
		storeEntry := app.BuildStoreEntry(cache, sink, time.Now)
		mux.HandleFunc(
			"PUT /v1/entries/{key}",
			ports.MakeStoreEntryHandler(
				storeEntry,
				logger.With("port", "storeentry"),
				sentryMiddleware,
			),
		)
	}

	server := &http.Server{
		Addr:    conf.ListenAddr(),
		Handler: mux,
	}

	go func() {
		logger.Info("Init complete", "addr", conf.ListenAddr())
		err := server.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			fail("Server error", "error", err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down server cleanly", "error", err.Error())
	}

	// Cancel pending computations before the pool stops accepting work, so
	// the drain below does not wait out slow upstream calls.
	cache.Close()
	pool.Shutdown()

	logger.Info("Server shutdown")
}

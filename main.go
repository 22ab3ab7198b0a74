package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Amund211/thingcache/internal/adapters/cache"
	"github.com/Amund211/thingcache/internal/adapters/database"
	"github.com/Amund211/thingcache/internal/adapters/thingprovider"
	"github.com/Amund211/thingcache/internal/adapters/thingrepository"
	"github.com/Amund211/thingcache/internal/app"
	"github.com/Amund211/thingcache/internal/config"
	"github.com/Amund211/thingcache/internal/domain"
	"github.com/Amund211/thingcache/internal/logging"
	"github.com/Amund211/thingcache/internal/ports"
	"github.com/Amund211/thingcache/internal/reporting"
	"github.com/Amund211/thingcache/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	_ "golang.org/x/crypto/x509roots/fallback"
)

const SERVICE_NAME = "thingcache"

const TRACE_SAMPLE_RATIO = 0.01

func main() {
	instanceID := uuid.New().String()
	logger := slog.New(logging.NewTracingLogHandler(slog.NewJSONHandler(os.Stdout, nil))).With("instanceID", instanceID)
	slog.SetDefault(logger)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	ctx := context.Background()

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	if !config.IsDevelopment() {
		shutdownOTel, err := telemetry.SetupOTelSDK(ctx, SERVICE_NAME, TRACE_SAMPLE_RATIO)
		if err != nil {
			fail("Failed to set up OpenTelemetry", "error", err.Error())
		}
		defer func() {
			err := shutdownOTel(context.Background())
			if err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	var lookup cache.Lookup[domain.Thing]
	if config.ThingsUpstreamURL() != "" {
		httpClient := &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
		lookup = thingprovider.NewHTTP(httpClient, config.ThingsUpstreamURL(), 20, 40)
		logger.Info("Using upstream thing service", "url", config.ThingsUpstreamURL())
	} else {
		logger.Info("Initializing database connection")
		db, err := database.NewPostgresDatabaseFromConfig(config)
		if err != nil {
			fail("Failed to initialize database", "error", err.Error())
		}
		defer db.Close()
		logger.Info("Initialized database connection")

		repositorySchemaName := database.GetSchemaName(!config.IsProduction())

		err = database.NewDatabaseMigrator(db, logger.With("component", "migrator")).Migrate(ctx, repositorySchemaName)
		if err != nil {
			fail("Failed to migrate database", "error", err.Error())
		}

		lookup = thingrepository.NewPostgres(db, repositorySchemaName)
		logger.Info("Initialized thing repository")
	}

	var cacheOptions []cache.Option
	if ttl := config.NegativeCacheTTL(); ttl > 0 {
		cacheOptions = append(cacheOptions, cache.WithNegativeTTL(ttl))
	}

	thingStore := cache.NewTTLCache[domain.Thing](cache.NoExpiry)
	defer thingStore.Stop()

	thingCache := cache.NewReadThrough[domain.Thing](thingStore, lookup, cacheOptions...)
	defer thingCache.Stop()

	getThing := app.BuildGetThingWithCache(thingCache)

	getThingHandler, stopGetThing := ports.MakeGetThingHandler(
		getThing,
		logger.With("port", "getthing"),
		sentryMiddleware,
	)
	defer stopGetThing()

	http.Handle(
		"GET /v1/thing/{id}",
		otelhttp.NewHandler(getThingHandler, "GET /v1/thing/{id}"),
	)

	logger.Info("Init complete")
	err = http.ListenAndServe(fmt.Sprintf(":%s", config.Port()), nil)
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		logger.Error("Server error", "error", err.Error())
	}
}

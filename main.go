package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"genix/auth"
	"genix/config"
	"genix/fallback"
	"genix/models"
	"genix/proxy"
	"genix/routes"
	"genix/routes/handlers"
	svc "genix/services"
	"genix/storage"
	"genix/util"
)

func main() {
	confFile := flag.String("config", ".config.yaml", "path to the yaml config file")
	flag.Parse()

	conf, err := config.Load(*confFile)
	if err != nil {
		util.HandleFatalError(err)
	}
	util.ConfigureLogging(conf.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adapters, err := buildAdapters(ctx, conf.Providers)
	if err != nil {
		util.HandleFatalError(err)
	}
	router := svc.NewRouter(adapters, fallback.NewPool(), nil)

	store, err := openQuotaStore(ctx, conf)
	if err != nil {
		util.HandleFatalErrorAtCallLevel(err, 1)
	}

	var validator *auth.Validator
	if conf.Auth.Enabled() {
		validator, err = auth.NewJWKSValidator(ctx, conf.Auth)
		if err != nil {
			util.HandleFatalError(err)
		}
	} else {
		util.LogWarning("auth.jwks_uri is empty, API requests are not authenticated")
	}

	defaultProvider, _ := models.ParseProvider(conf.Providers.Default, models.ProviderVision)
	images := &handlers.ImageHandlers{
		Router:          router,
		Quota:           svc.NewQuotaService(store, conf.Quota.MaxFreeGenerations),
		DefaultProvider: defaultProvider,
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    conf.Server.BodyLimitMiB * 1024 * 1024,
		ErrorHandler: handlers.ErrorHandler,
	})
	routes.RegisterRoutes(app, images, validator)

	go func() {
		<-ctx.Done()
		util.LogInfo("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx, app, store); err != nil {
			util.HandleError(err)
		}
	}()

	serverAddress := conf.Server.Address()
	util.LogInfo("Server started", logrus.Fields{
		"address":         serverAddress,
		"defaultProvider": defaultProvider,
		"quotaBackend":    conf.Quota.Backend,
	})

	if err := app.Listen(serverAddress); err != nil {
		util.HandleFatalError(err)
	}
}

func buildAdapters(ctx context.Context, conf config.ProvidersConfig) (map[models.Provider]svc.Adapter, error) {
	vision := proxy.NewVisionAdapter(conf.Vision, conf.Timeout, nil)
	text, err := proxy.NewTextToURLAdapter(ctx, conf.TextToURL, conf.Timeout, nil)
	if err != nil {
		return nil, err
	}

	util.LogInfo("Configured image providers", logrus.Fields{
		"vision":      vision.Configured(),
		"text-to-url": text.Configured(),
	})
	return map[models.Provider]svc.Adapter{
		models.ProviderVision:    vision,
		models.ProviderTextToURL: text,
	}, nil
}

// openQuotaStore selects the configured backend and optionally fronts it with redis
func openQuotaStore(ctx context.Context, conf *config.Config) (storage.QuotaStore, error) {
	var store storage.QuotaStore
	switch conf.Quota.Backend {
	case config.QuotaBackendSurreal:
		s, err := storage.NewSurrealQuotaStore(ctx, conf.Surreal)
		if err != nil {
			return nil, err
		}
		store = s
	case config.QuotaBackendPostgres:
		s, err := storage.NewPostgresQuotaStore(ctx, conf.Database.DSN())
		if err != nil {
			return nil, err
		}
		store = s
	default:
		store = storage.NewMemoryQuotaStore()
	}

	if !conf.Redis.Enabled {
		return store, nil
	}

	durations, err := conf.GetRedisConfigDurations()
	if err != nil {
		return nil, err
	}
	client, err := storage.NewRedisClient(ctx, conf.Redis, durations.ConnectTimeout)
	if err != nil {
		util.LogWarning("Failed to initialize Redis quota cache", logrus.Fields{"error": err})
		util.LogWarning("Quota storage will operate without Redis caching")
		return store, nil
	}
	return storage.NewCachedQuotaStore(store, client, durations.QuotaTTL), nil
}

func shutdown(ctx context.Context, app *fiber.App, store storage.QuotaStore) error {
	var result *multierror.Error
	if err := app.ShutdownWithContext(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := store.Close(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront/api/controllers"
	"github.com/angelmondragon/storefront/api/routes"
	"github.com/angelmondragon/storefront/internal/address"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/maintenance"
	"github.com/angelmondragon/storefront/internal/orders"
	"github.com/angelmondragon/storefront/internal/realtime"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/migrate"
	pkgpubsub "github.com/angelmondragon/storefront/pkg/pubsub"
	"github.com/angelmondragon/storefront/pkg/redis"
)

const (
	shutdownTimeout = 15 * time.Second
	readyWait       = 20 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer closeResource(logg, "database", dbClient.Close)

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis)
	requireResource(ctx, logg, "redis", err)
	defer closeResource(logg, "redis", redisClient.Close)

	feed, notifier, psPinger, closeFeed := changeFeed(ctx, cfg, logg)
	defer closeFeed()

	var persister cart.Persister = cart.NewMemoryPersister()
	if cfg.Cart.UsesRedis() {
		persister, err = cart.NewRedisPersister(redisClient, cfg.Cart.Namespace, cfg.Cart.TTL)
		requireResource(ctx, logg, "cart persister", err)
	}
	cartStore, err := cart.NewStore(ctx, cart.StoreParams{
		Persister:      persister,
		Logger:         logg,
		Metrics:        metrics.NewCartMetrics(registry),
		PersistTimeout: cfg.Cart.PersistenceTimeout,
	})
	requireResource(ctx, logg, "cart store", err)

	manager, err := realtime.NewManager(realtime.ManagerParams{
		Feed:             feed,
		Logger:           logg,
		Metrics:          metrics.NewRealtimeMetrics(registry),
		SubscribeTimeout: cfg.Realtime.SubscribeTimeout,
		RefetchTimeout:   cfg.Realtime.RefetchTimeout,
	})
	requireResource(ctx, logg, "realtime manager", err)

	views, err := catalog.NewViewSet(catalog.ViewSetParams{
		Repository: catalog.NewRepository(dbClient.DB()),
		Manager:    manager,
		Logger:     logg,
		Admin:      cfg.FeatureFlags.AdminViews,
	})
	requireResource(ctx, logg, "catalog views", err)

	if err := views.Mount(ctx); err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "some catalog views are running without live updates")
	}
	waitCtx, cancelWait := context.WithTimeout(ctx, readyWait)
	if err := views.WaitReady(waitCtx); err != nil {
		logg.Warn(ctx, "catalog views not ready before serving")
	}
	cancelWait()

	ordersRepo := orders.NewRepository(dbClient.DB())
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Cart:           cartStore,
		Orders:         ordersRepo,
		Notifier:       notifier,
		Logger:         logg,
		Metrics:        metrics.NewCheckoutMetrics(registry),
		Concurrency:    cfg.Checkout.WriteConcurrency,
		WriteTimeout:   cfg.Checkout.WriteTimeout,
		CurrencySymbol: cfg.Checkout.CurrencySymbol,
		StoreName:      cfg.Checkout.StoreName,
	})
	requireResource(ctx, logg, "checkout service", err)

	remountJob, err := maintenance.NewRemountJob(views)
	requireResource(ctx, logg, "remount job", err)
	resaveJob, err := maintenance.NewCartResaveJob(cartStore)
	requireResource(ctx, logg, "cart resave job", err)
	scheduler, err := maintenance.NewScheduler(maintenance.SchedulerParams{
		Logger:   logg,
		Jobs:     []maintenance.Job{remountJob, resaveJob},
		Metrics:  metrics.NewJobMetrics(registry),
		Interval: cfg.Realtime.MaintenanceInterval,
	})
	requireResource(ctx, logg, "maintenance scheduler", err)
	go func() { _ = scheduler.Run(ctx) }()

	addressService, err := address.NewService(address.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "address service", err)

	router := routes.NewRouter(routes.Deps{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		Redis:       redisClient,
		PubSub:      psPinger,
		RateLimiter: redisClient,
		Cart:        cartStore,
		Views:       views,
		Realtime:    manager,
		Checkout:    checkoutService,
		Addresses:   addressService,
		Orders:      ordersRepo,
		Metrics:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(serverCtx, "starting storefront server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logg.Error(serverCtx, "storefront server stopped unexpectedly", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logg.Info(serverCtx, "shutting down")

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "http shutdown failed", err)
	}
	if err := views.Unmount(shutdownCtx); err != nil {
		logg.Warn(logg.WithField(shutdownCtx, "error", err.Error()), "unmounting catalog views failed")
	}
	if err := manager.Close(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "closing realtime manager failed", err)
	}
}

// changeFeed wires the Pub/Sub change feed. In dev a Pub/Sub outage falls
// back to an in-process feed so the storefront still boots.
func changeFeed(ctx context.Context, cfg *config.Config, logg *logger.Logger) (realtime.Feed, realtime.ChangeNotifier, controllers.Pinger, func()) {
	client, err := pkgpubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		if !cfg.App.IsDev() {
			requireResource(ctx, logg, "pubsub", err)
		}
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "pubsub unavailable, using in-process change feed")
		mem := realtime.NewMemoryFeed()
		return mem, mem, nil, func() {}
	}

	feed, err := realtime.NewPubSubFeed(realtime.NewClientSource(client), logg)
	requireResource(ctx, logg, "pubsub feed", err)
	notifier, err := realtime.NewNotifier(client.ChangePublisher())
	requireResource(ctx, logg, "change notifier", err)
	return feed, notifier, client, func() { closeResource(logg, "pubsub", client.Close) }
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

func closeResource(logg *logger.Logger, resource string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), fmt.Sprintf("error closing %s", resource), err)
	}
}

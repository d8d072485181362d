package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront/api/controllers/cart"
	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/internal/address"
	"github.com/angelmondragon/storefront/internal/catalog"
	checkoutsvc "github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/orders"
	"github.com/angelmondragon/storefront/internal/realtime"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/redis"
)

// RateLimiter is the fixed-window counter behind the checkout throttle.
type RateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (redis.Window, error)
}

// SubscriptionLister reports live realtime subscriptions.
type SubscriptionLister interface {
	Active() []realtime.HandleInfo
}

// Deps carries everything the router wires into handlers. Nil pingers are
// skipped by the readiness probe.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB     controllers.Pinger
	Redis  controllers.Pinger
	PubSub controllers.Pinger

	RateLimiter RateLimiter
	Cart        cartcontrollers.Store
	Views       *catalog.ViewSet
	Realtime    SubscriptionLister
	Checkout    checkoutsvc.Service
	Addresses   address.Service
	Orders      orders.Repository
	Metrics     http.Handler
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, map[string]controllers.Pinger{
			"db":     d.DB,
			"redis":  d.Redis,
			"pubsub": d.PubSub,
		}))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	var products cartcontrollers.ProductLookup
	if d.Views != nil {
		products = d.Views
	}
	checkoutPolicy := middleware.NewRateLimitPolicy("checkout", cfg.Checkout.RateLimitWindow, cfg.Checkout.RateLimitMax)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/products", controllers.CatalogProducts(d.Views, logg))
			r.Get("/products/{productId}", controllers.CatalogProduct(d.Views, logg))
			r.Get("/collections", controllers.CatalogCollections(d.Views, logg))
			r.Get("/banners", controllers.CatalogBanners(d.Views, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(d.Cart, logg))
			r.Delete("/", cartcontrollers.CartClear(d.Cart, logg))
			r.Post("/items", cartcontrollers.CartAddItem(d.Cart, products, logg))
			r.Patch("/items", cartcontrollers.CartUpdateItem(d.Cart, logg))
			r.Delete("/items", cartcontrollers.CartRemoveItem(d.Cart, logg))
		})

		r.Get("/realtime/subscriptions", controllers.RealtimeStatus(d.Realtime))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser(logg))
			r.With(middleware.RateLimit(checkoutPolicy, d.RateLimiter, logg)).
				Post("/checkout", controllers.Checkout(d.Checkout, d.Cart, d.Addresses, logg))
			r.Get("/orders", controllers.OrdersList(d.Orders, logg))
			r.Get("/orders/{orderId}", controllers.OrderDetail(d.Orders, logg))
			r.Get("/addresses", controllers.AddressList(d.Addresses, logg))
		})
	})

	if cfg.FeatureFlags.AdminViews {
		r.Route("/api/admin/v1", func(r chi.Router) {
			r.Get("/orders", controllers.AdminOrders(d.Views, logg))
			r.Get("/signups", controllers.AdminSignups(d.Views, logg))
		})
	}

	return r
}

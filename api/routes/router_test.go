package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type countingLimiter struct{ calls int }

func (c *countingLimiter) FixedWindowAllow(_ context.Context, _ string, _ int64, window time.Duration) (redis.Window, error) {
	c.calls++
	return redis.Window{Count: int64(c.calls), RetryAfter: window}, nil
}

func testConfig(admin bool) *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		Checkout: config.CheckoutConfig{
			RateLimitWindow: time.Minute,
			RateLimitMax:    1,
		},
		FeatureFlags: config.FeatureFlagsConfig{AdminViews: admin},
	}
}

func newCart(t *testing.T) *cart.Store {
	t.Helper()
	store, err := cart.NewStore(context.Background(), cart.StoreParams{
		Persister: cart.NewMemoryPersister(),
		Logger:    logger.Nop(),
	})
	require.NoError(t, err)
	return store
}

func TestHealthRoutes(t *testing.T) {
	router := NewRouter(Deps{Config: testConfig(false), Logger: logger.Nop(), DB: stubPinger{}, Redis: stubPinger{}})

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-Id"), path)
	}
}

func TestCartRoutesDoNotRequireUser(t *testing.T) {
	store := newCart(t)
	_, err := store.AddItem(context.Background(), cart.Candidate{ProductID: "p1", UnitPrice: decimal.NewFromInt(10)})
	require.NoError(t, err)

	router := NewRouter(Deps{Config: testConfig(false), Logger: logger.Nop(), Cart: store})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_items":1`)
}

func TestCartAddWithoutCatalogIsInternalError(t *testing.T) {
	router := NewRouter(Deps{Config: testConfig(false), Logger: logger.Nop(), Cart: newCart(t)})
	rec := httptest.NewRecorder()
	body := `{"product_id":"` + uuid.NewString() + `"}`
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCheckoutRequiresUser(t *testing.T) {
	router := NewRouter(Deps{Config: testConfig(false), Logger: logger.Nop(), Cart: newCart(t)})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), middleware.UserIDHeader)
}

func TestCheckoutIsRateLimited(t *testing.T) {
	limiter := &countingLimiter{}
	router := NewRouter(Deps{Config: testConfig(false), Logger: logger.Nop(), Cart: newCart(t), RateLimiter: limiter})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
	req.Header.Set(middleware.UserIDHeader, uuid.NewString())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1, limiter.calls)
}

func TestAdminRoutesFollowFeatureFlag(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(Deps{Config: testConfig(false), Logger: logger.Nop()}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	NewRouter(Deps{Config: testConfig(true), Logger: logger.Nop()}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code, "route is mounted but no catalog is wired")
}

func TestMetricsRouteMountedWhenProvided(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	rec := httptest.NewRecorder()
	NewRouter(Deps{Config: testConfig(false), Logger: logger.Nop(), Metrics: metrics}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "# metrics", rec.Body.String())
}

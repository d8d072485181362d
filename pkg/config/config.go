package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Cart         CartConfig
	Realtime     RealtimeConfig
	Checkout     CheckoutConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Cart.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"require"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQuery logs statements slower than this at warn; zero disables it.
	SlowQuery time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"4"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"2s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"2s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"STOREFRONT_GCP_PROJECT_ID" required:"true"`
}

// PubSubConfig names one subscription per catalog table. Every subscription is
// attached to the shared change topic with a filter on the table attribute.
type PubSubConfig struct {
	ChangeTopic              string `envconfig:"STOREFRONT_PUBSUB_CHANGE_TOPIC" required:"true"`
	ProductsSubscription     string `envconfig:"STOREFRONT_PUBSUB_PRODUCTS_SUBSCRIPTION" required:"true"`
	CollectionsSubscription  string `envconfig:"STOREFRONT_PUBSUB_COLLECTIONS_SUBSCRIPTION" required:"true"`
	OrdersSubscription       string `envconfig:"STOREFRONT_PUBSUB_ORDERS_SUBSCRIPTION"`
	BannersSubscription      string `envconfig:"STOREFRONT_PUBSUB_BANNERS_SUBSCRIPTION"`
	SignupsSubscription      string `envconfig:"STOREFRONT_PUBSUB_SIGNUPS_SUBSCRIPTION"`
	MaxOutstandingMessages   int    `envconfig:"STOREFRONT_PUBSUB_MAX_OUTSTANDING" default:"16"`
	NumGoroutinesPerListener int    `envconfig:"STOREFRONT_PUBSUB_GOROUTINES" default:"1"`
}

type CartConfig struct {
	Namespace          string        `envconfig:"STOREFRONT_CART_NAMESPACE" default:"storefront-cart"`
	Persistence        string        `envconfig:"STOREFRONT_CART_PERSISTENCE" default:"redis"`
	TTL                time.Duration `envconfig:"STOREFRONT_CART_TTL" default:"720h"`
	PersistenceTimeout time.Duration `envconfig:"STOREFRONT_CART_PERSISTENCE_TIMEOUT" default:"2s"`
}

func (c CartConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Persistence)) {
	case CartPersistenceRedis, CartPersistenceMemory:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvCartPersistence, CartPersistenceRedis, CartPersistenceMemory)
	}
	if strings.TrimSpace(c.Namespace) == "" {
		return fmt.Errorf("%s is required", EnvCartNamespace)
	}
	return nil
}

// UsesRedis reports whether the cart is persisted to redis.
func (c CartConfig) UsesRedis() bool {
	return strings.EqualFold(strings.TrimSpace(c.Persistence), CartPersistenceRedis)
}

type RealtimeConfig struct {
	SubscribeTimeout time.Duration `envconfig:"STOREFRONT_REALTIME_SUBSCRIBE_TIMEOUT" default:"10s"`
	RefetchTimeout   time.Duration `envconfig:"STOREFRONT_REALTIME_REFETCH_TIMEOUT" default:"15s"`
	// MaintenanceInterval paces view remounts and cart resaves.
	MaintenanceInterval time.Duration `envconfig:"STOREFRONT_MAINTENANCE_INTERVAL" default:"1m"`
}

type CheckoutConfig struct {
	WriteConcurrency int           `envconfig:"STOREFRONT_CHECKOUT_WRITE_CONCURRENCY" default:"4"`
	WriteTimeout     time.Duration `envconfig:"STOREFRONT_CHECKOUT_WRITE_TIMEOUT" default:"10s"`
	CurrencySymbol   string        `envconfig:"STOREFRONT_CHECKOUT_CURRENCY_SYMBOL" default:"₹"`
	StoreName        string        `envconfig:"STOREFRONT_CHECKOUT_STORE_NAME" default:"Storefront"`
	RateLimitWindow  time.Duration `envconfig:"STOREFRONT_CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitMax     int           `envconfig:"STOREFRONT_CHECKOUT_RATE_LIMIT_MAX" default:"5"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
	AdminViews  bool `envconfig:"STOREFRONT_ADMIN_VIEWS" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

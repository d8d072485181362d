package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	CartPersistenceRedis  = "redis"
	CartPersistenceMemory = "memory"
)

const (
	EnvAppEnv = "STOREFRONT_APP_ENV"
	EnvPort   = "STOREFRONT_APP_PORT"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBPort = "STOREFRONT_DB_PORT"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBPass = "STOREFRONT_DB_PASSWORD"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvGCPProjectID = "STOREFRONT_GCP_PROJECT_ID"

	EnvPubSubChangeTopic      = "STOREFRONT_PUBSUB_CHANGE_TOPIC"
	EnvPubSubProductsSub      = "STOREFRONT_PUBSUB_PRODUCTS_SUBSCRIPTION"
	EnvPubSubCollectionsSub   = "STOREFRONT_PUBSUB_COLLECTIONS_SUBSCRIPTION"
	EnvPubSubOrdersSub        = "STOREFRONT_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvPubSubBannersSub       = "STOREFRONT_PUBSUB_BANNERS_SUBSCRIPTION"
	EnvPubSubSignupsSub       = "STOREFRONT_PUBSUB_SIGNUPS_SUBSCRIPTION"
	EnvCartNamespace          = "STOREFRONT_CART_NAMESPACE"
	EnvCartPersistence        = "STOREFRONT_CART_PERSISTENCE"
	EnvCheckoutConcurrency    = "STOREFRONT_CHECKOUT_WRITE_CONCURRENCY"
	EnvCheckoutCurrencySymbol = "STOREFRONT_CHECKOUT_CURRENCY_SYMBOL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

package config

// EnvPrefix scopes envconfig lookups; every field also declares its full variable name.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv          = "STOREFRONT_APP_ENV"
	EnvPort            = "STOREFRONT_APP_PORT"
	EnvDBDSN           = "STOREFRONT_DB_DSN"
	EnvDBHost          = "STOREFRONT_DB_HOST"
	EnvDBUser          = "STOREFRONT_DB_USER"
	EnvDBName          = "STOREFRONT_DB_NAME"
	EnvRedisURL        = "STOREFRONT_REDIS_URL"
	EnvJWTSecret       = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer       = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins      = "STOREFRONT_JWT_EXPIRATION_MINUTES"
	EnvShippingFee     = "STOREFRONT_CHECKOUT_SHIPPING_FEE"
	EnvDiscountPercent = "STOREFRONT_CHECKOUT_DISCOUNT_PERCENT"
	EnvTaxRate         = "STOREFRONT_CHECKOUT_TAX_RATE"
	EnvStrictStock     = "STOREFRONT_CHECKOUT_STRICT_STOCK"
	EnvCartTTL         = "STOREFRONT_CART_TTL"
	EnvCORSOrigins     = "STOREFRONT_CORS_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

package config

const EnvPrefix = "PARTSDESK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "PARTSDESK_APP_ENV"
	EnvPort     = "PARTSDESK_APP_PORT"
	EnvLogLevel = "PARTSDESK_LOG_LEVEL"

	EnvDBDSN    = "PARTSDESK_DB_DSN"
	EnvDBHost   = "PARTSDESK_DB_HOST"
	EnvDBUser   = "PARTSDESK_DB_USER"
	EnvDBName   = "PARTSDESK_DB_NAME"
	EnvDBDriver = "PARTSDESK_DB_DRIVER"

	EnvRedisURL = "PARTSDESK_REDIS_URL"

	EnvJWTSecret  = "PARTSDESK_JWT_SECRET"
	EnvJWTIssuer  = "PARTSDESK_JWT_ISSUER"
	EnvJWTExpMins = "PARTSDESK_JWT_EXPIRATION_MINUTES"

	EnvUseSQLite   = "PARTSDESK_USE_SQLITE"
	EnvAutoMigrate = "PARTSDESK_AUTO_MIGRATE"
	EnvCartTTL     = "PARTSDESK_CART_TTL"
)

// DefaultSQLiteDSN backs local runs with the sqlite feature flag and no DSN.
const DefaultSQLiteDSN = "file:partsdesk.db?cache=shared&_foreign_keys=on"

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

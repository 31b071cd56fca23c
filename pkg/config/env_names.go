package config

// EnvPrefix is passed to envconfig; tags carry the full names so the prefix
// stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "NEXKART_APP_ENV"
	EnvPort     = "NEXKART_APP_PORT"
	EnvDBDSN    = "NEXKART_DB_DSN"
	EnvDBHost   = "NEXKART_DB_HOST"
	EnvDBUser   = "NEXKART_DB_USER"
	EnvDBName   = "NEXKART_DB_NAME"
	EnvRedisURL = "NEXKART_REDIS_URL"

	EnvJWTSecret = "NEXKART_JWT_SECRET"
	EnvJWTIssuer = "NEXKART_JWT_ISSUER"

	EnvCourierAPIKey    = "NEXKART_COURIER_API_KEY"
	EnvCourierSecretKey = "NEXKART_COURIER_SECRET_KEY"
	EnvWebhookToken     = "NEXKART_COURIER_WEBHOOK_TOKEN"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

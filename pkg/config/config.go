package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	Service ServiceConfig
	DB      DBConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Courier CourierConfig
	Rewards RewardsConfig
	Sync    SyncConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"NEXKART_APP_ENV" required:"true"`
	Port         string `envconfig:"NEXKART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"NEXKART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"NEXKART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"NEXKART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"NEXKART_DB_DSN"`
	Driver string `envconfig:"NEXKART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"NEXKART_DB_HOST"`
	LegacyPort     int    `envconfig:"NEXKART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"NEXKART_DB_USER"`
	LegacyPassword string `envconfig:"NEXKART_DB_PASSWORD"`
	LegacyName     string `envconfig:"NEXKART_DB_NAME"`
	LegacySSLMode  string `envconfig:"NEXKART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NEXKART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NEXKART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NEXKART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NEXKART_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"NEXKART_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NEXKART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"NEXKART_REDIS_ADDR"`
	Password     string        `envconfig:"NEXKART_REDIS_PASSWORD"`
	DB           int           `envconfig:"NEXKART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NEXKART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NEXKART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NEXKART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NEXKART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NEXKART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"NEXKART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"NEXKART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"NEXKART_JWT_EXPIRATION_MINUTES" default:"60"`
}

// CourierConfig carries the carrier integration credentials. BaseURL/APIKey/
// SecretKey gate outbound polling; WebhookToken guards the inbound callback.
// An empty WebhookToken leaves the endpoint open (a warning is logged at
// startup); missing poll credentials are a hard error at poll time.
type CourierConfig struct {
	BaseURL        string        `envconfig:"NEXKART_COURIER_BASE_URL" default:"https://portal.packzy.com/api/v1"`
	APIKey         string        `envconfig:"NEXKART_COURIER_API_KEY"`
	SecretKey      string        `envconfig:"NEXKART_COURIER_SECRET_KEY"`
	WebhookToken   string        `envconfig:"NEXKART_COURIER_WEBHOOK_TOKEN"`
	RequestTimeout time.Duration `envconfig:"NEXKART_COURIER_REQUEST_TIMEOUT" default:"15s"`
}

// Configured reports whether outbound polling credentials are present.
func (c CourierConfig) Configured() bool {
	return c.APIKey != "" && c.SecretKey != ""
}

// RewardsConfig holds fallbacks applied when no referral campaign row exists.
type RewardsConfig struct {
	DefaultCampaignName  string        `envconfig:"NEXKART_REWARDS_DEFAULT_CAMPAIGN" default:"Default Referral Campaign"`
	FallbackWalletAmount string        `envconfig:"NEXKART_REWARDS_FALLBACK_WALLET_AMOUNT" default:"100.00"`
	WebhookDedupTTL      time.Duration `envconfig:"NEXKART_WEBHOOK_DEDUP_TTL" default:"72h"`
}

type SyncConfig struct {
	Interval  time.Duration `envconfig:"NEXKART_COURIER_SYNC_INTERVAL" default:"30m"`
	BatchSize int           `envconfig:"NEXKART_COURIER_SYNC_BATCH_SIZE" default:"200"`
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

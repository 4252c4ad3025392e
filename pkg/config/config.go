package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "TEAHOUSE"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "TEAHOUSE_APP_ENV"
	EnvDBDSN  = "TEAHOUSE_DB_DSN"
	EnvDBHost = "TEAHOUSE_DB_HOST"
	EnvDBUser = "TEAHOUSE_DB_USER"
	EnvDBName = "TEAHOUSE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

// Config aggregates every subsystem's settings.
type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Pricing       PricingConfig
	Cart          CartConfig
	Cron          CronConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
}

// Load parses the environment into a Config.
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
	Env          string `envconfig:"TEAHOUSE_APP_ENV" required:"true"`
	Port         string `envconfig:"TEAHOUSE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"TEAHOUSE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TEAHOUSE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TEAHOUSE_DB_DSN"`
	Driver string `envconfig:"TEAHOUSE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TEAHOUSE_DB_HOST"`
	LegacyPort     int    `envconfig:"TEAHOUSE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TEAHOUSE_DB_USER"`
	LegacyPassword string `envconfig:"TEAHOUSE_DB_PASSWORD"`
	LegacyName     string `envconfig:"TEAHOUSE_DB_NAME"`
	LegacySSLMode  string `envconfig:"TEAHOUSE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TEAHOUSE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TEAHOUSE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TEAHOUSE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TEAHOUSE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"TEAHOUSE_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TEAHOUSE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TEAHOUSE_REDIS_ADDR"`
	Password     string        `envconfig:"TEAHOUSE_REDIS_PASSWORD"`
	DB           int           `envconfig:"TEAHOUSE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TEAHOUSE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TEAHOUSE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TEAHOUSE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TEAHOUSE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TEAHOUSE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"TEAHOUSE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"TEAHOUSE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"TEAHOUSE_JWT_EXPIRATION_MINUTES" default:"30"`
	RefreshTokenTTLMinutes int    `envconfig:"TEAHOUSE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TEAHOUSE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TEAHOUSE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TEAHOUSE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TEAHOUSE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TEAHOUSE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"TEAHOUSE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"TEAHOUSE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"TEAHOUSE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"TEAHOUSE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"TEAHOUSE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"TEAHOUSE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// PricingConfig carries the storefront-wide pricing defaults applied to carts.
type PricingConfig struct {
	DefaultTaxRatePercent float64 `envconfig:"TEAHOUSE_DEFAULT_TAX_RATE_PERCENT" default:"0"`
	DeliveryFeeCents      int     `envconfig:"TEAHOUSE_DELIVERY_FEE_CENTS" default:"0"`
}

// CartConfig controls cart retention.
type CartConfig struct {
	TTL time.Duration `envconfig:"TEAHOUSE_CART_TTL" default:"168h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TEAHOUSE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TEAHOUSE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TEAHOUSE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"TEAHOUSE_PUBSUB_ORDERS_TOPIC" default:"teahouse-order-events"`
	OrdersSubscription string `envconfig:"TEAHOUSE_PUBSUB_ORDERS_SUBSCRIPTION"`
}

// CronConfig controls the maintenance worker.
type CronConfig struct {
	Interval                  time.Duration `envconfig:"TEAHOUSE_CRON_INTERVAL" default:"1h"`
	LockTTL                   time.Duration `envconfig:"TEAHOUSE_CRON_LOCK_TTL" default:"55m"`
	MetricsPort               string        `envconfig:"TEAHOUSE_CRON_METRICS_PORT" default:"9090"`
	NotificationRetentionDays int           `envconfig:"TEAHOUSE_NOTIFICATION_RETENTION_DAYS" default:"30"`
	OutboxRetentionDays       int           `envconfig:"TEAHOUSE_OUTBOX_RETENTION_DAYS" default:"30"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TEAHOUSE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TEAHOUSE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TEAHOUSE_OUTBOX_MAX_ATTEMPTS" default:"10"`
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

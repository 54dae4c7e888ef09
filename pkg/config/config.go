package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv      = "SCRIBEFLOW_APP_ENV"
	EnvPort        = "SCRIBEFLOW_APP_PORT"
	EnvDBDSN       = "SCRIBEFLOW_DB_DSN"
	EnvDBHost      = "SCRIBEFLOW_DB_HOST"
	EnvDBUser      = "SCRIBEFLOW_DB_USER"
	EnvDBName      = "SCRIBEFLOW_DB_NAME"
	EnvRedisURL    = "SCRIBEFLOW_REDIS_URL"
	EnvJWTSecret   = "SCRIBEFLOW_AUTH_JWT_SECRET"
	EnvTokenLimits = "SCRIBEFLOW_POLAR_TOKEN_LIMITS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Polar        PolarConfig
	Entitlements EntitlementsConfig
	Postmark     PostmarkConfig
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
	Env          string `envconfig:"SCRIBEFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"SCRIBEFLOW_APP_PORT" required:"true"`
	SiteURL      string `envconfig:"SCRIBEFLOW_SITE_URL"`
	LogLevel     string `envconfig:"SCRIBEFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SCRIBEFLOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SCRIBEFLOW_DB_DSN"`
	Driver string `envconfig:"SCRIBEFLOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SCRIBEFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"SCRIBEFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SCRIBEFLOW_DB_USER"`
	LegacyPassword string `envconfig:"SCRIBEFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"SCRIBEFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"SCRIBEFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SCRIBEFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SCRIBEFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SCRIBEFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SCRIBEFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SCRIBEFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SCRIBEFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"SCRIBEFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"SCRIBEFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SCRIBEFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SCRIBEFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SCRIBEFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SCRIBEFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SCRIBEFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// AuthConfig verifies access tokens minted by the hosted auth provider.
type AuthConfig struct {
	JWTSecret string `envconfig:"SCRIBEFLOW_AUTH_JWT_SECRET" required:"true"`
	JWTIssuer string `envconfig:"SCRIBEFLOW_AUTH_JWT_ISSUER" default:"supabase"`
}

type RateLimitConfig struct {
	PublicWindow     time.Duration `envconfig:"SCRIBEFLOW_RATE_LIMIT_PUBLIC_WINDOW" default:"1m"`
	PublicIPLimit    int           `envconfig:"SCRIBEFLOW_RATE_LIMIT_PUBLIC_IP_LIMIT" default:"60"`
	PublicEmailLimit int           `envconfig:"SCRIBEFLOW_RATE_LIMIT_PUBLIC_EMAIL_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SCRIBEFLOW_AUTO_MIGRATE" default:"false"`
}

// PolarConfig carries the billing provider credentials and checkout URLs.
type PolarConfig struct {
	AccessToken   string `envconfig:"SCRIBEFLOW_POLAR_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"SCRIBEFLOW_POLAR_WEBHOOK_SECRET"`
	Env           string `envconfig:"SCRIBEFLOW_POLAR_ENV" default:"sandbox"`
	SuccessURL    string `envconfig:"SCRIBEFLOW_POLAR_SUCCESS_URL"`
}

// Environment returns the normalized Polar environment (sandbox/production).
func (p PolarConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

// EntitlementsConfig maps billing product ids to AI token allowances.
type EntitlementsConfig struct {
	TokenLimits       map[string]int64 `envconfig:"SCRIBEFLOW_POLAR_TOKEN_LIMITS"`
	DefaultTokenLimit int64            `envconfig:"SCRIBEFLOW_DEFAULT_TOKEN_LIMIT" default:"500"`
}

// LimitFor resolves the token limit for a product, falling back to the default tier.
func (e EntitlementsConfig) LimitFor(productID string) int64 {
	if limit, ok := e.TokenLimits[productID]; ok && limit > 0 {
		return limit
	}
	return e.DefaultTokenLimit
}

type PostmarkConfig struct {
	ServerToken string `envconfig:"SCRIBEFLOW_POSTMARK_SERVER_TOKEN"`
	FromEmail   string `envconfig:"SCRIBEFLOW_POSTMARK_FROM_EMAIL"`
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

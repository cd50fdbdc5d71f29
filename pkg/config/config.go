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
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Worker       WorkerConfig
	WMS          WMSConfig
	Reservation  ReservationConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.WMS.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"INVENTORY_APP_ENV" required:"true"`
	Port         string `envconfig:"INVENTORY_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"INVENTORY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"INVENTORY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"INVENTORY_DB_DSN"`
	Driver string `envconfig:"INVENTORY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"INVENTORY_DB_HOST"`
	LegacyPort     int    `envconfig:"INVENTORY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"INVENTORY_DB_USER"`
	LegacyPassword string `envconfig:"INVENTORY_DB_PASSWORD"`
	LegacyName     string `envconfig:"INVENTORY_DB_NAME"`
	LegacySSLMode  string `envconfig:"INVENTORY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"INVENTORY_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"INVENTORY_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"INVENTORY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"INVENTORY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	ConnectTimeout  time.Duration `envconfig:"INVENTORY_DB_CONNECT_TIMEOUT" default:"5s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"INVENTORY_REDIS_URL"`
	Address      string        `envconfig:"INVENTORY_REDIS_ADDR"`
	Password     string        `envconfig:"INVENTORY_REDIS_PASSWORD"`
	DB           int           `envconfig:"INVENTORY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"INVENTORY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"INVENTORY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"INVENTORY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"INVENTORY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"INVENTORY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"INVENTORY_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"INVENTORY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"INVENTORY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic          string `envconfig:"INVENTORY_PUBSUB_DOMAIN_TOPIC" default:"inventory-domain-events"`
	CommandTopic         string `envconfig:"INVENTORY_PUBSUB_COMMAND_TOPIC" default:"inventory-wms-commands"`
	DeadLetterTopic      string `envconfig:"INVENTORY_PUBSUB_DEAD_LETTER_TOPIC" default:"inventory-dead-letter"`
	OutboundSubscription string `envconfig:"INVENTORY_PUBSUB_OUTBOUND_SUBSCRIPTION" default:"inventory-wms-outbound"`
	SyncSubscription     string `envconfig:"INVENTORY_PUBSUB_SYNC_SUBSCRIPTION" default:"inventory-wms-sync"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"INVENTORY_OUTBOX_BATCH_SIZE" default:"100"`
	PollIntervalMS int `envconfig:"INVENTORY_OUTBOX_POLL_MS" default:"200"`
	MaxAttempts    int `envconfig:"INVENTORY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type WorkerConfig struct {
	OutboundPrefetch int `envconfig:"INVENTORY_WORKER_OUTBOUND_PREFETCH" default:"10"`
	SyncPrefetch     int `envconfig:"INVENTORY_WORKER_SYNC_PREFETCH" default:"5"`
}

type WMSConfig struct {
	Mode            string        `envconfig:"INVENTORY_WMS_MODE" default:"mock"`
	BaseURL         string        `envconfig:"INVENTORY_WMS_BASE_URL"`
	APIKey          string        `envconfig:"INVENTORY_WMS_API_KEY"`
	APIKeyHeader    string        `envconfig:"INVENTORY_WMS_API_KEY_HEADER" default:"X-API-Key"`
	Timeout         time.Duration `envconfig:"INVENTORY_WMS_TIMEOUT" default:"30s"`
	RateLimitPerMin int           `envconfig:"INVENTORY_WMS_RATE_LIMIT_PER_MIN" default:"60"`
}

func (w WMSConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(w.Mode)) {
	case WMSModeMock:
		return nil
	case WMSModeHTTP:
		if strings.TrimSpace(w.BaseURL) == "" {
			return fmt.Errorf("%s is required when wms mode is http", EnvWMSBaseURL)
		}
		if strings.TrimSpace(w.APIKey) == "" {
			return fmt.Errorf("%s is required when wms mode is http", EnvWMSAPIKey)
		}
		return nil
	default:
		return fmt.Errorf("invalid wms mode %q (expected mock or http)", w.Mode)
	}
}

// IsMock reports whether the mock WMS client should be used.
func (w WMSConfig) IsMock() bool {
	return strings.EqualFold(strings.TrimSpace(w.Mode), WMSModeMock)
}

type ReservationConfig struct {
	TTL time.Duration `envconfig:"INVENTORY_RESERVATION_TTL" default:"0"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"INVENTORY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"INVENTORY_AUTO_MIGRATE" default:"false"`
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

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix  = ""
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	Orders        OrdersConfig
	Routing       RoutingConfig
	Bidding       BiddingConfig
	DeliveryToken DeliveryTokenConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Bidding.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SURTIDO_APP_ENV" required:"true"`
	Port         string `envconfig:"SURTIDO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SURTIDO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SURTIDO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SURTIDO_DB_DSN"`
	Driver string `envconfig:"SURTIDO_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SURTIDO_DB_HOST"`
	Port     int    `envconfig:"SURTIDO_DB_PORT" default:"5432"`
	User     string `envconfig:"SURTIDO_DB_USER"`
	Password string `envconfig:"SURTIDO_DB_PASSWORD"`
	Name     string `envconfig:"SURTIDO_DB_NAME"`
	SSLMode  string `envconfig:"SURTIDO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SURTIDO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SURTIDO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SURTIDO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SURTIDO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("database DSN or host/user/name required")
	}
	d.DSN = fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"SURTIDO_REDIS_URL"`
	Address      string        `envconfig:"SURTIDO_REDIS_ADDR"`
	Password     string        `envconfig:"SURTIDO_REDIS_PASSWORD"`
	DB           int           `envconfig:"SURTIDO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SURTIDO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SURTIDO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SURTIDO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SURTIDO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SURTIDO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SURTIDO_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"SURTIDO_PUBSUB_DOMAIN_TOPIC" default:"surtido-domain-events"`
	DomainSubscription string `envconfig:"SURTIDO_PUBSUB_DOMAIN_SUBSCRIPTION" default:"surtido-notify-worker"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SURTIDO_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SURTIDO_OUTBOX_POLL_INTERVAL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SURTIDO_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"SURTIDO_OUTBOX_RETENTION_DAYS" default:"14"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SURTIDO_CRON_INTERVAL" default:"1m"`
	LockKey  string        `envconfig:"SURTIDO_CRON_LOCK_KEY" default:"surtido:cron:leader"`
	LockTTL  time.Duration `envconfig:"SURTIDO_CRON_LOCK_TTL" default:"5m"`
}

type OrdersConfig struct {
	TTL time.Duration `envconfig:"SURTIDO_ORDER_TTL" default:"24h"`
}

type RoutingConfig struct {
	ResponseWindow time.Duration `envconfig:"SURTIDO_ROUTING_RESPONSE_WINDOW" default:"30m"`
}

// BiddingConfig carries the canonical offer-scoring weights, in percent.
// The three weights must sum to 100 so scores stay comparable across orders.
type BiddingConfig struct {
	PriceWeightPct       int `envconfig:"SURTIDO_BIDDING_PRICE_WEIGHT_PCT" default:"50"`
	EtaWeightPct         int `envconfig:"SURTIDO_BIDDING_ETA_WEIGHT_PCT" default:"30"`
	ReliabilityWeightPct int `envconfig:"SURTIDO_BIDDING_RELIABILITY_WEIGHT_PCT" default:"20"`
}

func (b BiddingConfig) validate() error {
	sum := b.PriceWeightPct + b.EtaWeightPct + b.ReliabilityWeightPct
	if sum != 100 {
		return fmt.Errorf("bidding weights must sum to 100, got %d", sum)
	}
	if b.PriceWeightPct < 0 || b.EtaWeightPct < 0 || b.ReliabilityWeightPct < 0 {
		return fmt.Errorf("bidding weights must be non-negative")
	}
	return nil
}

type DeliveryTokenConfig struct {
	Secret string        `envconfig:"SURTIDO_DELIVERY_TOKEN_SECRET" required:"true"`
	Issuer string        `envconfig:"SURTIDO_DELIVERY_TOKEN_ISSUER" default:"surtido"`
	TTL    time.Duration `envconfig:"SURTIDO_DELIVERY_TOKEN_TTL" default:"72h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SURTIDO_AUTO_MIGRATE" default:"false"`
}

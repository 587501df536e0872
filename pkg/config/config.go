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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Outbox       OutboxConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Stripe.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BOOKKEEPER_APP_ENV" required:"true"`
	Port         string `envconfig:"BOOKKEEPER_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"BOOKKEEPER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BOOKKEEPER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind        string `envconfig:"BOOKKEEPER_SERVICE_KIND" default:"api"`
	MetricsPort string `envconfig:"BOOKKEEPER_METRICS_PORT" default:"9090"`
}

type DBConfig struct {
	DSN    string `envconfig:"BOOKKEEPER_DB_DSN"`
	Driver string `envconfig:"BOOKKEEPER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BOOKKEEPER_DB_HOST"`
	LegacyPort     int    `envconfig:"BOOKKEEPER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BOOKKEEPER_DB_USER"`
	LegacyPassword string `envconfig:"BOOKKEEPER_DB_PASSWORD"`
	LegacyName     string `envconfig:"BOOKKEEPER_DB_NAME"`
	LegacySSLMode  string `envconfig:"BOOKKEEPER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BOOKKEEPER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BOOKKEEPER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BOOKKEEPER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BOOKKEEPER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BOOKKEEPER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BOOKKEEPER_REDIS_ADDR"`
	Password     string        `envconfig:"BOOKKEEPER_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOOKKEEPER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOOKKEEPER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BOOKKEEPER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BOOKKEEPER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOOKKEEPER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BOOKKEEPER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BOOKKEEPER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BOOKKEEPER_AUTO_MIGRATE" default:"false"`
	CollectTax  bool `envconfig:"BOOKKEEPER_FEATURE_COLLECT_TAX" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"BOOKKEEPER_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	ProcessorEventTTL    time.Duration `envconfig:"BOOKKEEPER_PROCESSOR_EVENT_TTL" default:"168h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BOOKKEEPER_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"BOOKKEEPER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BOOKKEEPER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ProcessorEventsTopic        string `envconfig:"BOOKKEEPER_PUBSUB_PROCESSOR_EVENTS_TOPIC" default:"bk-processor-events"`
	ProcessorEventsSubscription string `envconfig:"BOOKKEEPER_PUBSUB_PROCESSOR_EVENTS_SUBSCRIPTION" required:"true"`
	BillingTopic                string `envconfig:"BOOKKEEPER_PUBSUB_BILLING_TOPIC" required:"true"`
	CustomerTopic               string `envconfig:"BOOKKEEPER_PUBSUB_CUSTOMER_TOPIC" default:"bk-customer-events"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"BOOKKEEPER_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BOOKKEEPER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BOOKKEEPER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BOOKKEEPER_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	TestSecretKey string `envconfig:"BOOKKEEPER_STRIPE_TEST_SECRET_KEY"`
	LiveSecretKey string `envconfig:"BOOKKEEPER_STRIPE_LIVE_SECRET_KEY"`
	Env           string `envconfig:"BOOKKEEPER_STRIPE_ENV" default:"test"`
	WebhookSecret string `envconfig:"BOOKKEEPER_STRIPE_WEBHOOK_SECRET"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

func (s StripeConfig) validate() error {
	switch s.Environment() {
	case "test":
		if s.TestSecretKey == "" {
			return fmt.Errorf("%s is required when %s=test", EnvStripeTestSecretKey, EnvStripeEnv)
		}
	case "live":
		if s.LiveSecretKey == "" {
			return fmt.Errorf("%s is required when %s=live", EnvStripeLiveSecretKey, EnvStripeEnv)
		}
	default:
		return fmt.Errorf("%s must be test or live", EnvStripeEnv)
	}
	return nil
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

package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	SessionSecret       string
	DatabaseURL         string
	RedisURL            string
	FrontendURL         string
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKey      string

	PaystackSecretKey string
	PaystackBaseURL   string

	RabbitMQURL        string
	NotificationsQueue string

	DueDateCron      string
	SchedulerEnabled bool
	EngineWorkers    int
	StoreTimeout     time.Duration

	TracingEnabled bool
	JaegerEndpoint string

	PortfolioRulesFile string
}

const (
	defaultPort               = "8080"
	defaultNotificationsQueue = "bluegold.notifications"
	defaultDueDateCron        = "0 0 * * * *"
	defaultEngineWorkers      = 4
	defaultStoreTimeout       = 10
	defaultJaegerEndpoint     = "http://localhost:14268/api/traces"
	defaultPaystackBaseURL    = "https://api.paystack.co"
)

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	return LoadFrom(viper.New(), ".env")
}

// LoadFrom reads configuration through v. An empty envFile skips the file.
func LoadFrom(v *viper.Viper, envFile string) (*Config, error) {
	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		_ = v.ReadInConfig()
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", defaultPort)
	v.SetDefault("NOTIFICATIONS_QUEUE", defaultNotificationsQueue)
	v.SetDefault("DUE_DATE_CRON", defaultDueDateCron)
	v.SetDefault("SCHEDULER_ENABLED", true)
	v.SetDefault("ENGINE_WORKERS", defaultEngineWorkers)
	v.SetDefault("STORE_TIMEOUT_SECONDS", defaultStoreTimeout)
	v.SetDefault("JAEGER_ENDPOINT", defaultJaegerEndpoint)
	v.SetDefault("PAYSTACK_BASE_URL", defaultPaystackBaseURL)

	env := v.GetString("APP_ENV")
	if env == "" {
		env = v.GetString("NODE_ENV")
	}
	if env == "" {
		env = "development"
	}

	var dbURL string
	switch env {
	case "production":
		dbURL = v.GetString("DATABASE_URL_PROD")
	case "test":
		dbURL = v.GetString("DATABASE_URL_TEST")
	default:
		dbURL = v.GetString("DATABASE_URL_DEV")
	}

	workers := v.GetInt("ENGINE_WORKERS")
	if workers <= 0 {
		workers = defaultEngineWorkers
	}
	timeout := v.GetInt("STORE_TIMEOUT_SECONDS")
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}

	return &Config{
		Env:                 env,
		Port:                v.GetString("PORT"),
		SessionSecret:       v.GetString("SESSION_SECRET"),
		DatabaseURL:         dbURL,
		RedisURL:            v.GetString("REDIS_URL"),
		FrontendURL:         strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
		FrontendURLEndsWith: v.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         v.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   v.GetBool("ALLOW_CROSS_SITE_DEV"),
		HealthAdminKey:      v.GetString("HEALTH_ADMIN_KEY"),
		PaystackSecretKey:   v.GetString("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:     v.GetString("PAYSTACK_BASE_URL"),
		RabbitMQURL:         v.GetString("RABBITMQ_URL"),
		NotificationsQueue:  v.GetString("NOTIFICATIONS_QUEUE"),
		DueDateCron:         v.GetString("DUE_DATE_CRON"),
		SchedulerEnabled:    v.GetBool("SCHEDULER_ENABLED"),
		EngineWorkers:       workers,
		StoreTimeout:        time.Duration(timeout) * time.Second,
		TracingEnabled:      v.GetBool("TRACING_ENABLED"),
		JaegerEndpoint:      v.GetString("JAEGER_ENDPOINT"),
		PortfolioRulesFile:  v.GetString("PORTFOLIO_RULES_FILE"),
	}, nil
}

// IsProduction reports whether the service runs with production cookies and database.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// TopupCallbackURL is where the gateway redirects the payer after checkout.
func (c *Config) TopupCallbackURL() string {
	if c.FrontendURL == "" {
		return ""
	}
	return c.FrontendURL + "/topups/callback"
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/linearclockworks/shopify-serial--webhook/internal/types"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Shopify    ShopifyConfig    `validate:"required"`
	Serial     SerialConfig     `validate:"required"`
	Store      StoreConfig      `validate:"required"`
	Postgres   PostgresConfig
	DynamoDB   DynamoDBConfig
	Cache      CacheConfig
	Sentry     SentryConfig
	Tracking   TrackingConfig
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
	WriteBack  WriteBackConfig  `mapstructure:"write_back"`
	Admin      AdminConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required,oneof=local api aws_lambda_api"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

// ShopifyConfig holds the credentials of the single shop this service is installed on.
// All three values must be present at startup.
type ShopifyConfig struct {
	ShopName    string  `mapstructure:"shop_name" validate:"required"`
	AccessToken string  `mapstructure:"access_token" validate:"required"`
	APISecret   string  `mapstructure:"api_secret" validate:"required"`
	APIVersion  string  `mapstructure:"api_version" validate:"required"`
	BaseURL     string  `mapstructure:"base_url"`
	RateLimit   float64 `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst   int     `mapstructure:"rate_burst" validate:"gte=0"`
}

// AdminBaseURL returns the Admin REST API root for the configured shop
func (c ShopifyConfig) AdminBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("https://%s.myshopify.com/admin/api/%s", c.ShopName, c.APIVersion)
}

type StoreConfig struct {
	Backend types.StoreBackend `validate:"required,oneof=postgres dynamodb"`
}

type PostgresConfig struct {
	Host                   string
	Port                   int
	User                   string
	Password               string
	DBName                 string `mapstructure:"dbname"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
}

type CacheConfig struct {
	Enabled bool
}

type SentryConfig struct {
	Enabled     bool
	DSN         string
	Environment string
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type HTTPClientConfig struct {
	Timeout      time.Duration
	RetryMax     int           `mapstructure:"retry_max"`
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
}

// WriteBackConfig bounds the retries of the Shopify write-back step
type WriteBackConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxElapsed      time.Duration `mapstructure:"max_elapsed"`
}

func NewConfig() (*Configuration, error) {
	// A missing .env is expected outside local development
	_ = godotenv.Load()

	v := viper.New()

	// Modify config paths to ensure config.yaml is found
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/serialhook")

	// Environment variables map 1:1 onto keys, e.g. shopify.api_secret -> SHOPIFY_API_SECRET
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()
	setDefaults(v)

	// Read config file if exists
	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
		fmt.Printf("No config file found, using defaults and environment\n")
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", types.LogLevelInfo)

	v.SetDefault("shopify.shop_name", "")
	v.SetDefault("shopify.access_token", "")
	v.SetDefault("shopify.api_secret", "")
	v.SetDefault("shopify.api_version", "2024-01")
	v.SetDefault("shopify.base_url", "")
	v.SetDefault("shopify.rate_limit", 2)
	v.SetDefault("shopify.rate_burst", 4)

	v.SetDefault("serial.default_line", DefaultSerialLines()[0].Name)
	v.SetDefault("serial.lines", defaultSerialLinesMap())

	v.SetDefault("store.backend", types.StoreBackendPostgres)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "serialhook")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "serialhook")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 5)
	v.SetDefault("postgres.max_idle_conns", 2)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 30)
	v.SetDefault("postgres.auto_migrate", false)

	v.SetDefault("dynamodb.region", "us-east-1")
	v.SetDefault("dynamodb.endpoint", "")
	v.SetDefault("dynamodb.counter_table", "serial_counters")
	v.SetDefault("dynamodb.record_table", "serial_records")
	v.SetDefault("dynamodb.order_index", "order_id-index")

	v.SetDefault("cache.enabled", true)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.sample_rate", 0.1)

	v.SetDefault("tracking.enabled", false)
	v.SetDefault("tracking.auth_token", "")
	v.SetDefault("tracking.base_url", "")
	v.SetDefault("tracking.app_id", "serial-tracking")

	v.SetDefault("http_client.timeout", 30*time.Second)
	v.SetDefault("http_client.retry_max", 3)
	v.SetDefault("http_client.retry_wait_min", 500*time.Millisecond)
	v.SetDefault("http_client.retry_wait_max", 5*time.Second)

	v.SetDefault("write_back.initial_interval", 500*time.Millisecond)
	v.SetDefault("write_back.max_elapsed", 10*time.Second)

	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.api_key", "")
	v.SetDefault("admin.header", "x-api-key")
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	return c.Serial.Validate()
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for tests and scripts that never talk to Shopify
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Shopify: ShopifyConfig{
			ShopName:   "test-shop",
			APIVersion: "2024-01",
		},
		Serial: SerialConfig{
			DefaultLine: DefaultSerialLines()[0].Name,
			Lines:       DefaultSerialLines(),
		},
		Store: StoreConfig{Backend: types.StoreBackendPostgres},
		Cache: CacheConfig{Enabled: true},
		HTTPClient: HTTPClientConfig{
			Timeout:      30 * time.Second,
			RetryMax:     3,
			RetryWaitMin: 500 * time.Millisecond,
			RetryWaitMax: 5 * time.Second,
		},
		WriteBack: WriteBackConfig{
			InitialInterval: 500 * time.Millisecond,
			MaxElapsed:      10 * time.Second,
		},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}

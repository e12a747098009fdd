// Package config loads the settings shared by the worker and the starter.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"restaurant-ordering/pricing"
	"restaurant-ordering/storage"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/app.yaml"

type Config struct {
	AppEnv   string `yaml:"appEnv"`
	LogLevel string `yaml:"logLevel"`

	Temporal TemporalConfig `yaml:"temporal"`
	Storage  StorageConfig  `yaml:"storage"`
	Pricing  pricing.Rates  `yaml:"pricing"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Payment  PaymentConfig  `yaml:"payment"`
	Orders   OrdersConfig   `yaml:"orders"`
	Auth     AuthConfig     `yaml:"auth"`
	Notify   NotifyConfig   `yaml:"notify"`
}

type TemporalConfig struct {
	Address   string `yaml:"address"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"taskQueue"`
}

type StorageConfig struct {
	Driver        string `yaml:"driver"`
	DSN           string `yaml:"dsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	RedisPrefix   string `yaml:"redisPrefix"`
}

// CheckoutConfig holds the checkout timings as duration strings.
type CheckoutConfig struct {
	DismissAfter string `yaml:"dismissAfter"`
	IdleTimeout  string `yaml:"idleTimeout"`
}

// PaymentConfig selects the gateway. An empty URL uses the simulator.
type PaymentConfig struct {
	URL       string `yaml:"url"`
	SecretKey string `yaml:"secretKey"`
}

type OrdersConfig struct {
	GraphQLURL string `yaml:"graphqlUrl"`
}

// AuthConfig points at the auth service. Without a JWT secret access
// tokens are not signature checked.
type AuthConfig struct {
	URL       string `yaml:"url"`
	JWTSecret string `yaml:"jwtSecret"`
}

// NotifyConfig enables RabbitMQ publishing when URL is set.
type NotifyConfig struct {
	RabbitMQURL string `yaml:"rabbitmqUrl"`
}

func DefaultConfig() *Config {
	return &Config{
		AppEnv:   "dev",
		LogLevel: "info",
		Temporal: TemporalConfig{
			Address:   "localhost:7233",
			Namespace: "default",
			TaskQueue: "checkout-queue",
		},
		Storage: StorageConfig{
			Driver:      "sqlite",
			DSN:         "reztau.db",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "reztau:",
		},
		Pricing: pricing.DefaultRates(),
		Checkout: CheckoutConfig{
			DismissAfter: "10s",
			IdleTimeout:  "30m",
		},
		Orders: OrdersConfig{
			GraphQLURL: "http://localhost:8080/v1/graphql",
		},
		Auth: AuthConfig{
			URL: "http://localhost:4000/v1",
		},
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	setString(&c.AppEnv, "APP_ENV")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Temporal.Address, "TEMPORAL_ADDRESS")
	setString(&c.Temporal.Namespace, "TEMPORAL_NAMESPACE")
	setString(&c.Storage.Driver, "STORAGE_DRIVER")
	setString(&c.Storage.DSN, "STORAGE_DSN")
	setString(&c.Storage.RedisAddr, "REDIS_ADDR")
	setString(&c.Storage.RedisPassword, "REDIS_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Storage.RedisDB = n
		}
	}
	setString(&c.Payment.URL, "PAYMENT_URL")
	setString(&c.Payment.SecretKey, "PAYMENT_SECRET_KEY")
	setString(&c.Orders.GraphQLURL, "GRAPHQL_URL")
	setString(&c.Auth.URL, "AUTH_URL")
	setString(&c.Auth.JWTSecret, "AUTH_JWT_SECRET")
	setString(&c.Notify.RabbitMQURL, "RABBITMQ_URL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate rejects settings the binaries cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres", "redis":
	default:
		return fmt.Errorf("invalid storage driver: %q (valid: memory, sqlite, postgres, redis)", c.Storage.Driver)
	}
	if c.Pricing.TaxRate.IsNegative() || c.Pricing.DeliveryFee.IsNegative() || c.Pricing.FreeDeliveryMinimum.IsNegative() {
		return fmt.Errorf("pricing values must not be negative")
	}
	if c.Pricing.Currency == "" {
		return fmt.Errorf("pricing currency is required")
	}
	if c.Temporal.TaskQueue == "" {
		return fmt.Errorf("temporal task queue is required")
	}
	return nil
}

// StorageOptions converts the storage section for storage.Open.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Driver:        c.Storage.Driver,
		DSN:           c.Storage.DSN,
		RedisAddr:     c.Storage.RedisAddr,
		RedisPassword: c.Storage.RedisPassword,
		RedisDB:       c.Storage.RedisDB,
		RedisPrefix:   c.Storage.RedisPrefix,
	}
}

// GetDismissAfter returns how long a success message stays up.
func (c *Config) GetDismissAfter() time.Duration {
	d, err := time.ParseDuration(c.Checkout.DismissAfter)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// GetIdleTimeout returns how long an idle checkout session is kept open.
func (c *Config) GetIdleTimeout() time.Duration {
	d, err := time.ParseDuration(c.Checkout.IdleTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

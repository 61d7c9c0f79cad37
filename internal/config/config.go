package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("config: invalid")

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverRedis    = "redis"
)

type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Stores    StoresConfig    `yaml:"stores"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Bus       BusConfig       `yaml:"bus"`
	Catalog   []Product       `yaml:"catalog"`
}

type ServiceConfig struct {
	Name string `yaml:"name"`
	Env  string `yaml:"env"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type TelemetryConfig struct {
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// UpstreamConfig covers the storefront backend the session and receipt calls go to.
type UpstreamConfig struct {
	SessionProviderURL string        `yaml:"session_provider_url"`
	NotificationURL    string        `yaml:"notification_url"`
	Timeout            time.Duration `yaml:"timeout"`
	FailureThreshold   uint32        `yaml:"failure_threshold"`
	OpenTimeout        time.Duration `yaml:"open_timeout"`
}

type StoresConfig struct {
	Orders        string `yaml:"orders"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	MigrationsDir string `yaml:"migrations_dir"`
	Products      string `yaml:"products"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
	Cart          string `yaml:"cart"`
	RedisAddr     string `yaml:"redis_addr"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type BusConfig struct {
	QueueSize   int `yaml:"queue_size"`
	Concurrency int `yaml:"concurrency"`
}

// Product seeds the catalogue of the in-memory and Mongo product stores.
type Product struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Stock int    `yaml:"stock"`
}

func Default() *Config {
	return &Config{
		Service: ServiceConfig{Name: "storefront", Env: "dev"},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log:       LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{Exporter: "none", SampleRatio: 1},
		Upstream: UpstreamConfig{
			SessionProviderURL: "http://localhost:4000/stripe",
			NotificationURL:    "http://localhost:4000/sendgrid",
			Timeout:            5 * time.Second,
			FailureThreshold:   5,
			OpenTimeout:        30 * time.Second,
		},
		Stores: StoresConfig{
			Orders:        DriverMemory,
			MigrationsDir: "internal/infrastructure/postgres/migrations",
			Products:      DriverMemory,
			MongoDatabase: "storefront",
			Cart:          DriverMemory,
		},
		Kafka: KafkaConfig{Topic: "storefront-settlement"},
		Bus:   BusConfig{QueueSize: 1024, Concurrency: 8},
		Catalog: []Product{
			{ID: "p1", Name: "Bull Tee", Stock: 100},
			{ID: "p2", Name: "Bear Hoodie", Stock: 50},
		},
	}
}

// Load applies defaults, then the YAML file named by CONFIG_FILE (if any), then
// environment overrides. getenv is usually os.Getenv.
func Load(getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	if path := getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	ext := filepath.Ext(path)
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: unsupported config file extension %q", ErrInvalid, ext)
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	c.Service.Name = getenvDefault(getenv, "SERVICE_NAME", c.Service.Name)
	c.Service.Env = getenvDefault(getenv, "ENV", c.Service.Env)
	c.HTTP.Addr = getenvDefault(getenv, "HTTP_ADDR", c.HTTP.Addr)
	c.Log.Level = getenvDefault(getenv, "LOG_LEVEL", c.Log.Level)
	c.Log.File = getenvDefault(getenv, "LOG_FILE", c.Log.File)

	c.Telemetry.Exporter = getenvDefault(getenv, "OTEL_EXPORTER", c.Telemetry.Exporter)
	c.Telemetry.Endpoint = getenvDefault(getenv, "OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.Endpoint)

	c.Upstream.SessionProviderURL = getenvDefault(getenv, "SESSION_PROVIDER_URL", c.Upstream.SessionProviderURL)
	c.Upstream.NotificationURL = getenvDefault(getenv, "NOTIFICATION_URL", c.Upstream.NotificationURL)

	c.Stores.Orders = getenvDefault(getenv, "ORDER_STORE", c.Stores.Orders)
	c.Stores.PostgresDSN = getenvDefault(getenv, "POSTGRES_DSN", c.Stores.PostgresDSN)
	c.Stores.MigrationsDir = getenvDefault(getenv, "MIGRATIONS_DIR", c.Stores.MigrationsDir)
	c.Stores.Products = getenvDefault(getenv, "PRODUCT_STORE", c.Stores.Products)
	c.Stores.MongoURI = getenvDefault(getenv, "MONGO_URI", c.Stores.MongoURI)
	c.Stores.MongoDatabase = getenvDefault(getenv, "MONGO_DATABASE", c.Stores.MongoDatabase)
	c.Stores.Cart = getenvDefault(getenv, "CART_STORE", c.Stores.Cart)
	c.Stores.RedisAddr = getenvDefault(getenv, "REDIS_ADDR", c.Stores.RedisAddr)

	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	c.Kafka.Topic = getenvDefault(getenv, "KAFKA_TOPIC", c.Kafka.Topic)

	var err error
	if c.Telemetry.SampleRatio, err = floatEnv(getenv, "OTEL_SAMPLE_RATIO", c.Telemetry.SampleRatio); err != nil {
		return err
	}
	if c.Upstream.Timeout, err = durationEnv(getenv, "UPSTREAM_TIMEOUT", c.Upstream.Timeout); err != nil {
		return err
	}
	if c.Upstream.OpenTimeout, err = durationEnv(getenv, "BREAKER_OPEN_TIMEOUT", c.Upstream.OpenTimeout); err != nil {
		return err
	}
	if v := getenv("BREAKER_FAILURE_THRESHOLD"); v != "" {
		n, perr := strconv.ParseUint(v, 10, 32)
		if perr != nil {
			return fmt.Errorf("%w: BREAKER_FAILURE_THRESHOLD: %v", ErrInvalid, perr)
		}
		c.Upstream.FailureThreshold = uint32(n)
	}
	return nil
}

// Validate reports the first setting that would prevent startup.
func (c *Config) Validate() error {
	switch {
	case c.HTTP.Addr == "":
		return fmt.Errorf("%w: http.addr is required", ErrInvalid)
	case c.Upstream.SessionProviderURL == "":
		return fmt.Errorf("%w: upstream.session_provider_url is required", ErrInvalid)
	case c.Upstream.NotificationURL == "":
		return fmt.Errorf("%w: upstream.notification_url is required", ErrInvalid)
	case c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1:
		return fmt.Errorf("%w: telemetry.sample_ratio must be within [0,1]", ErrInvalid)
	}

	switch c.Telemetry.Exporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("%w: unknown telemetry exporter %q", ErrInvalid, c.Telemetry.Exporter)
	}

	switch c.Stores.Orders {
	case DriverMemory:
	case DriverPostgres:
		if c.Stores.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres order store needs POSTGRES_DSN", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown order store %q", ErrInvalid, c.Stores.Orders)
	}

	switch c.Stores.Products {
	case DriverMemory:
	case DriverMongo:
		if c.Stores.MongoURI == "" {
			return fmt.Errorf("%w: mongo product store needs MONGO_URI", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown product store %q", ErrInvalid, c.Stores.Products)
	}

	switch c.Stores.Cart {
	case DriverMemory:
	case DriverRedis:
		if c.Stores.RedisAddr == "" {
			return fmt.Errorf("%w: redis cart store needs REDIS_ADDR", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown cart store %q", ErrInvalid, c.Stores.Cart)
	}
	return nil
}

func getenvDefault(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	return d, nil
}

func floatEnv(getenv func(string) string, key string, def float64) (float64, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	return f, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

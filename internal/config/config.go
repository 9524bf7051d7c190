package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ServiceOrder    = "order-service"
	ServiceCustomer = "customer-service"
)

type Config struct {
	App             AppConfig
	Log             LogConfig
	Postgres        PostgresConfig
	CustomerService CustomerServiceConfig
	Order           OrderConfig
	Kafka           KafkaConfig
	Redis           RedisConfig
}

type AppConfig struct {
	Name string
	Port string
}

type LogConfig struct {
	Level  string
	Format string
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string `json:"-"`
	DBName          string
	SSLMode         string
	// Schema is fixed per service; the migrations and queries name it explicitly.
	Schema          string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MigrationsPath  string
	MigrationsTable string
}

// CustomerServiceConfig describes how the order service reaches the customer directory.
type CustomerServiceConfig struct {
	URL                string
	Timeout            time.Duration
	LookupRetries      int
	BreakerMaxFailures int
	BreakerTimeout     time.Duration
}

type OrderConfig struct {
	// ForceTotalRecompute ignores caller supplied totals and always derives them from items.
	ForceTotalRecompute bool
}

type KafkaConfig struct {
	Brokers           []string
	OrderCreatedTopic string
}

type RedisConfig struct {
	Addr           string
	IdempotencyTTL time.Duration
}

// NewConfig loads configuration for the named service from the environment.
// A .env file (CONFIG_ENV_FILE, default ".env") is loaded first when present.
func NewConfig(service string) (*Config, error) {
	envFile := getEnv("CONFIG_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	var defaultPort, defaultSchema, defaultMigrations string
	switch service {
	case ServiceOrder:
		defaultPort, defaultSchema, defaultMigrations = "8080", "order_service", "migrations/order"
	case ServiceCustomer:
		defaultPort, defaultSchema, defaultMigrations = "8081", "customer_service", "migrations/customer"
	default:
		return nil, fmt.Errorf("unknown service %q", service)
	}

	p := &parser{}
	cfg := &Config{
		App: AppConfig{
			Name: service,
			Port: getEnv("APP_PORT", defaultPort),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Postgres: PostgresConfig{
			Host:            p.required("DB_HOST"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            p.required("DB_USER"),
			Password:        p.required("DB_PASSWORD"),
			DBName:          p.required("DB_NAME"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			Schema:          defaultSchema,
			MaxConns:        int32(p.integer("DB_MAX_CONNS", 10)),
			MinConns:        int32(p.integer("DB_MIN_CONNS", 2)),
			MaxConnLifetime: p.duration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MigrationsPath:  getEnv("MIGRATIONS_PATH", defaultMigrations),
		},
	}
	cfg.Postgres.MigrationsTable = cfg.Postgres.Schema + "_schema_migrations"

	if service == ServiceOrder {
		cfg.CustomerService = CustomerServiceConfig{
			URL:                strings.TrimRight(getEnv("CUSTOMER_SERVICE_URL", "http://localhost:8081"), "/"),
			Timeout:            p.duration("CUSTOMER_SERVICE_TIMEOUT", 5*time.Second),
			LookupRetries:      p.integer("CUSTOMER_SERVICE_LOOKUP_RETRIES", 2),
			BreakerMaxFailures: p.integer("CUSTOMER_BREAKER_MAX_FAILURES", 5),
			BreakerTimeout:     p.duration("CUSTOMER_BREAKER_TIMEOUT", 30*time.Second),
		}
		cfg.Order = OrderConfig{
			ForceTotalRecompute: p.boolean("ORDER_FORCE_TOTAL_RECOMPUTE", false),
		}
		cfg.Kafka = KafkaConfig{
			Brokers:           splitList(os.Getenv("KAFKA_BROKERS")),
			OrderCreatedTopic: getEnv("KAFKA_ORDER_CREATED_TOPIC", "order.created"),
		}
		cfg.Redis = RedisConfig{
			Addr:           os.Getenv("REDIS_ADDR"),
			IdempotencyTTL: p.duration("IDEMPOTENCY_TTL", 24*time.Hour),
		}
	}

	if len(p.errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(p.errs...))
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser collects every problem instead of stopping at the first one.
type parser struct {
	errs []error
}

func (p *parser) required(key string) string {
	v := os.Getenv(key)
	if v == "" {
		p.errs = append(p.errs, fmt.Errorf("%s is required", key))
	}
	return v
}

func (p *parser) integer(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s must be an integer: %w", key, err))
		return fallback
	}
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s must be a duration: %w", key, err))
		return fallback
	}
	return v
}

func (p *parser) boolean(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s must be a boolean: %w", key, err))
		return fallback
	}
	return v
}

package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/subway/internal/messaging/kafka"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"

	LockDriverLocal = "local"
	LockDriverRedis = "redis"
)

// ConfigFileEnv — переменная окружения с путём к YAML-конфигурации.
const ConfigFileEnv = "SUBWAY_CONFIG"

// Config описывает настройки запуска сервиса.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	StorageDriver       string `yaml:"storage_driver"`
	PostgresDSN         string `yaml:"postgres_dsn"`
	PostgresAutoMigrate bool   `yaml:"postgres_auto_migrate"`

	LockDriver string        `yaml:"lock_driver"`
	RedisAddr  string        `yaml:"redis_addr"`
	LockTTL    time.Duration `yaml:"lock_ttl"`
	LockWait   time.Duration `yaml:"lock_wait"`

	KafkaBrokers  []string `yaml:"kafka_brokers"`
	KafkaClientID string   `yaml:"kafka_client_id"`
	KafkaTopic    string   `yaml:"kafka_topic"`
	KafkaDLQTopic string   `yaml:"kafka_dlq_topic"`

	OutboxPollInterval time.Duration `yaml:"outbox_poll_interval"`
	OutboxBatchSize    int           `yaml:"outbox_batch_size"`
	OutboxMaxAttempts  int           `yaml:"outbox_max_attempts"`
	OutboxRetryDelay   time.Duration `yaml:"outbox_retry_delay"`
	OutboxMaxPending   int           `yaml:"outbox_max_pending"`

	OutboxRetention       time.Duration `yaml:"outbox_retention"`
	OutboxCleanupInterval time.Duration `yaml:"outbox_cleanup_interval"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultConfig возвращает конфигурацию для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:              ":8080",
		GRPCAddr:              ":50051",
		MetricsAddr:           ":9090",
		StorageDriver:         StorageDriverMemory,
		PostgresAutoMigrate:   true,
		LockDriver:            LockDriverLocal,
		RedisAddr:             "localhost:6379",
		LockTTL:               10 * time.Second,
		LockWait:              5 * time.Second,
		KafkaClientID:         "subway-service",
		KafkaTopic:            kafka.TopicLineEvents,
		KafkaDLQTopic:         kafka.TopicDeadLetterQueue,
		OutboxPollInterval:    time.Second,
		OutboxBatchSize:       100,
		OutboxMaxAttempts:     3,
		OutboxRetryDelay:      200 * time.Millisecond,
		OutboxMaxPending:      1000,
		OutboxRetention:       24 * time.Hour,
		OutboxCleanupInterval: 10 * time.Minute,
		ShutdownTimeout:       5 * time.Second,
	}
}

// LoadConfig собирает конфигурацию: значения по умолчанию, затем YAML из SUBWAY_CONFIG,
// затем переменные окружения.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv переопределяет поля из переменных окружения; пустые значения игнорируются.
func (c *Config) applyEnv(lookup lookupFunc) error {
	env := envReader{lookup: lookup}

	env.str("SUBWAY_HTTP_ADDR", &c.HTTPAddr)
	env.str("SUBWAY_GRPC_ADDR", &c.GRPCAddr)
	env.str("SUBWAY_METRICS_ADDR", &c.MetricsAddr)
	env.str("SUBWAY_STORAGE_DRIVER", &c.StorageDriver)
	env.str("SUBWAY_POSTGRES_DSN", &c.PostgresDSN)
	env.boolean("SUBWAY_POSTGRES_AUTO_MIGRATE", &c.PostgresAutoMigrate)
	env.str("SUBWAY_LOCK_DRIVER", &c.LockDriver)
	env.str("SUBWAY_REDIS_ADDR", &c.RedisAddr)
	env.duration("SUBWAY_LOCK_TTL", &c.LockTTL)
	env.duration("SUBWAY_LOCK_WAIT", &c.LockWait)
	env.list("KAFKA_BROKERS", &c.KafkaBrokers)
	env.str("SUBWAY_KAFKA_TOPIC", &c.KafkaTopic)
	env.str("SUBWAY_KAFKA_DLQ_TOPIC", &c.KafkaDLQTopic)
	env.duration("SUBWAY_OUTBOX_POLL_INTERVAL", &c.OutboxPollInterval)
	env.integer("SUBWAY_OUTBOX_BATCH_SIZE", &c.OutboxBatchSize)
	env.integer("SUBWAY_OUTBOX_MAX_ATTEMPTS", &c.OutboxMaxAttempts)
	env.duration("SUBWAY_OUTBOX_RETRY_DELAY", &c.OutboxRetryDelay)
	env.duration("SUBWAY_OUTBOX_RETENTION", &c.OutboxRetention)
	env.duration("SUBWAY_OUTBOX_CLEANUP_INTERVAL", &c.OutboxCleanupInterval)

	return errors.Join(env.errs...)
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	switch c.LockDriver {
	case LockDriverLocal:
	case LockDriverRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, errors.New("redis addr is required for redis lock driver"))
		}
		if c.LockTTL <= 0 {
			errs = append(errs, errors.New("lock ttl must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported lock driver %q", c.LockDriver))
	}

	if c.LockWait <= 0 {
		errs = append(errs, errors.New("lock wait must be positive"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("outbox batch size must be positive"))
	}
	if c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox max attempts must be positive"))
	}

	return errors.Join(errs...)
}

type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (r *envReader) value(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.value(key); ok {
		*dst = v
	}
}

func (r *envReader) list(key string, dst *[]string) {
	v, ok := r.value(key)
	if !ok {
		return
	}
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}

func (r *envReader) boolean(key string, dst *bool) {
	v, ok := r.value(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = parsed
}

func (r *envReader) integer(key string, dst *int) {
	v, ok := r.value(key)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = parsed
}

func (r *envReader) duration(key string, dst *time.Duration) {
	v, ok := r.value(key)
	if !ok {
		return
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = parsed
}

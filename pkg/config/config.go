// Package config loads and validates the load generator configuration from a
// YAML file with environment-variable overrides. The Config is built once at
// startup and passed by value into the orchestrator; nothing reads it
// globally.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/traceload/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/traceload/pkg/errors"
)

// Sink drivers understood by the sink registry.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
	DriverKafka    = "kafka"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
	DriverLog      = "log"
)

// Pacing modes for producers.
const (
	PacingLimiter = "limiter"
	PacingSleep   = "sleep"
)

// Startup and failure policies for the worker pool.
const (
	StartupAbort    = "abort"
	StartupContinue = "continue"
	FailureStopAll  = "stop-all"
	FailureContinue = "continue"
)

// Config is the top-level application configuration.
type Config struct {
	Sink    SinkConfig    `yaml:"sink"`
	Load    LoadConfig    `yaml:"load"`
	Table   string        `yaml:"table"`
	Schema  record.Schema `yaml:"schema"`
	Fields  FieldsConfig  `yaml:"fields"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// SinkConfig selects the sink driver and holds the connection parameters of
// every supported driver. Only the section matching Driver is used.
type SinkConfig struct {
	Driver   string         `yaml:"driver"`
	Postgres PostgresConfig `yaml:"postgres"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslMode"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// MySQLConfig holds MySQL connection parameters.
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	TLS      bool   `yaml:"tls"`
}

// DSN returns a go-sql-driver/mysql data source name.
func (m MySQLConfig) DSN() string {
	port := m.Port
	if port == 0 {
		port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		m.User, m.Password, m.Host, port, m.Database,
	)
	if m.TLS {
		dsn += "&tls=true"
	}
	return dsn
}

// SQLiteConfig points at a database file.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// DSN opens the file in WAL mode with a busy timeout so several workers can
// write to it.
func (s SQLiteConfig) DSN() string {
	return s.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// MongoConfig holds MongoDB connection parameters.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// KafkaConfig holds Kafka broker settings. The table name is used as topic.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// RedisConfig holds Redis connection parameters. The table name is used as
// stream key.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoadConfig controls the rate budget and worker lifecycle.
type LoadConfig struct {
	TargetTPS       int           `yaml:"targetTPS"`
	Workers         int           `yaml:"workers"`
	StartStagger    time.Duration `yaml:"startStagger"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	Duration        time.Duration `yaml:"duration"`
	Pacing          string        `yaml:"pacing"`
	StartupPolicy   string        `yaml:"startupPolicy"`
	FailurePolicy   string        `yaml:"failurePolicy"`
	ConnectAttempts int           `yaml:"connectAttempts"`
	Seed            uint64        `yaml:"seed"`
}

// FieldsConfig names the fields the generator overrides.
type FieldsConfig struct {
	TokenField  string `yaml:"tokenField"`
	KeyField    string `yaml:"keyField"`
	KeySequence bool   `yaml:"keySequence"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Validate checks the settings the engine cannot run without. Field type tags
// are left to the synthesizer.
func (c *Config) Validate() error {
	if c.Load.TargetTPS <= 0 {
		return apperrors.Invalidf("load.targetTPS must be positive, got %d", c.Load.TargetTPS)
	}
	if c.Load.Workers <= 0 {
		return apperrors.Invalidf("load.workers must be positive, got %d", c.Load.Workers)
	}
	if c.Load.StartStagger < 0 {
		return apperrors.Invalidf("load.startStagger must not be negative")
	}
	if c.Table == "" {
		return apperrors.Invalidf("table is required")
	}
	if c.Schema.Len() == 0 {
		return apperrors.Invalidf("schema declares no fields")
	}
	switch c.Load.Pacing {
	case PacingLimiter, PacingSleep:
	default:
		return apperrors.Invalidf("unknown pacing %q", c.Load.Pacing)
	}
	switch c.Load.StartupPolicy {
	case StartupAbort, StartupContinue:
	default:
		return apperrors.Invalidf("unknown startupPolicy %q", c.Load.StartupPolicy)
	}
	switch c.Load.FailurePolicy {
	case FailureStopAll, FailureContinue:
	default:
		return apperrors.Invalidf("unknown failurePolicy %q", c.Load.FailurePolicy)
	}
	switch c.Sink.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite, DriverMongo, DriverKafka, DriverRedis, DriverMemory, DriverLog:
	default:
		return fmt.Errorf("%w: %q", apperrors.ErrUnknownDriver, c.Sink.Driver)
	}
	return nil
}

// defaultConfig reproduces the traceability run the tool was built for:
// 4000 records per second over 40 workers into traceability_test_json.
func defaultConfig() *Config {
	return &Config{
		Sink: SinkConfig{
			Driver: DriverPostgres,
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "traceability",
				User:     "traceload",
				Password: "localdev",
				SSLMode:  "disable",
			},
			MySQL: MySQLConfig{
				Host:     "localhost",
				Port:     3306,
				Database: "traceability",
				User:     "traceload",
			},
			SQLite: SQLiteConfig{Path: "traceload.db"},
			Mongo: MongoConfig{
				URI:      "mongodb://localhost:27017",
				Database: "traceability",
			},
			Kafka: KafkaConfig{Brokers: []string{"localhost:9092"}},
			Redis: RedisConfig{Addr: "localhost:6379"},
		},
		Load: LoadConfig{
			TargetTPS:       4000,
			Workers:         40,
			StartStagger:    200 * time.Millisecond,
			WriteTimeout:    5 * time.Second,
			Pacing:          PacingLimiter,
			StartupPolicy:   StartupAbort,
			FailurePolicy:   FailureStopAll,
			ConnectAttempts: 3,
		},
		Table: "traceability_test_json",
		Schema: *record.MustSchema(
			record.Column{Name: "transaction_type", Type: "VARCHAR"},
			record.Column{Name: "data_origin", Type: "JSON"},
			record.Column{Name: "data_destination", Type: "JSON"},
			record.Column{Name: "tps", Type: record.TypeTimestamp},
		),
		Fields: FieldsConfig{TokenField: "tps"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads TL_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TL_SINK_DRIVER"); v != "" {
		cfg.Sink.Driver = v
	}
	if v := os.Getenv("TL_DB_HOST"); v != "" {
		cfg.Sink.Postgres.Host = v
		cfg.Sink.MySQL.Host = v
	}
	if v := os.Getenv("TL_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Sink.Postgres.Port = port
			cfg.Sink.MySQL.Port = port
		}
	}
	if v := os.Getenv("TL_DB_NAME"); v != "" {
		cfg.Sink.Postgres.Database = v
		cfg.Sink.MySQL.Database = v
		cfg.Sink.Mongo.Database = v
	}
	if v := os.Getenv("TL_DB_USER"); v != "" {
		cfg.Sink.Postgres.User = v
		cfg.Sink.MySQL.User = v
	}
	if v := os.Getenv("TL_DB_PASSWORD"); v != "" {
		cfg.Sink.Postgres.Password = v
		cfg.Sink.MySQL.Password = v
	}
	if v := os.Getenv("TL_POSTGRES_SSLMODE"); v != "" {
		cfg.Sink.Postgres.SSLMode = v
	}
	if v := os.Getenv("TL_SQLITE_PATH"); v != "" {
		cfg.Sink.SQLite.Path = v
	}
	if v := os.Getenv("TL_MONGO_URI"); v != "" {
		cfg.Sink.Mongo.URI = v
	}
	if v := os.Getenv("TL_KAFKA_BROKERS"); v != "" {
		cfg.Sink.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("TL_REDIS_ADDR"); v != "" {
		cfg.Sink.Redis.Addr = v
	}
	if v := os.Getenv("TL_REDIS_PASSWORD"); v != "" {
		cfg.Sink.Redis.Password = v
	}
	if v := os.Getenv("TL_TABLE"); v != "" {
		cfg.Table = v
	}
	if v := os.Getenv("TL_TARGET_TPS"); v != "" {
		if tps, err := strconv.Atoi(v); err == nil {
			cfg.Load.TargetTPS = tps
		}
	}
	if v := os.Getenv("TL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Load.Workers = n
		}
	}
	if v := os.Getenv("TL_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Load.Duration = d
		}
	}
	if v := os.Getenv("TL_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TL_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("TL_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

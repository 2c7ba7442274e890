package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/traceload/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4000, cfg.Load.TargetTPS)
	assert.Equal(t, 40, cfg.Load.Workers)
	assert.Equal(t, 200*time.Millisecond, cfg.Load.StartStagger)
	assert.Equal(t, "traceability_test_json", cfg.Table)
	assert.Equal(t, []string{"transaction_type", "data_origin", "data_destination", "tps"}, cfg.Schema.Names())
	assert.Equal(t, "tps", cfg.Fields.TokenField)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
sink:
  driver: sqlite
  sqlite:
    path: /tmp/load.db
load:
  targetTPS: 10
  workers: 2
  startStagger: 50ms
  pacing: sleep
table: people
schema:
  name: STRING
  age: INTEGER
  active: BOOLEAN
fields:
  tokenField: created_at
  keyField: id
  keySequence: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DriverSQLite, cfg.Sink.Driver)
	assert.Equal(t, "/tmp/load.db", cfg.Sink.SQLite.Path)
	assert.Equal(t, 10, cfg.Load.TargetTPS)
	assert.Equal(t, 2, cfg.Load.Workers)
	assert.Equal(t, 50*time.Millisecond, cfg.Load.StartStagger)
	assert.Equal(t, PacingSleep, cfg.Load.Pacing)
	assert.Equal(t, StartupAbort, cfg.Load.StartupPolicy)
	assert.Equal(t, []string{"name", "age", "active"}, cfg.Schema.Names())
	assert.Equal(t, "id", cfg.Fields.KeyField)
	assert.True(t, cfg.Fields.KeySequence)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TL_SINK_DRIVER", "redis")
	t.Setenv("TL_REDIS_ADDR", "redis:6380")
	t.Setenv("TL_TARGET_TPS", "250")
	t.Setenv("TL_WORKERS", "5")
	t.Setenv("TL_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("TL_DB_HOST", "db.internal")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverRedis, cfg.Sink.Driver)
	assert.Equal(t, "redis:6380", cfg.Sink.Redis.Addr)
	assert.Equal(t, 250, cfg.Load.TargetTPS)
	assert.Equal(t, 5, cfg.Load.Workers)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Sink.Kafka.Brokers)
	assert.Equal(t, "db.internal", cfg.Sink.Postgres.Host)
	assert.Equal(t, "db.internal", cfg.Sink.MySQL.Host)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"zero rate":       func(c *Config) { c.Load.TargetTPS = 0 },
		"zero workers":    func(c *Config) { c.Load.Workers = 0 },
		"no table":        func(c *Config) { c.Table = "" },
		"bad pacing":      func(c *Config) { c.Load.Pacing = "burst" },
		"bad startup":     func(c *Config) { c.Load.StartupPolicy = "retry" },
		"bad failure":     func(c *Config) { c.Load.FailurePolicy = "ignore" },
		"negative stager": func(c *Config) { c.Load.StartStagger = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidConfig))
		})
	}

	cfg := defaultConfig()
	cfg.Sink.Driver = "cassandra"
	assert.True(t, errors.Is(cfg.Validate(), apperrors.ErrUnknownDriver))
}

func TestValidateLeavesTypeTagsAlone(t *testing.T) {
	path := writeConfig(t, "schema:\n  status: ENUM\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestDSNs(t *testing.T) {
	pg := PostgresConfig{Host: "h", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable", pg.DSN())

	my := MySQLConfig{Host: "h", User: "u", Password: "p", Database: "d", TLS: true}
	assert.Equal(t, "u:p@tcp(h:3306)/d?parseTime=true&charset=utf8mb4&tls=true", my.DSN())
}

// Package e2e drives a whole load run the way the run command does: a YAML
// config file is loaded, the sink registry picks the driver and the worker
// pool writes into a SQLite database file until the run duration elapses.
//
// Run with:
//
//	go test -v -timeout=60s ./test/e2e/...
package e2e

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/Adithya-Monish-Kumar-K/traceload/internal/orchestrator"
	"github.com/Adithya-Monish-Kumar-K/traceload/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/config"
)

const configTemplate = `
sink:
  driver: sqlite
  sqlite:
    path: DB_PATH
table: traceability_test_json
load:
  targetTPS: 100
  workers: 10
  startStagger: 10ms
  duration: 1s
schema:
  transaction_type: VARCHAR
  data_origin: JSON
  data_destination: JSON
  tps: TIMESTAMP
fields:
  tokenField: tps
  keyField: transaction_type
  keySequence: true
metrics:
  enabled: false
`

func setup(t *testing.T) (*config.Config, *sql.DB) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "traceload.db")
	cfgPath := filepath.Join(dir, "traceload.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(strings.Replace(configTemplate, "DB_PATH", dbPath, 1)), 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	db, err := sql.Open("sqlite", cfg.Sink.SQLite.DSN())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`CREATE TABLE traceability_test_json (
		transaction_type TEXT NOT NULL,
		data_origin      TEXT NOT NULL,
		data_destination TEXT NOT NULL,
		tps              TIMESTAMP NOT NULL
	)`)
	require.NoError(t, err)
	return cfg, db
}

func TestRunFillsTable(t *testing.T) {
	cfg, db := setup(t)

	opener, err := sink.NewOpener(cfg.Sink, sink.Options{KeyField: cfg.Fields.KeyField, TokenField: cfg.Fields.TokenField})
	require.NoError(t, err)
	pool, err := orchestrator.New(orchestrator.ConfigFrom(cfg), opener, nil)
	require.NoError(t, err)

	start := time.Now()
	h, err := pool.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.Wait())
	assert.Less(t, time.Since(start), 3*time.Second)

	var rows int64
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM traceability_test_json`).Scan(&rows))
	assert.Equal(t, h.Written(), rows)
	assert.GreaterOrEqual(t, rows, int64(60))
	assert.LessOrEqual(t, rows, int64(120))

	var distinct int64
	require.NoError(t, db.QueryRow(`SELECT COUNT(DISTINCT transaction_type) FROM traceability_test_json`).Scan(&distinct))
	assert.Equal(t, rows, distinct, "keys must be unique across workers")

	var origin string
	require.NoError(t, db.QueryRow(`SELECT data_origin FROM traceability_test_json LIMIT 1`).Scan(&origin))
	assert.Contains(t, origin, `"key"`)
	assert.Contains(t, origin, `"value"`)

	summary := h.Summary()
	assert.Equal(t, 10, summary.Workers)
	assert.Zero(t, summary.Failed)
	assert.Greater(t, summary.AchievedTPS(), 0.0)
}

func TestRunStopsOnMissingTable(t *testing.T) {
	cfg, _ := setup(t)
	cfg.Table = "not_there"

	opener, err := sink.NewOpener(cfg.Sink, sink.Options{})
	require.NoError(t, err)
	pool, err := orchestrator.New(orchestrator.ConfigFrom(cfg), opener, nil)
	require.NoError(t, err)

	h, err := pool.Start(context.Background())
	require.NoError(t, err)
	err = h.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_there")
	assert.Zero(t, h.Written())
}

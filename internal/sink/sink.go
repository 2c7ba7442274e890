// Package sink adapts storage systems to the record writer contract the
// producers call into. Every producer opens its own Sink through an Opener
// and owns it exclusively until it stops; sinks are never shared between
// workers.
package sink

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/traceload/internal/record"
	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/traceload/pkg/errors"
)

// Sink durably stores one record per Write. A Write either stores the whole
// record or fails; implementations never leave a partial record behind.
type Sink interface {
	Write(ctx context.Context, table string, rec record.Record) error
	Close() error
}

// Opener acquires a new sink connection.
type Opener interface {
	Open(ctx context.Context) (Sink, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context) (Sink, error)

func (f OpenerFunc) Open(ctx context.Context) (Sink, error) {
	return f(ctx)
}

// Options carries settings some sinks need beyond their connection
// parameters.
type Options struct {
	// KeyField names the record field used as message key by the Kafka
	// sink. TokenField is the fallback when the record has no key field.
	KeyField   string
	TokenField string
	// Store backs the memory driver. A fresh store is created when nil.
	Store *MemoryStore
}

// NewOpener returns the Opener for the configured driver.
func NewOpener(cfg config.SinkConfig, opts Options) (Opener, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgresOpener(cfg.Postgres), nil
	case config.DriverMySQL:
		return mysqlOpener(cfg.MySQL), nil
	case config.DriverSQLite:
		return sqliteOpener(cfg.SQLite), nil
	case config.DriverMongo:
		return mongoOpener(cfg.Mongo), nil
	case config.DriverKafka:
		return kafkaOpener(cfg.Kafka, opts.KeyField, opts.TokenField), nil
	case config.DriverRedis:
		return redisOpener(cfg.Redis), nil
	case config.DriverMemory:
		store := opts.Store
		if store == nil {
			store = NewMemoryStore()
		}
		return store, nil
	case config.DriverLog:
		return OpenerFunc(func(context.Context) (Sink, error) { return NewLogSink(), nil }), nil
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownDriver, cfg.Driver)
	}
}

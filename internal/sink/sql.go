package sink

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Adithya-Monish-Kumar-K/traceload/internal/record"
	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/sqldb"
)

// SQLSink inserts each record as one row inside its own transaction.
type SQLSink struct {
	client  *sqldb.Client
	dialect goqu.DialectWrapper
}

// NewSQLSink wraps an open client. dialect is a goqu dialect name
// ("postgres", "mysql" or "sqlite3").
func NewSQLSink(client *sqldb.Client, dialect string) *SQLSink {
	return &SQLSink{client: client, dialect: goqu.Dialect(dialect)}
}

func (s *SQLSink) Write(ctx context.Context, table string, rec record.Record) error {
	query, args, err := InsertStatement(s.dialect, table, rec)
	if err != nil {
		return err
	}
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("inserting into %s: %w", table, err)
		}
		return nil
	})
}

func (s *SQLSink) Close() error {
	return s.client.Close()
}

// InsertStatement builds a parameterised INSERT whose column list follows
// the record's field order.
func InsertStatement(dialect goqu.DialectWrapper, table string, rec record.Record) (string, []any, error) {
	cols := make([]any, len(rec))
	vals := make(goqu.Vals, len(rec))
	for i, f := range rec {
		cols[i] = f.Name
		vals[i] = sqlValue(f.Value)
	}
	query, args, err := dialect.Insert(table).Prepared(true).Cols(cols...).Vals(vals).ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("building insert for %s: %w", table, err)
	}
	return query, args, nil
}

// sqlValue converts generated values the drivers cannot bind directly.
func sqlValue(v any) any {
	if obj, ok := v.(record.Object); ok {
		return record.String(obj)
	}
	return v
}

func openSQL(driver, dialect, dsn string) Opener {
	return OpenerFunc(func(ctx context.Context) (Sink, error) {
		client, err := sqldb.Open(ctx, driver, dsn)
		if err != nil {
			return nil, err
		}
		return NewSQLSink(client, dialect), nil
	})
}

func postgresOpener(cfg config.PostgresConfig) Opener {
	return openSQL("postgres", "postgres", cfg.DSN())
}

func mysqlOpener(cfg config.MySQLConfig) Opener {
	return openSQL("mysql", "mysql", cfg.DSN())
}

func sqliteOpener(cfg config.SQLiteConfig) Opener {
	return openSQL("sqlite", "sqlite3", cfg.DSN())
}

package sink

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/traceload/internal/record"
)

// LogSink prints every record instead of storing it. Used for dry runs.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{logger: slog.Default().With("component", "log-sink")}
}

func (s *LogSink) Write(ctx context.Context, table string, rec record.Record) error {
	attrs := make([]any, 0, len(rec)+1)
	attrs = append(attrs, slog.String("table", table))
	for _, f := range rec {
		attrs = append(attrs, slog.String(f.Name, record.String(f.Value)))
	}
	s.logger.InfoContext(ctx, "inserted", attrs...)
	return nil
}

func (s *LogSink) Close() error {
	return nil
}

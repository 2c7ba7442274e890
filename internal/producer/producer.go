// Package producer runs one load worker: synthesize a record, hand it to the
// worker's sink, wait for the next slot of its rate share, repeat until the
// context is cancelled or a record fails.
package producer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/traceload/internal/generator"
	"github.com/Adithya-Monish-Kumar-K/traceload/internal/record"
	"github.com/Adithya-Monish-Kumar-K/traceload/internal/sink"
	apperrors "github.com/Adithya-Monish-Kumar-K/traceload/pkg/errors"
)

// State is the lifecycle phase of a Producer.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Observer is notified of every write outcome. Implementations must be safe
// for concurrent use by all producers.
type Observer interface {
	RecordWritten(worker int, took time.Duration)
	WriteFailed(worker int)
}

type nopObserver struct{}

func (nopObserver) RecordWritten(int, time.Duration) {}
func (nopObserver) WriteFailed(int)                  {}

// Config describes one worker.
type Config struct {
	ID     int
	Table  string
	Schema *record.Schema
	// TPS is this worker's share of the aggregate rate.
	TPS          int
	Pacing       string
	WriteTimeout time.Duration
	Synthesizer  *generator.Synthesizer
	Observer     Observer
	Logger       *slog.Logger
}

// Producer owns one sink connection for its whole lifetime and closes it
// when Run returns.
type Producer struct {
	id           int
	table        string
	schema       *record.Schema
	tps          int
	synth        *generator.Synthesizer
	sink         sink.Sink
	pacer        Pacer
	writeTimeout time.Duration
	observer     Observer
	logger       *slog.Logger
	state        atomic.Int32
	written      atomic.Int64
}

func New(cfg Config, s sink.Sink) (*Producer, error) {
	pacer, err := NewPacer(cfg.Pacing, cfg.TPS)
	if err != nil {
		return nil, err
	}
	if cfg.Synthesizer == nil {
		cfg.Synthesizer = generator.NewSynthesizer(generator.Options{})
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default().With("component", "producer", "worker", cfg.ID)
	}
	return &Producer{
		id:           cfg.ID,
		table:        cfg.Table,
		schema:       cfg.Schema,
		tps:          cfg.TPS,
		synth:        cfg.Synthesizer,
		sink:         s,
		pacer:        pacer,
		writeTimeout: cfg.WriteTimeout,
		observer:     cfg.Observer,
		logger:       cfg.Logger,
	}, nil
}

func (p *Producer) ID() int {
	return p.id
}

func (p *Producer) TPS() int {
	return p.tps
}

func (p *Producer) State() State {
	return State(p.state.Load())
}

// Written returns the number of records this producer has stored.
func (p *Producer) Written() int64 {
	return p.written.Load()
}

// Run produces records until ctx is cancelled, returning nil, or until a
// record cannot be built or stored, returning that failure. A write already
// in flight when ctx is cancelled is allowed to finish, bounded by the write
// timeout, so no record is abandoned half-way.
func (p *Producer) Run(ctx context.Context) error {
	p.state.Store(int32(StateRunning))
	defer func() {
		if err := p.sink.Close(); err != nil {
			p.logger.Warn("closing sink", "error", err)
		}
		p.state.Store(int32(StateStopped))
	}()

	p.logger.Info("producer started", "tps", p.tps, "table", p.table)
	for attempt := int64(1); ; attempt++ {
		if err := p.pacer.Wait(ctx); err != nil || ctx.Err() != nil {
			if ctx.Err() != nil {
				p.logger.Info("producer stopped", "written", p.written.Load())
				return nil
			}
			p.logger.Error("pacing failed", "attempt", attempt, "error", err)
			return &apperrors.WorkerError{Worker: p.id, Attempt: attempt, Err: err}
		}

		rec, err := p.synth.Synthesize(p.schema)
		if err != nil {
			p.logger.Error("record generation failed", "attempt", attempt, "error", err)
			return &apperrors.WorkerError{Worker: p.id, Attempt: attempt, Err: err}
		}

		if err := p.write(ctx, rec); err != nil {
			p.observer.WriteFailed(p.id)
			p.logger.Error("record write failed", "attempt", attempt, "error", err)
			return &apperrors.SinkError{Worker: p.id, Attempt: attempt, Table: p.table, Err: err}
		}
	}
}

func (p *Producer) write(ctx context.Context, rec record.Record) error {
	writeCtx := context.WithoutCancel(ctx)
	if p.writeTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(writeCtx, p.writeTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := p.sink.Write(writeCtx, p.table, rec); err != nil {
		return err
	}
	took := time.Since(start)
	p.written.Add(1)
	p.observer.RecordWritten(p.id, took)
	if p.logger.Enabled(ctx, slog.LevelDebug) {
		p.logger.Debug("inserted", "record", rec.Map(), "took", took)
	}
	return nil
}

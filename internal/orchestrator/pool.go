// Package orchestrator splits an aggregate rate across producers, brings them
// up one connection at a time and supervises them until the run ends.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/traceload/internal/generator"
	"github.com/Adithya-Monish-Kumar-K/traceload/internal/producer"
	"github.com/Adithya-Monish-Kumar-K/traceload/internal/record"
	"github.com/Adithya-Monish-Kumar-K/traceload/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/traceload/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/tracing"
)

// Observer receives pool lifecycle events on top of per-write outcomes.
type Observer interface {
	producer.Observer
	TargetRate(tps int)
	WorkerStarted(worker int)
	WorkerStopped(worker int)
	StartupFailed(worker int)
}

// Config controls one run. Duration stops the run that long after the last
// worker started; zero runs until the context is cancelled.
type Config struct {
	Table           string
	Schema          *record.Schema
	TargetTPS       int
	Workers         int
	StartStagger    time.Duration
	WriteTimeout    time.Duration
	Duration        time.Duration
	Pacing          string
	StartupPolicy   string
	FailurePolicy   string
	ConnectAttempts int
	Seed            uint64
	Fields          config.FieldsConfig
}

// ConfigFrom maps the loaded configuration onto a pool Config.
func ConfigFrom(cfg *config.Config) Config {
	schema := cfg.Schema
	return Config{
		Table:           cfg.Table,
		Schema:          &schema,
		TargetTPS:       cfg.Load.TargetTPS,
		Workers:         cfg.Load.Workers,
		StartStagger:    cfg.Load.StartStagger,
		WriteTimeout:    cfg.Load.WriteTimeout,
		Duration:        cfg.Load.Duration,
		Pacing:          cfg.Load.Pacing,
		StartupPolicy:   cfg.Load.StartupPolicy,
		FailurePolicy:   cfg.Load.FailurePolicy,
		ConnectAttempts: cfg.Load.ConnectAttempts,
		Seed:            cfg.Load.Seed,
		Fields:          cfg.Fields,
	}
}

type Pool struct {
	cfg      Config
	opener   sink.Opener
	observer Observer
}

// New returns a Pool opening sinks through opener. observer may be nil.
func New(cfg Config, opener sink.Opener, observer Observer) (*Pool, error) {
	if cfg.Schema == nil || cfg.Schema.Len() == 0 {
		return nil, apperrors.Invalidf("schema declares no fields")
	}
	if cfg.Table == "" {
		return nil, apperrors.Invalidf("table is required")
	}
	if cfg.StartupPolicy == "" {
		cfg.StartupPolicy = config.StartupAbort
	}
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = config.FailureStopAll
	}
	return &Pool{cfg: cfg, opener: opener, observer: observer}, nil
}

// Start plans the per-worker rates and brings the workers up in order,
// pausing StartStagger between consecutive activations. Each worker opens
// its own sink connection before it starts.
//
// When a connection cannot be opened the abort policy stops and releases
// every worker already running and returns the StartupError; the continue
// policy leaves that worker out and fails only when no worker could start.
// Cancelling ctx stops the staggered startup and every running worker.
func (p *Pool) Start(ctx context.Context) (*Handle, error) {
	rates, err := Split(p.cfg.TargetTPS, p.cfg.Workers)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	log := logger.FromContext(ctx).With("component", "orchestrator")
	if len(rates) < p.cfg.Workers {
		log.Warn("fewer workers than requested, every worker needs at least 1 record per second",
			"requested", p.cfg.Workers, "workers", len(rates), "target_tps", p.cfg.TargetTPS)
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)

	traceCtx, trace := tracing.StartSpan(ctx, "startup", runID)
	trace.SetAttr("workers", len(rates))
	trace.SetAttr("target_tps", p.cfg.TargetTPS)

	h := &Handle{
		runID:  runID,
		table:  p.cfg.Table,
		target: p.cfg.TargetTPS,
		stats:  NewStats(),
		cancel: cancel,
		start:  time.Now(),
		done:   make(chan struct{}),
		trace:  trace,
	}
	obs := fanout{h.stats, p.observer}
	obs.TargetRate(p.cfg.TargetTPS)

	var (
		failuresMu sync.Mutex
		failures   *multierror.Error
	)

	abort := func(err error) (*Handle, error) {
		trace.EndWithError(err)
		trace.Log(ctx, log)
		cancel()
		_ = g.Wait()
		return nil, err
	}

	log.Info("starting workers", "workers", len(rates), "target_tps", p.cfg.TargetTPS,
		"table", p.cfg.Table, "stagger", p.cfg.StartStagger)

	for i, tps := range rates {
		if i > 0 && !pause(gctx, p.cfg.StartStagger) {
			break
		}

		_, span := tracing.StartChildSpan(traceCtx, "open sink")
		span.SetAttr("worker", i)
		span.SetAttr("tps", tps)
		s, err := p.open(gctx, i)
		span.EndWithError(err)
		if err != nil {
			if gctx.Err() != nil {
				break
			}
			obs.StartupFailed(i)
			startErr := &apperrors.StartupError{Worker: i, Err: err}
			if p.cfg.StartupPolicy == config.StartupContinue {
				log.Warn("worker failed to start, continuing without it", "worker", i, "error", err)
				h.startupErrs = multierror.Append(h.startupErrs, startErr)
				continue
			}
			log.Error("worker failed to start, stopping run", "worker", i, "error", err)
			return abort(startErr)
		}

		prod, err := producer.New(p.producerConfig(ctx, i, tps, obs), s)
		if err != nil {
			s.Close()
			return abort(&apperrors.StartupError{Worker: i, Err: err})
		}
		h.producers = append(h.producers, prod)
		obs.WorkerStarted(i)

		g.Go(func() error {
			defer obs.WorkerStopped(i)
			err := prod.Run(gctx)
			if err != nil && p.cfg.FailurePolicy == config.FailureContinue {
				failuresMu.Lock()
				failures = multierror.Append(failures, err)
				failuresMu.Unlock()
				return nil
			}
			return err
		})
	}

	if len(h.producers) == 0 {
		if err := h.startupErrs.ErrorOrNil(); err != nil {
			return abort(err)
		}
		return abort(fmt.Errorf("run cancelled before any worker started: %w", context.Cause(gctx)))
	}

	trace.End()
	trace.Log(ctx, log)
	log.Info("workers started", "running", len(h.producers), "not_started", h.StartupFailures())

	// The duration counts from the last activation so every worker gets the
	// full period.
	stopTimer := func() bool { return false }
	if p.cfg.Duration > 0 {
		stopTimer = time.AfterFunc(p.cfg.Duration, cancel).Stop
	}

	go func() {
		err := g.Wait()
		stopTimer()
		if p.cfg.FailurePolicy == config.FailureContinue {
			failuresMu.Lock()
			err = failures.ErrorOrNil()
			failuresMu.Unlock()
		}
		cancel()
		h.finish(err)
		if err != nil {
			log.Error("run finished with failures", "error", err, "written", h.stats.Written())
		} else {
			log.Info("run finished", "written", h.stats.Written())
		}
	}()

	return h, nil
}

func (p *Pool) open(ctx context.Context, worker int) (sink.Sink, error) {
	var s sink.Sink
	err := resilience.Retry(ctx, fmt.Sprintf("open sink for worker %d", worker),
		resilience.RetryConfig{MaxAttempts: p.cfg.ConnectAttempts},
		func() error {
			var err error
			s, err = p.opener.Open(ctx)
			if errors.Is(err, apperrors.ErrInvalidConfig) || errors.Is(err, apperrors.ErrUnknownDriver) {
				return resilience.Permanent(err)
			}
			return err
		})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (p *Pool) producerConfig(ctx context.Context, worker, tps int, obs Observer) producer.Config {
	opts := generator.Options{
		TokenField: p.cfg.Fields.TokenField,
		KeyField:   p.cfg.Fields.KeyField,
	}
	if p.cfg.Seed != 0 {
		opts.Seed = p.cfg.Seed + uint64(worker)
	}
	if p.cfg.Fields.KeySequence {
		opts.Keys = generator.NewKeyGenerator(generator.WithSequence(worker))
	}
	return producer.Config{
		ID:           worker,
		Table:        p.cfg.Table,
		Schema:       p.cfg.Schema,
		TPS:          tps,
		Pacing:       p.cfg.Pacing,
		WriteTimeout: p.cfg.WriteTimeout,
		Synthesizer:  generator.NewSynthesizer(opts),
		Observer:     obs,
		Logger:       logger.ForWorker(ctx, worker),
	}
}

// pause waits d and reports whether ctx is still live afterwards.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

type fanout struct {
	stats    *Stats
	observer Observer
}

func (f fanout) RecordWritten(worker int, took time.Duration) {
	f.stats.RecordWritten(worker, took)
	if f.observer != nil {
		f.observer.RecordWritten(worker, took)
	}
}

func (f fanout) WriteFailed(worker int) {
	f.stats.WriteFailed(worker)
	if f.observer != nil {
		f.observer.WriteFailed(worker)
	}
}

func (f fanout) TargetRate(tps int) {
	if f.observer != nil {
		f.observer.TargetRate(tps)
	}
}

func (f fanout) WorkerStarted(worker int) {
	if f.observer != nil {
		f.observer.WorkerStarted(worker)
	}
}

func (f fanout) WorkerStopped(worker int) {
	if f.observer != nil {
		f.observer.WorkerStopped(worker)
	}
}

func (f fanout) StartupFailed(worker int) {
	if f.observer != nil {
		f.observer.StartupFailed(worker)
	}
}

var _ Observer = fanout{}

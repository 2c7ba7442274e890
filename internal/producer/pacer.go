package producer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/config"
)

// Pacer spaces out producer iterations. Wait is called at the top of every
// iteration and returns an error only when the producer should stop.
type Pacer interface {
	Wait(ctx context.Context) error
}

// NewPacer returns the pacer for mode at tps records per second.
func NewPacer(mode string, tps int) (Pacer, error) {
	if tps <= 0 {
		return nil, fmt.Errorf("pacer rate must be positive, got %d", tps)
	}
	switch mode {
	case config.PacingLimiter, "":
		return NewLimiterPacer(tps), nil
	case config.PacingSleep:
		return NewSleepPacer(tps), nil
	default:
		return nil, fmt.Errorf("unknown pacing mode %q", mode)
	}
}

// LimiterPacer admits one iteration every 1/tps seconds measured from
// iteration start to iteration start, so time spent writing does not slow
// the rate down.
type LimiterPacer struct {
	limiter *rate.Limiter
}

func NewLimiterPacer(tps int) *LimiterPacer {
	return &LimiterPacer{limiter: rate.NewLimiter(rate.Limit(tps), 1)}
}

// Wait blocks until the next token is due or ctx is done. Unlike
// rate.Limiter.Wait it does not give up early when the token falls after the
// ctx deadline, so a timed run keeps producing until the deadline itself.
func (p *LimiterPacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := p.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("pacer cannot admit a record at %v per second", p.limiter.Limit())
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// SleepPacer sleeps a full 1/tps between iterations regardless of how long
// the previous iteration took. The achieved rate drifts below tps as write
// latency grows.
type SleepPacer struct {
	interval time.Duration
	started  bool
}

func NewSleepPacer(tps int) *SleepPacer {
	return &SleepPacer{interval: time.Second / time.Duration(tps)}
}

func (p *SleepPacer) Wait(ctx context.Context) error {
	if !p.started {
		p.started = true
		return ctx.Err()
	}
	timer := time.NewTimer(p.interval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

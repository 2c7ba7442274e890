package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/Adithya-Monish-Kumar-K/traceload/internal/producer"
	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/tracing"
)

// Handle supervises the workers of one started run.
type Handle struct {
	runID       string
	table       string
	target      int
	producers   []*producer.Producer
	startupErrs *multierror.Error
	stats       *Stats
	cancel      context.CancelFunc
	start       time.Time
	trace       *tracing.Span

	done    chan struct{}
	mu      sync.Mutex
	err     error
	elapsed time.Duration
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	h.err = err
	h.elapsed = time.Since(h.start)
	h.mu.Unlock()
	close(h.done)
}

// Wait blocks until every worker has stopped. It returns nil when the run
// was cancelled or its duration elapsed, and the worker failures otherwise:
// the first one under the stop-all policy, all of them under continue.
func (h *Handle) Wait() error {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Stop cancels every worker and waits for them to release their
// connections.
func (h *Handle) Stop() error {
	h.cancel()
	return h.Wait()
}

// Done is closed once every worker has stopped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) RunID() string {
	return h.runID
}

// Workers returns the number of workers that were started.
func (h *Handle) Workers() int {
	return len(h.producers)
}

// Rates returns the per-worker rate of every started worker.
func (h *Handle) Rates() []int {
	rates := make([]int, len(h.producers))
	for i, p := range h.producers {
		rates[i] = p.TPS()
	}
	return rates
}

// Running returns the number of workers still producing.
func (h *Handle) Running() int {
	n := 0
	for _, p := range h.producers {
		if p.State() == producer.StateRunning {
			n++
		}
	}
	return n
}

// Written returns the number of records stored so far by all workers.
func (h *Handle) Written() int64 {
	var n int64
	for _, p := range h.producers {
		n += p.Written()
	}
	return n
}

// StartupTrace returns the span tree of the staggered startup: one child
// span per connection attempt.
func (h *Handle) StartupTrace() *tracing.Span {
	return h.trace
}

// StartupErrors returns the startup failures of workers left out under the
// continue policy, or nil.
func (h *Handle) StartupErrors() error {
	return h.startupErrs.ErrorOrNil()
}

func (h *Handle) StartupFailures() int {
	if h.startupErrs == nil {
		return 0
	}
	return len(h.startupErrs.Errors)
}

func (h *Handle) Summary() Summary {
	elapsed := time.Since(h.start)
	select {
	case <-h.done:
		h.mu.Lock()
		elapsed = h.elapsed
		h.mu.Unlock()
	default:
	}
	return Summary{
		RunID:           h.runID,
		Table:           h.table,
		Workers:         len(h.producers),
		TargetTPS:       h.target,
		Written:         h.stats.Written(),
		Failed:          h.stats.Failed(),
		StartupFailures: h.StartupFailures(),
		Elapsed:         elapsed,
		Latency:         h.stats.Latency(),
	}
}

// HealthCheck reports the run as up while every started worker is
// producing, degraded while only some are, and down once none are.
func (h *Handle) HealthCheck() health.Check {
	return func(context.Context) health.ComponentHealth {
		running, total := h.Running(), len(h.producers)
		msg := fmt.Sprintf("%d/%d workers running", running, total)
		switch {
		case running == 0:
			return health.ComponentHealth{Status: health.StatusDown, Message: msg}
		case running < total:
			return health.ComponentHealth{Status: health.StatusDegraded, Message: msg}
		default:
			return health.ComponentHealth{Status: health.StatusUp, Message: msg}
		}
	}
}

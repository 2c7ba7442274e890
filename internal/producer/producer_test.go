package producer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/traceload/internal/record"
	"github.com/Adithya-Monish-Kumar-K/traceload/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/traceload/pkg/errors"
)

var testSchema = record.MustSchema(
	record.Column{Name: "name", Type: record.TypeString},
	record.Column{Name: "age", Type: record.TypeInteger},
	record.Column{Name: "tps", Type: record.TypeTimestamp},
)

type failingSink struct {
	err    error
	closed atomic.Bool
}

func (s *failingSink) Write(context.Context, string, record.Record) error { return s.err }
func (s *failingSink) Close() error {
	s.closed.Store(true)
	return nil
}

// slowSink blocks each write for delay and records whether the write context
// was already cancelled when the write finished.
type slowSink struct {
	delay     time.Duration
	mu        sync.Mutex
	writes    int
	cancelled int
	started   chan struct{}
	once      sync.Once
}

func (s *slowSink) Write(ctx context.Context, _ string, _ record.Record) error {
	s.once.Do(func() { close(s.started) })
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		s.cancelled++
		return ctx.Err()
	}
	s.writes++
	return nil
}

func (s *slowSink) Close() error { return nil }

type countingObserver struct {
	written atomic.Int64
	failed  atomic.Int64
}

func (o *countingObserver) RecordWritten(int, time.Duration) { o.written.Add(1) }
func (o *countingObserver) WriteFailed(int)                  { o.failed.Add(1) }

func newMemoryProducer(t *testing.T, tps int, pacing string) (*Producer, *sink.MemoryStore) {
	t.Helper()
	store := sink.NewMemoryStore()
	s, err := store.Open(context.Background())
	require.NoError(t, err)
	p, err := New(Config{ID: 0, Table: "people", Schema: testSchema, TPS: tps, Pacing: pacing}, s)
	require.NoError(t, err)
	return p, store
}

func TestProducerWritesAtItsRate(t *testing.T) {
	p, store := newMemoryProducer(t, 10, config.PacingLimiter)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	n := store.Count("people")
	assert.GreaterOrEqual(t, n, 8)
	assert.LessOrEqual(t, n, 12)
	assert.EqualValues(t, n, p.Written())

	for _, rec := range store.Records("people") {
		assert.Equal(t, []string{"name", "age", "tps"}, rec.Columns())
		name, _ := rec.Get("name")
		assert.IsType(t, "", name)
		age, _ := rec.Get("age")
		assert.IsType(t, 0, age)
		ts, _ := rec.Get("tps")
		assert.IsType(t, time.Time{}, ts)
	}
}

func TestProducerSleepPacing(t *testing.T) {
	p, store := newMemoryProducer(t, 20, config.PacingSleep)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	n := store.Count("people")
	assert.GreaterOrEqual(t, n, 7)
	assert.LessOrEqual(t, n, 11)
}

func TestProducerStopsOnCancelWithoutFurtherWrites(t *testing.T) {
	p, store := newMemoryProducer(t, 2, config.PacingLimiter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return store.Count("people") == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateRunning, p.State())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("producer did not stop while waiting for its next slot")
	}

	assert.Equal(t, StateStopped, p.State())
	assert.Equal(t, 1, store.Count("people"))
	assert.Zero(t, store.OpenConns())
}

func TestProducerRunsUntilDeadline(t *testing.T) {
	p, store := newMemoryProducer(t, 2, config.PacingLimiter)

	ctx, cancel := context.WithTimeout(context.Background(), 900*time.Millisecond)
	defer cancel()
	start := time.Now()
	require.NoError(t, p.Run(ctx))

	assert.GreaterOrEqual(t, time.Since(start), 850*time.Millisecond)
	assert.Error(t, ctx.Err())
	assert.Equal(t, 2, store.Count("people"))
}

type stuckPacer struct{ err error }

func (p stuckPacer) Wait(context.Context) error { return p.err }

func TestProducerFailsWhenPacingFails(t *testing.T) {
	p, store := newMemoryProducer(t, 5, config.PacingLimiter)
	stuck := errors.New("no slot")
	p.pacer = stuckPacer{err: stuck}

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, stuck)
	var workerErr *apperrors.WorkerError
	require.ErrorAs(t, err, &workerErr)
	assert.EqualValues(t, 1, workerErr.Attempt)
	assert.Zero(t, store.Count("people"))
	assert.Zero(t, store.OpenConns())
}

func TestLimiterPacerWaitsPastDeadlineGap(t *testing.T) {
	p := NewLimiterPacer(2)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.ErrorIs(t, p.Wait(ctx), context.DeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestProducerFinishesInFlightWrite(t *testing.T) {
	s := &slowSink{delay: 100 * time.Millisecond, started: make(chan struct{})}
	p, err := New(Config{Table: "people", Schema: testSchema, TPS: 1, WriteTimeout: time.Second}, s)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	<-s.started
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 1, s.writes)
	assert.Zero(t, s.cancelled)
}

func TestProducerWriteTimeout(t *testing.T) {
	s := &slowSink{delay: 50 * time.Millisecond, started: make(chan struct{})}
	p, err := New(Config{ID: 3, Table: "people", Schema: testSchema, TPS: 1, WriteTimeout: 10 * time.Millisecond}, s)
	require.NoError(t, err)

	err = p.Run(context.Background())

	var sinkErr *apperrors.SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 3, sinkErr.Worker)
}

func TestProducerFailsOnSinkError(t *testing.T) {
	boom := errors.New("connection reset")
	s := &failingSink{err: boom}
	obs := &countingObserver{}
	p, err := New(Config{ID: 7, Table: "people", Schema: testSchema, TPS: 100, Observer: obs}, s)
	require.NoError(t, err)

	err = p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSink)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 7, apperrors.WorkerOf(err))

	var sinkErr *apperrors.SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.EqualValues(t, 1, sinkErr.Attempt)
	assert.Equal(t, "people", sinkErr.Table)

	assert.True(t, s.closed.Load())
	assert.EqualValues(t, 1, obs.failed.Load())
	assert.Zero(t, obs.written.Load())
	assert.Equal(t, StateStopped, p.State())
}

func TestProducerFailsOnUnsupportedType(t *testing.T) {
	schema := record.MustSchema(
		record.Column{Name: "name", Type: record.TypeString},
		record.Column{Name: "mood", Type: "ENUM"},
	)
	store := sink.NewMemoryStore()
	s, _ := store.Open(context.Background())
	p, err := New(Config{ID: 2, Table: "people", Schema: schema, TPS: 100}, s)
	require.NoError(t, err)

	err = p.Run(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedType)
	assert.Equal(t, 2, apperrors.WorkerOf(err))
	assert.Zero(t, store.Count("people"))
}

func TestNewRejectsBadPacing(t *testing.T) {
	_, err := New(Config{Schema: testSchema, TPS: 0}, &failingSink{})
	assert.Error(t, err)

	_, err = New(Config{Schema: testSchema, TPS: 5, Pacing: "bursty"}, &failingSink{})
	assert.Error(t, err)
}

func TestSleepPacerFirstWaitIsImmediate(t *testing.T) {
	p := NewSleepPacer(1)
	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopped", StateStopped.String())
}

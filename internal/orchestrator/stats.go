package orchestrator

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// maxLatencySamples bounds the latency window kept for the run summary.
const maxLatencySamples = 100000

// Stats accumulates write outcomes of every producer in a run.
type Stats struct {
	written     atomic.Int64
	failed      atomic.Int64
	latenciesMu sync.Mutex
	latencies   []time.Duration
	next        int
}

func NewStats() *Stats {
	return &Stats{latencies: make([]time.Duration, 0, 1024)}
}

func (s *Stats) RecordWritten(_ int, took time.Duration) {
	s.written.Add(1)

	s.latenciesMu.Lock()
	if len(s.latencies) < maxLatencySamples {
		s.latencies = append(s.latencies, took)
	} else {
		s.latencies[s.next] = took
		s.next = (s.next + 1) % maxLatencySamples
	}
	s.latenciesMu.Unlock()
}

func (s *Stats) WriteFailed(int) {
	s.failed.Add(1)
}

func (s *Stats) Written() int64 {
	return s.written.Load()
}

func (s *Stats) Failed() int64 {
	return s.failed.Load()
}

// LatencySummary describes write latency over the most recent samples.
type LatencySummary struct {
	Samples int
	Min     time.Duration
	Avg     time.Duration
	P50     time.Duration
	P90     time.Duration
	P95     time.Duration
	P99     time.Duration
	Max     time.Duration
	StdDev  time.Duration
}

func (s *Stats) Latency() LatencySummary {
	s.latenciesMu.Lock()
	latencies := slices.Clone(s.latencies)
	s.latenciesMu.Unlock()

	if len(latencies) == 0 {
		return LatencySummary{}
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg := sum / time.Duration(len(latencies))

	var sumSquared float64
	avgFloat := float64(avg)
	for _, l := range latencies {
		diff := float64(l) - avgFloat
		sumSquared += diff * diff
	}

	return LatencySummary{
		Samples: len(latencies),
		Min:     latencies[0],
		Avg:     avg,
		P50:     percentile(latencies, 50),
		P90:     percentile(latencies, 90),
		P95:     percentile(latencies, 95),
		P99:     percentile(latencies, 99),
		Max:     latencies[len(latencies)-1],
		StdDev:  time.Duration(math.Sqrt(sumSquared / float64(len(latencies)))),
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Summary is the end-of-run report.
type Summary struct {
	RunID           string
	Table           string
	Workers         int
	TargetTPS       int
	Written         int64
	Failed          int64
	StartupFailures int
	Elapsed         time.Duration
	Latency         LatencySummary
}

func (s Summary) AchievedTPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Written) / s.Elapsed.Seconds()
}

// Print writes the summary in the plain-text layout of the load reports.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Run:             %s\n", s.RunID)
	fmt.Fprintf(w, "Table:           %s\n", s.Table)
	fmt.Fprintf(w, "Workers:         %d\n", s.Workers)
	if s.StartupFailures > 0 {
		fmt.Fprintf(w, "Not Started:     %d\n", s.StartupFailures)
	}
	fmt.Fprintf(w, "Elapsed:         %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Records Written: %d\n", s.Written)
	fmt.Fprintf(w, "Write Errors:    %d\n", s.Failed)
	fmt.Fprintf(w, "Target TPS:      %d\n", s.TargetTPS)
	fmt.Fprintf(w, "Achieved TPS:    %.2f\n", s.AchievedTPS())

	if s.Latency.Samples == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Write Latency ===")
	fmt.Fprintf(w, "Min:    %s\n", s.Latency.Min)
	fmt.Fprintf(w, "Avg:    %s\n", s.Latency.Avg)
	fmt.Fprintf(w, "P50:    %s\n", s.Latency.P50)
	fmt.Fprintf(w, "P90:    %s\n", s.Latency.P90)
	fmt.Fprintf(w, "P95:    %s\n", s.Latency.P95)
	fmt.Fprintf(w, "P99:    %s\n", s.Latency.P99)
	fmt.Fprintf(w, "Max:    %s\n", s.Latency.Max)
	fmt.Fprintf(w, "StdDev: %s\n", s.Latency.StdDev)
}

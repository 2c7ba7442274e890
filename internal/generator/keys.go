// Package generator synthesizes record values from a schema and produces the
// dedup keys and ordering tokens attached to each record.
package generator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

const (
	// KeyTimeLayout is the microsecond pattern hashed into every key.
	KeyTimeLayout = "2006-01-02 15:04:05.000000"
	keyHashLen    = 10

	// maxKeyDrift bounds how far a key timestamp may run ahead of the clock.
	maxKeyDrift = 5 * time.Millisecond
)

// KeyGenerator builds "{hash}-{timestamp}" dedup keys. When the clock has not
// advanced past the previous key's microsecond, the timestamp is bumped by one
// microsecond, but never more than maxKeyDrift ahead of the captured time.
// Past that bound the captured time is used as is and keys may repeat, so
// uniqueness is best-effort unless a sequence suffix is enabled.
type KeyGenerator struct {
	mu       sync.Mutex
	now      func() time.Time
	last     time.Time
	worker   int
	sequence bool
	seq      uint64
}

// KeyOption configures a KeyGenerator.
type KeyOption func(*KeyGenerator)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) KeyOption {
	return func(g *KeyGenerator) { g.now = now }
}

// WithSequence appends "-w{worker}-{n}" to every key, making keys unique
// across workers of one run.
func WithSequence(worker int) KeyOption {
	return func(g *KeyGenerator) {
		g.sequence = true
		g.worker = worker
	}
}

func NewKeyGenerator(opts ...KeyOption) *KeyGenerator {
	g := &KeyGenerator{now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Key returns the next dedup key.
func (g *KeyGenerator) Key() string {
	g.mu.Lock()
	captured := g.now().Truncate(time.Microsecond)
	ts := captured
	if !ts.After(g.last) {
		if bumped := g.last.Add(time.Microsecond); bumped.Sub(captured) <= maxKeyDrift {
			ts = bumped
		}
	}
	if ts.After(g.last) {
		g.last = ts
	}
	g.seq++
	seq := g.seq
	g.mu.Unlock()

	key := HashKey(ts)
	if g.sequence {
		key = fmt.Sprintf("%s-w%d-%d", key, g.worker, seq)
	}
	return key
}

// HashKey formats ts at microsecond resolution and prefixes it with the
// first ten hex characters of its SHA-256.
func HashKey(ts time.Time) string {
	formatted := ts.Format(KeyTimeLayout)
	sum := sha256.Sum256([]byte(formatted))
	return hex.EncodeToString(sum[:])[:keyHashLen] + "-" + formatted
}

var defaultKeys = NewKeyGenerator()

// GenerateKey returns a key from the process-wide generator.
func GenerateKey() string {
	return defaultKeys.Key()
}

// Token returns the ordering token for a record created at now: the wall
// clock truncated to whole seconds.
func Token(now time.Time) time.Time {
	return now.Truncate(time.Second)
}

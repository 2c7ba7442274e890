package generator

import (
	"math"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/Adithya-Monish-Kumar-K/traceload/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/traceload/pkg/errors"
)

// DefaultTokenField is the field name that carries the ordering token when
// no other name is configured.
const DefaultTokenField = "tps"

var randomTimeFloor = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// Options configures a Synthesizer.
type Options struct {
	// TokenField names the field overwritten with the ordering token.
	TokenField string
	// KeyField, when set and declared by the schema, is overwritten with a
	// dedup key from Keys.
	KeyField string
	Keys     *KeyGenerator
	// Seed makes value generation reproducible. Zero seeds randomly.
	Seed  uint64
	Clock func() time.Time
}

// Synthesizer generates random field values. A Synthesizer owns its random
// source and is not safe for concurrent use; each producer creates its own.
type Synthesizer struct {
	faker      *gofakeit.Faker
	now        func() time.Time
	tokenField string
	keyField   string
	keys       *KeyGenerator
}

func NewSynthesizer(opts Options) *Synthesizer {
	if opts.TokenField == "" {
		opts.TokenField = DefaultTokenField
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Keys == nil {
		opts.Keys = NewKeyGenerator(WithClock(opts.Clock))
	}
	return &Synthesizer{
		faker:      gofakeit.New(opts.Seed),
		now:        opts.Clock,
		tokenField: opts.TokenField,
		keyField:   opts.KeyField,
		keys:       opts.Keys,
	}
}

// Synthesize builds one record with a value for every schema field, in
// schema order. An unsupported type tag aborts the whole record.
func (s *Synthesizer) Synthesize(schema *record.Schema) (record.Record, error) {
	cols := schema.Columns()
	rec := make(record.Record, 0, len(cols))
	for _, col := range cols {
		switch {
		case col.Name == s.tokenField:
			rec = append(rec, record.Field{Name: col.Name, Value: Token(s.now())})
			continue
		case s.keyField != "" && col.Name == s.keyField:
			rec = append(rec, record.Field{Name: col.Name, Value: s.keys.Key()})
			continue
		}
		v, err := s.value(col)
		if err != nil {
			return nil, err
		}
		rec = append(rec, record.Field{Name: col.Name, Value: v})
	}
	return rec, nil
}

func (s *Synthesizer) value(col record.Column) (any, error) {
	typ, ok := col.Type.Canonical()
	if !ok {
		return nil, &apperrors.UnsupportedTypeError{Field: col.Name, Type: string(col.Type)}
	}
	switch typ {
	case record.TypeString:
		return s.faker.Word(), nil
	case record.TypeInteger:
		return s.faker.IntRange(1, 100), nil
	case record.TypeFloat:
		return math.Round(s.faker.Float64Range(1, 100)*100) / 100, nil
	case record.TypeBoolean:
		return s.faker.Bool(), nil
	case record.TypeDate:
		d := s.randomTime().UTC()
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), nil
	case record.TypeTimestamp:
		return s.randomTime().UTC().Truncate(time.Second), nil
	case record.TypeJSONObject:
		return record.Object{"key": s.faker.Word(), "value": s.faker.Word()}, nil
	}
	return nil, &apperrors.UnsupportedTypeError{Field: col.Name, Type: string(col.Type)}
}

func (s *Synthesizer) randomTime() time.Time {
	return s.faker.DateRange(randomTimeFloor, s.now().UTC())
}

package sink

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/traceload/internal/record"
	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/traceload/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/redis"
)

// KafkaSink publishes each record as one JSON message on the topic named
// after the table.
type KafkaSink struct {
	producer  *kafka.Producer
	keyFields []string
}

// NewKafkaSink keys each message by the first of keyFields the record
// carries.
func NewKafkaSink(producer *kafka.Producer, keyFields ...string) *KafkaSink {
	return &KafkaSink{producer: producer, keyFields: keyFields}
}

func (s *KafkaSink) Write(ctx context.Context, table string, rec record.Record) error {
	return s.producer.Publish(ctx, table, KafkaEvent(rec, s.keyFields...))
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}

// KafkaEvent keys the record by the first of keyFields it carries. Without
// any the key is empty and the writer balances messages freely.
func KafkaEvent(rec record.Record, keyFields ...string) kafka.Event {
	var key string
	for _, name := range keyFields {
		if name == "" {
			continue
		}
		if v, ok := rec.Get(name); ok {
			key = record.String(v)
			break
		}
	}
	return kafka.Event{Key: key, Value: rec}
}

func kafkaOpener(cfg config.KafkaConfig, keyFields ...string) Opener {
	return OpenerFunc(func(context.Context) (Sink, error) {
		if len(cfg.Brokers) == 0 {
			return nil, apperrors.Invalidf("kafka sink needs at least one broker")
		}
		return NewKafkaSink(kafka.NewProducer(cfg), keyFields...), nil
	})
}

// RedisSink appends each record as one entry of the stream named after the
// table. XADD is atomic, so an entry is stored whole or not at all.
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

func (s *RedisSink) Write(ctx context.Context, table string, rec record.Record) error {
	_, err := s.client.Append(ctx, table, StreamValues(rec))
	return err
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}

// StreamValues flattens a record into XADD field/value pairs.
func StreamValues(rec record.Record) []any {
	values := make([]any, 0, 2*len(rec))
	for _, f := range rec {
		values = append(values, f.Name, record.String(f.Value))
	}
	return values
}

func redisOpener(cfg config.RedisConfig) Opener {
	return OpenerFunc(func(ctx context.Context) (Sink, error) {
		client, err := redis.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewRedisSink(client), nil
	})
}

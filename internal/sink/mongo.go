package sink

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Adithya-Monish-Kumar-K/traceload/internal/record"
	"github.com/Adithya-Monish-Kumar-K/traceload/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/traceload/pkg/errors"
)

// MongoSink inserts each record as one document into the collection named
// after the table. Single-document inserts are atomic.
type MongoSink struct {
	client *mongo.Client
	db     *mongo.Database
}

func (s *MongoSink) Write(ctx context.Context, table string, rec record.Record) error {
	if _, err := s.db.Collection(table).InsertOne(ctx, Document(rec)); err != nil {
		return fmt.Errorf("inserting into %s: %w", table, err)
	}
	return nil
}

func (s *MongoSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Document converts a record into an ordered BSON document.
func Document(rec record.Record) bson.D {
	doc := make(bson.D, 0, len(rec))
	for _, f := range rec {
		v := f.Value
		if obj, ok := v.(record.Object); ok {
			sub := make(bson.M, len(obj))
			for k, val := range obj {
				sub[k] = val
			}
			v = sub
		}
		doc = append(doc, bson.E{Key: f.Name, Value: v})
	}
	return doc
}

func mongoOpener(cfg config.MongoConfig) Opener {
	return OpenerFunc(func(ctx context.Context) (Sink, error) {
		if cfg.URI == "" || cfg.Database == "" {
			return nil, apperrors.Invalidf("mongo sink needs uri and database")
		}
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI).SetMaxPoolSize(1))
		if err != nil {
			return nil, fmt.Errorf("connecting to mongo: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			client.Disconnect(context.Background())
			return nil, fmt.Errorf("pinging mongo: %w", err)
		}
		return &MongoSink{client: client, db: client.Database(cfg.Database)}, nil
	})
}

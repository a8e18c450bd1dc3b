// Package mongodb provides a correlation store backed by MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config holds MongoDB connection settings.
type Config struct {
	URI        string
	Database   string // default "gosplit"
	Collection string // default "correlations"
}

func (c Config) parse() Config {
	if c.Database == "" {
		c.Database = "gosplit"
	}
	if c.Collection == "" {
		c.Collection = "correlations"
	}
	return c
}

// record is one stored key.
type record struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Store keeps one document per key.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect opens a client for cfg and returns a Store that owns it.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	cfg = cfg.parse()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}
	return &Store{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// New returns a Store on an existing collection. The caller owns the client.
func New(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

// Load returns the value for key.
func (s *Store) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var r record
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mongodb store: find %s: %w", key, err)
	}
	return r.Value, true, nil
}

// Store upserts value under key.
func (s *Store) Store(ctx context.Context, key string, value []byte) error {
	r := record{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": key}, r, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb store: replace %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("mongodb store: delete %s: %w", key, err)
	}
	return nil
}

// Close disconnects the client if the Store opened it.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// Package redisstore keeps the records document as a JSON string under one Redis key.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/gatebot/internal/records"
)

// DefaultKey is used when no key is configured.
const DefaultKey = "gatebot:records"

// Config selects the Redis server and key.
type Config struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	Key      string `yaml:"key" envconfig:"REDIS_KEY"`
}

// Repository reads and writes the document through a go-redis client.
type Repository struct {
	client redis.UniversalClient
	key    string
}

// Open dials Redis and checks connectivity.
func Open(ctx context.Context, cfg Config) (*Repository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping %s: %w", cfg.Addr, err)
	}
	return New(client, cfg.Key), nil
}

// New wraps an existing client. An empty key falls back to DefaultKey.
func New(client redis.UniversalClient, key string) *Repository {
	if key == "" {
		key = DefaultKey
	}
	return &Repository{client: client, key: key}
}

func (r *Repository) Load(ctx context.Context) (*records.Document, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return records.NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %s: %w", r.key, err)
	}
	var doc records.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("redisstore: decode %s: %w", r.key, err)
	}
	doc.Normalize()
	return &doc, nil
}

func (r *Repository) Save(ctx context.Context, doc *records.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("redisstore: encode: %w", err)
	}
	if err := r.client.Set(ctx, r.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: set %s: %w", r.key, err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.client.Close()
}

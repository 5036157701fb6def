// Package storage opens the configured records backend.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/gatebot/core/logger"
	"github.com/m3rciful/gatebot/internal/config"
	"github.com/m3rciful/gatebot/internal/records"
	"github.com/m3rciful/gatebot/internal/records/badgerstore"
	"github.com/m3rciful/gatebot/internal/records/filestore"
	"github.com/m3rciful/gatebot/internal/records/pgstore"
	"github.com/m3rciful/gatebot/internal/records/redisstore"
)

// Open builds the records store for cfg.Storage.Backend. db is required for the
// postgres backend and ignored otherwise; the store takes ownership of it.
func Open(ctx context.Context, cfg config.StorageConfig, db *sqlx.DB) (*records.Store, error) {
	repo, err := openRepository(ctx, cfg, db)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "records", "store.opened",
		slog.String("status", "ok"),
		slog.String("backend", cfg.Backend),
	)
	return records.NewStore(repo, cfg.Backend), nil
}

func openRepository(ctx context.Context, cfg config.StorageConfig, db *sqlx.DB) (records.Repository, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		return filestore.New(cfg.DataFile), nil
	case config.BackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("storage: postgres backend requires a database connection")
		}
		return pgstore.New(db), nil
	case config.BackendRedis:
		repo, err := redisstore.Open(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		return repo, nil
	case config.BackendBadger:
		repo, err := badgerstore.Open(cfg.BadgerDir)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		return repo, nil
	}
	return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
}

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/gatebot/internal/config"
	"github.com/m3rciful/gatebot/internal/records"
	"github.com/m3rciful/gatebot/internal/records/redisstore"
)

func roundTrip(t *testing.T, store *records.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Mutate(ctx, func(doc *records.Document) error {
		doc.Counter = 3
		return nil
	}))
	doc, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Counter)
	require.NoError(t, store.Close())
}

func TestOpenBackends(t *testing.T) {
	dir := t.TempDir()
	mr := miniredis.RunT(t)

	cases := []config.StorageConfig{
		{Backend: config.BackendFile, DataFile: filepath.Join(dir, "data.json")},
		{Backend: config.BackendBadger, BadgerDir: filepath.Join(dir, "badger")},
		{Backend: config.BackendRedis, Redis: redisstore.Config{Addr: mr.Addr(), Key: "test:records"}},
	}
	for _, cfg := range cases {
		t.Run(cfg.Backend, func(t *testing.T) {
			store, err := Open(context.Background(), cfg, nil)
			require.NoError(t, err)
			roundTrip(t, store)
		})
	}
}

func TestOpenRejectsMisconfiguration(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: config.BackendPostgres}, nil)
	assert.Error(t, err)
	_, err = Open(context.Background(), config.StorageConfig{Backend: "tape"}, nil)
	assert.Error(t, err)
}

package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/gatebot/internal/records"
)

func newRepo(t *testing.T) (*Repository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	repo, err := Open(context.Background(), Config{Addr: mr.Addr(), Key: "test:records"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, mr
}

func TestLoadMissingKeyReturnsDefaults(t *testing.T) {
	repo, _ := newRepo(t)
	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, records.NewDocument(), doc)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	repo, mr := newRepo(t)
	want := records.NewDocument()
	want.Counter = 1
	want.Members["77"] = records.Member{
		Number: 1, Lastname: "Abu Saleh", Village: "Maghar",
		Joined: time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, repo.Save(context.Background(), want))
	assert.True(t, mr.Exists("test:records"))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadCorruptValue(t *testing.T) {
	repo, mr := newRepo(t)
	require.NoError(t, mr.Set("test:records", "not-json"))
	_, err := repo.Load(context.Background())
	require.Error(t, err)
}

func TestDefaultKey(t *testing.T) {
	mr := miniredis.RunT(t)
	repo := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	t.Cleanup(func() { _ = repo.Close() })
	require.NoError(t, repo.Save(context.Background(), records.NewDocument()))
	assert.True(t, mr.Exists(DefaultKey))
}

func TestOpenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Open(ctx, Config{Addr: addr})
	require.Error(t, err)
}

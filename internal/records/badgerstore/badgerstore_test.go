package badgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/gatebot/internal/records"
)

func TestInMemoryRoundTrip(t *testing.T) {
	repo, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, records.NewDocument(), doc)

	doc.Counter = 2
	doc.Cooldowns["12"] = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(context.Background(), doc))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	repo, err := Open(dir)
	require.NoError(t, err)

	doc := records.NewDocument()
	doc.Counter = 5
	doc.Members["9"] = records.Member{Number: 5, Lastname: "Farraj", Joined: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, repo.Save(context.Background(), doc))
	require.NoError(t, repo.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	got, err := reopened.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

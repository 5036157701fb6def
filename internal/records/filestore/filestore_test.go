package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/gatebot/internal/records"
)

func sampleDocument() *records.Document {
	joined := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	doc := records.NewDocument()
	doc.Counter = 2
	doc.Members["100"] = records.Member{Number: 1, Lastname: "Haddad", Village: "Beit Jann", Unit: "X", Rank: "Sgt", Joined: joined}
	doc.Members["101"] = records.Member{Number: 2, Lastname: "Halabi", Village: "Daliyat", Warnings: 1, Joined: joined}
	doc.Pending["200"] = records.Application{
		ID:        "4d7b0f0e-3a43-4a55-a7f5-3f7d0c2b9e11",
		UserID:    200,
		Username:  "applicant",
		Answers:   records.Answers{Lastname: "Kheir", PhotoID: "file-1", PhotoKind: records.KindPhoto},
		Timestamp: joined,
	}
	doc.Rejected = append(doc.Rejected, records.Rejection{UserID: 300, Answers: records.Answers{Lastname: "Nakad"}, RejectedAt: joined})
	doc.Cooldowns["300"] = joined.Add(24 * time.Hour)
	return doc
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	repo := New(filepath.Join(t.TempDir(), "data.json"))
	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, records.NewDocument(), doc)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data.json")
	repo := New(path)
	want := sampleDocument()

	require.NoError(t, repo.Save(context.Background(), want))
	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := New(path).Load(context.Background())
	require.Error(t, err)
}

func TestLoadFillsMissingCollections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"members":{},"pending":{},"counter":4,"cooldowns":{}}`), 0o600))
	doc, err := New(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, doc.Counter)
	assert.NotNil(t, doc.Rejected)
}

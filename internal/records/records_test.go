package records

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryRepo round-trips through JSON so tests observe persisted state only.
type memoryRepo struct {
	data  []byte
	saves int
	fail  error
}

func (r *memoryRepo) Load(context.Context) (*Document, error) {
	if r.data == nil {
		return NewDocument(), nil
	}
	var doc Document
	if err := json.Unmarshal(r.data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *memoryRepo) Save(_ context.Context, doc *Document) error {
	if r.fail != nil {
		return r.fail
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	r.data = data
	r.saves++
	return nil
}

func (r *memoryRepo) Close() error { return nil }

func docWithMembers(numbers map[string]int) *Document {
	doc := NewDocument()
	for key, n := range numbers {
		doc.Members[key] = Member{Number: n, Lastname: "m" + key}
	}
	return doc
}

func TestFindByNumberAcceptsBothForms(t *testing.T) {
	doc := docWithMembers(map[string]int{"100": 1, "200": 7, "300": 42, "400": 123})

	for _, tc := range []struct {
		number int
		uid    int64
		tokens []string
	}{
		{1, 100, []string{"1", "001", "#1", "#001", " 001 "}},
		{7, 200, []string{"7", "007", "#007"}},
		{42, 300, []string{"42", "042", "#42"}},
		{123, 400, []string{"123", "#123"}},
	} {
		for _, token := range tc.tokens {
			ref, ok := FindByNumber(doc, token)
			require.Truef(t, ok, "token %q", token)
			assert.Equal(t, tc.uid, ref.UserID, "token %q", token)
			assert.Equal(t, tc.number, ref.Member.Number)
		}
	}
}

func TestFindByNumberMisses(t *testing.T) {
	doc := docWithMembers(map[string]int{"100": 1})
	for _, token := range []string{"", "#", "2", "0001", "abc", "01"} {
		_, ok := FindByNumber(doc, token)
		assert.Falsef(t, ok, "token %q", token)
	}
	_, ok := FindByNumber(nil, "1")
	assert.False(t, ok)
}

func TestSortedMembersOrdersByNumber(t *testing.T) {
	doc := docWithMembers(map[string]int{"9": 3, "8": 1, "7": 2})
	refs := SortedMembers(doc)
	require.Len(t, refs, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{refs[0].Member.Number, refs[1].Member.Number, refs[2].Member.Number})
	assert.Equal(t, int64(8), refs[0].UserID)
}

func TestStoreLoadDefaultsWhenEmpty(t *testing.T) {
	store := NewStore(&memoryRepo{}, "memory")
	doc, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Members)
	assert.Empty(t, doc.Pending)
	assert.Empty(t, doc.Rejected)
	assert.Empty(t, doc.Cooldowns)
	assert.Zero(t, doc.Counter)
}

func TestStoreMutateSkipsSaveOnError(t *testing.T) {
	repo := &memoryRepo{}
	store := NewStore(repo, "memory")
	boom := errors.New("boom")

	err := store.Mutate(context.Background(), func(doc *Document) error {
		doc.Counter = 99
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, repo.saves)

	doc, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, doc.Counter)
}

func TestStoreMutateWrapsSaveError(t *testing.T) {
	disk := errors.New("disk full")
	store := NewStore(&memoryRepo{fail: disk}, "memory")
	err := store.Mutate(context.Background(), func(doc *Document) error {
		doc.Counter++
		return nil
	})
	require.ErrorIs(t, err, disk)
}

func TestStoreMutateSerializesWriters(t *testing.T) {
	store := NewStore(&memoryRepo{}, "memory")
	const writers = 64

	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_ = store.Mutate(context.Background(), func(doc *Document) error {
				doc.Counter++
				return nil
			})
		}()
	}
	wg.Wait()

	doc, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, writers, doc.Counter)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "001", FormatNumber(1))
	assert.Equal(t, "042", FormatNumber(42))
	assert.Equal(t, "1234", FormatNumber(1234))
}

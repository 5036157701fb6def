// Package badgerstore keeps the records document in an embedded Badger database.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/m3rciful/gatebot/internal/records"
)

var documentKey = []byte("records/document")

// Repository stores the document under a single key.
type Repository struct {
	db *badger.DB
}

// Open opens (or creates) a Badger directory. An empty dir runs in memory.
func Open(dir string) (*Repository, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open %q: %w", dir, err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Load(_ context.Context) (*records.Document, error) {
	var raw []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(documentKey)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return records.NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("badgerstore: get: %w", err)
	}
	var doc records.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("badgerstore: decode: %w", err)
	}
	doc.Normalize()
	return &doc, nil
}

func (r *Repository) Save(_ context.Context, doc *records.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("badgerstore: encode: %w", err)
	}
	if err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(documentKey, raw)
	}); err != nil {
		return fmt.Errorf("badgerstore: set: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

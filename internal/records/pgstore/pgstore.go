// Package pgstore keeps the records document as a single JSONB row in Postgres.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/gatebot/internal/records"
)

const documentID = 1

const (
	selectDocument = `SELECT body FROM records_document WHERE id = $1`
	upsertDocument = `INSERT INTO records_document (id, body, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`
)

// Repository stores the document in the records_document table created by migrations.
type Repository struct {
	db *sqlx.DB
}

// New wraps an open database handle. Close closes it.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Load reads the single row, falling back to a fresh document when absent.
func (r *Repository) Load(ctx context.Context) (*records.Document, error) {
	var body []byte
	err := r.db.GetContext(ctx, &body, selectDocument, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return records.NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: select: %w", err)
	}
	var doc records.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("pgstore: decode: %w", err)
	}
	doc.Normalize()
	return &doc, nil
}

// Save upserts the row inside a transaction.
func (r *Repository) Save(ctx context.Context, doc *records.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("pgstore: encode: %w", err)
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgstore: begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsertDocument, documentID, body); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("pgstore: upsert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgstore: commit: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

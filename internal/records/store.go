package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/gatebot/core/logger"
)

// ErrMemberNotFound is returned when a lookup token matches no member.
var ErrMemberNotFound = errors.New("records: member not found")

// Repository persists the whole document. Implementations need not be safe
// for concurrent use; Store serializes access.
type Repository interface {
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
	Close() error
}

// Store guards a Repository with a single-writer lock so that concurrent
// load-mutate-save cycles never lose updates.
type Store struct {
	mu      sync.Mutex
	repo    Repository
	backend string
}

// NewStore wraps repo. backend is only used for log attribution.
func NewStore(repo Repository, backend string) *Store {
	return &Store{repo: repo, backend: backend}
}

// Load returns a snapshot of the persisted document.
func (s *Store) Load(ctx context.Context) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Save replaces the persisted document with doc.
func (s *Store) Save(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, doc)
}

// View runs fn against a freshly loaded document while holding the lock.
// Changes made by fn are discarded.
func (s *Store) View(ctx context.Context, fn func(*Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	return fn(doc)
}

// Mutate loads the document, applies fn and saves the result atomically with
// respect to other Store callers. Nothing is saved when fn returns an error.
func (s *Store) Mutate(ctx context.Context, fn func(*Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(ctx, doc)
}

// Close releases the underlying repository.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Close()
}

func (s *Store) load(ctx context.Context) (*Document, error) {
	doc, err := s.repo.Load(ctx)
	if err != nil {
		logger.Error(ctx, "records", "store.load_failed",
			slog.String("backend", s.backend),
			logger.Err(err),
		)
		return nil, fmt.Errorf("records: load: %w", err)
	}
	if doc == nil {
		doc = NewDocument()
	}
	doc.Normalize()
	return doc, nil
}

func (s *Store) save(ctx context.Context, doc *Document) error {
	start := time.Now()
	if err := s.repo.Save(ctx, doc); err != nil {
		logger.Error(ctx, "records", "store.save_failed",
			slog.String("backend", s.backend),
			logger.Err(err),
		)
		return fmt.Errorf("records: save: %w", err)
	}
	logger.Debug(ctx, "records", "store.saved",
		slog.String("backend", s.backend),
		slog.Int("count", len(doc.Members)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

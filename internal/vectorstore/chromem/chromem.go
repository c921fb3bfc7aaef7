// Package chromem stores unit vectors in an embedded chromem-go database.
package chromem

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"ragqa/internal/vectorstore"
)

// DB is a shared chromem database; each corpus generation gets its own collection.
type DB struct {
	db *chromem.DB
}

// NewDB opens an in-memory database, or a persistent one when path is set.
func NewDB(path string, compress bool) (*DB, error) {
	if path == "" {
		return &DB{db: chromem.NewDB()}, nil
	}
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("chromem: open %s: %w", path, err)
	}
	return &DB{db: db}, nil
}

// Collection returns a Storage bound to the named collection.
func (d *DB) Collection(name string) *Storage {
	return &Storage{db: d.db, name: name}
}

// Storage implements vectorstore.Storage on one chromem collection.
type Storage struct {
	db   *chromem.DB
	name string

	mu        sync.RWMutex
	col       *chromem.Collection
	dimension int
}

// Vectors are always pre-computed by the semantic index.
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("chromem: embedding function called but vectors should be pre-computed")
}

func (s *Storage) Name() string { return "chromem" }

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return vectorstore.ErrInvalidDimension
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// A collection left over from an earlier process is rebuilt from scratch.
	if s.db.GetCollection(s.name, noEmbedding) != nil {
		if err := s.db.DeleteCollection(s.name); err != nil {
			return fmt.Errorf("chromem: reset collection %q: %w", s.name, err)
		}
	}
	col, err := s.db.CreateCollection(s.name, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("chromem: create collection %q: %w", s.name, err)
	}
	s.col = col
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(ctx context.Context, points []vectorstore.Point) error {
	s.mu.RLock()
	col, dim := s.col, s.dimension
	s.mu.RUnlock()
	if col == nil {
		return fmt.Errorf("chromem: collection %q not initialised", s.name)
	}
	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		if len(p.Vector) != dim {
			return vectorstore.ErrDimensionMismatch
		}
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(p.Index),
			Metadata:  map[string]string{"unit_id": p.UnitID},
			Embedding: p.Vector,
		}
	}
	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("chromem: upsert: %w", err)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]vectorstore.Hit, error) {
	s.mu.RLock()
	col := s.col
	s.mu.RUnlock()
	if col == nil {
		return nil, fmt.Errorf("chromem: collection %q not initialised", s.name)
	}
	if topK <= 0 {
		topK = 5
	}
	// chromem rejects a result count larger than the collection.
	if n := col.Count(); topK > n {
		topK = n
	}
	if topK == 0 {
		return nil, nil
	}
	results, err := col.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: search: %w", err)
	}
	hits := make([]vectorstore.Hit, 0, len(results))
	for _, r := range results {
		idx, err := strconv.Atoi(r.ID)
		if err != nil {
			return nil, fmt.Errorf("chromem: bad document id %q", r.ID)
		}
		hits = append(hits, vectorstore.Hit{Index: idx, Score: float64(r.Similarity)})
	}
	vectorstore.SortHits(hits)
	return hits, nil
}

func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.col == nil {
		return nil
	}
	s.col = nil
	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("chromem: delete collection %q: %w", s.name, err)
	}
	return nil
}

var _ vectorstore.Storage = (*Storage)(nil)

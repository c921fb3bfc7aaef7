// Package vectorstore holds the nearest-neighbour backends of the semantic index.
package vectorstore

import (
	"context"
	"errors"
	"sort"
)

var (
	ErrInvalidDimension  = errors.New("invalid dimension")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Point is one unit vector keyed by its corpus index.
type Point struct {
	Index  int
	UnitID string
	Vector []float32
}

// Hit is a search result: corpus index and cosine similarity.
type Hit struct {
	Index int
	Score float64
}

// Storage persists vectors and supports similarity search.
type Storage interface {
	Name() string
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, topK int) ([]Hit, error)
	Clear(ctx context.Context) error
}

// SortHits orders hits by descending score, ties by ascending index.
func SortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Index < hits[j].Index
	})
}

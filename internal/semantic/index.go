// Package semantic builds and queries the embedding index of one corpus generation.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	"ragqa/internal/vectorstore"
)

// ErrNotReady is returned by Search while the index is not built.
var ErrNotReady = errors.New("semantic index not ready")

type State int

const (
	NotStarted State = iota
	Building
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Building:
		return "building"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

type Config struct {
	// BatchSize is the number of texts per embedding call; backends cap it.
	BatchSize int
	// Concurrency bounds the embedding calls in flight.
	Concurrency int
}

func DefaultConfig() Config {
	return Config{BatchSize: 100, Concurrency: 4}
}

// Index embeds every unit of a snapshot and answers nearest-neighbour queries.
// Its lifecycle is a state machine: not_started -> building -> ready | failed.
// A failed index goes back to building on the next Start.
type Index struct {
	units    []domain.KnowledgeUnit
	embedder embedding.Embedder
	storage  vectorstore.Storage
	cfg      Config
	logger   *slog.Logger

	mu     sync.Mutex
	state  State
	err    error
	done   chan struct{}
	cancel context.CancelFunc
	closed bool
	builds int
}

func New(units []domain.KnowledgeUnit, e embedding.Embedder, s vectorstore.Storage, cfg Config, logger *slog.Logger) *Index {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{units: units, embedder: e, storage: s, cfg: cfg, logger: logger}
}

// Start launches the build in the background unless one is running or done, or the
// index is closed.
func (x *Index) Start(ctx context.Context) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed || x.state == Building || x.state == Ready {
		return
	}
	x.state = Building
	x.err = nil
	x.builds++
	done := make(chan struct{})
	x.done = done
	ctx, cancel := context.WithCancel(ctx)
	x.cancel = cancel

	go func() {
		defer cancel()
		start := time.Now()
		err := x.build(ctx)

		x.mu.Lock()
		if err != nil {
			x.state = Failed
			x.err = err
		} else {
			x.state = Ready
		}
		closed := x.closed
		x.mu.Unlock()
		close(done)

		if err != nil && closed {
			x.logger.Debug("semantic: index build stopped", "error", err)
			return
		}
		if err != nil {
			x.logger.Error("semantic: index build failed", "embedder", x.embedder.Name(), "storage", x.storage.Name(), "error", err)
			return
		}
		x.logger.Info("semantic: index ready", "units", len(x.units), "embedder", x.embedder.Name(),
			"storage", x.storage.Name(), "elapsed", time.Since(start).Round(time.Millisecond))
	}()
}

// Wait blocks until the current build finishes and returns its error.
func (x *Index) Wait(ctx context.Context) error {
	x.mu.Lock()
	state, done := x.state, x.done
	x.mu.Unlock()
	if state == NotStarted {
		return ErrNotReady
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	_, err := x.State()
	return err
}

// State reports the lifecycle state and, when failed, the build error.
func (x *Index) State() (State, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.state, x.err
}

// Builds reports how many builds have been started.
func (x *Index) Builds() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.builds
}

// Search returns the k units nearest to query, most similar first.
func (x *Index) Search(ctx context.Context, query string, k int) ([]vectorstore.Hit, error) {
	if state, _ := x.State(); state != Ready {
		return nil, ErrNotReady
	}
	vec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("semantic: embed query: %w", err)
	}
	if isZero(vec) {
		return nil, nil
	}
	hits, err := x.storage.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}
	return hits, nil
}

// Close stops a running build, waits for it to return and releases the storage.
// A closed index never builds again.
func (x *Index) Close(ctx context.Context) error {
	x.mu.Lock()
	x.closed = true
	cancel, done := x.cancel, x.done
	x.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return x.storage.Clear(ctx)
}

func (x *Index) build(ctx context.Context) error {
	var (
		texts   []string
		indices []int
	)
	for i, u := range x.units {
		if !u.Matchable() {
			continue
		}
		texts = append(texts, u.Content)
		indices = append(indices, i)
	}
	if len(texts) == 0 {
		return errors.New("semantic: no unit text to index")
	}
	if err := x.embedder.Prepare(texts); err != nil {
		return fmt.Errorf("semantic: prepare embedder: %w", err)
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.cfg.Concurrency)
	for lo := 0; lo < len(texts); lo += x.cfg.BatchSize {
		hi := min(lo+x.cfg.BatchSize, len(texts))
		g.Go(func() error {
			vs, err := x.embedder.EmbedBatch(gctx, texts[lo:hi])
			if err != nil {
				return fmt.Errorf("semantic: embed batch %d-%d: %w", lo, hi, err)
			}
			if len(vs) != hi-lo {
				return fmt.Errorf("semantic: embed batch %d-%d: got %d vectors", lo, hi, len(vs))
			}
			copy(vectors[lo:hi], vs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	dim := x.embedder.Dimension()
	if dim <= 0 {
		dim = len(vectors[0])
	}
	if err := x.storage.Init(ctx, dim); err != nil {
		return fmt.Errorf("semantic: init storage: %w", err)
	}

	// Zero vectors carry no direction and cannot be ranked by cosine.
	points := make([]vectorstore.Point, 0, len(vectors))
	for i, v := range vectors {
		if isZero(v) {
			continue
		}
		idx := indices[i]
		points = append(points, vectorstore.Point{Index: idx, UnitID: x.units[idx].UnitID, Vector: v})
	}
	for lo := 0; lo < len(points); lo += x.cfg.BatchSize {
		hi := min(lo+x.cfg.BatchSize, len(points))
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := x.storage.Upsert(ctx, points[lo:hi]); err != nil {
			return fmt.Errorf("semantic: upsert: %w", err)
		}
	}
	return nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

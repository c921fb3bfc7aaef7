// Package retrieval turns a question into an ordered, attributed block of knowledge units.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"ragqa/internal/corpus"
	"ragqa/internal/domain"
	"ragqa/internal/expand"
	"ragqa/internal/lexical"
	"ragqa/internal/semantic"
)

var (
	// ErrIndexNotReady is returned in semantic mode while the index is building.
	ErrIndexNotReady = semantic.ErrNotReady
	// ErrEmptyCorpus is returned when no unit is loaded.
	ErrEmptyCorpus = corpus.ErrEmptyCorpus
)

// IndexFactory creates the (unstarted) semantic index of a snapshot.
type IndexFactory func(snap *corpus.Snapshot) (*semantic.Index, error)

type Options struct {
	Mode    Mode
	TopK    int
	Lexical lexical.Options
	Expand  expand.Options
}

func DefaultOptions() Options {
	return Options{
		Mode:    ModeLexical,
		TopK:    6,
		Lexical: lexical.DefaultOptions(),
		Expand:  expand.DefaultOptions(),
	}
}

// Result is the outcome of one retrieval. Indices and Units are parallel and ascend in
// corpus order; Seeds are in rank order.
type Result struct {
	Generation uint64
	Units      []domain.KnowledgeUnit
	Indices    []int
	Seeds      []int
	Keywords   []string
	Mode       Mode
	// Degraded is set when hybrid retrieval fell back to lexical seeds.
	Degraded bool
}

func (r Result) Empty() bool { return len(r.Units) == 0 }

// generation pairs a corpus snapshot with the structures derived from it. Its index
// is closed once the generation is retired and its last reader is done.
type generation struct {
	snap    *corpus.Snapshot
	entries []lexical.Entry
	index   *semantic.Index

	mu      sync.Mutex
	readers int
	retired bool
}

// retire marks g as superseded and reports whether nobody reads it any more.
func (g *generation) retire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retired = true
	return g.readers == 0
}

// release drops one reader and reports whether g is retired and now unread.
func (g *generation) release() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.readers--
	return g.retired && g.readers == 0
}

// Engine answers retrievals against one published generation at a time.
type Engine struct {
	store    *corpus.Store
	scorer   *lexical.Scorer
	expander *expand.Expander
	opts     Options
	newIndex IndexFactory
	logger   *slog.Logger
	// buildCtx outlives requests; background index builds run under it.
	buildCtx context.Context

	reloadMu sync.Mutex
	current  atomic.Pointer[generation]
}

type Option func(*Engine)

func WithIndexFactory(f IndexFactory) Option {
	return func(e *Engine) { e.newIndex = f }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithBuildContext sets the context background index builds run under.
func WithBuildContext(ctx context.Context) Option {
	return func(e *Engine) { e.buildCtx = ctx }
}

func NewEngine(store *corpus.Store, opts Options, options ...Option) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.Mode == "" {
		opts.Mode = ModeLexical
	}
	e := &Engine{
		store:    store,
		scorer:   lexical.NewScorer(opts.Lexical),
		expander: expand.New(opts.Expand),
		opts:     opts,
		logger:   slog.Default(),
		buildCtx: context.Background(),
	}
	for _, o := range options {
		o(e)
	}
	e.current.Store(&generation{snap: store.Current()})
	return e
}

func (e *Engine) Mode() Mode { return e.opts.Mode }

// Snapshot returns the corpus snapshot requests currently see.
func (e *Engine) Snapshot() *corpus.Snapshot { return e.current.Load().snap }

// IndexState reports the semantic index state of the current generation.
func (e *Engine) IndexState() (semantic.State, error) {
	idx := e.current.Load().index
	if idx == nil {
		return semantic.NotStarted, nil
	}
	return idx.State()
}

// WaitIndex blocks until the current generation's index build finishes.
func (e *Engine) WaitIndex(ctx context.Context) error {
	idx := e.current.Load().index
	if idx == nil {
		return ErrIndexNotReady
	}
	return idx.Wait(ctx)
}

// Reload loads the corpus again and publishes the new snapshot together with a fresh
// semantic index. Requests in flight keep the generation they started with; its index
// is closed when the last of them returns. An empty corpus is published and reported
// with ErrEmptyCorpus. The snapshot is loaded into a detached store generation and
// only becomes visible, in the engine and in the store, once the index exists.
func (e *Engine) Reload(ctx context.Context) (*corpus.Snapshot, error) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	snap, loadErr := e.store.Read(ctx)
	if loadErr != nil && !errors.Is(loadErr, corpus.ErrEmptyCorpus) {
		return nil, loadErr
	}

	next := &generation{snap: snap, entries: lexical.Prepare(snap.Units)}
	if e.newIndex != nil && e.opts.Mode.NeedsIndex() && !snap.Empty() {
		idx, err := e.newIndex(snap)
		if err != nil {
			return nil, fmt.Errorf("create semantic index: %w", err)
		}
		next.index = idx
		idx.Start(e.buildCtx)
	}

	e.store.Publish(snap)
	prev := e.current.Swap(next)
	if prev != nil && prev.retire() {
		e.closeIndex(ctx, prev)
	}
	return snap, loadErr
}

// acquire returns the current generation with a reader registered on it.
func (e *Engine) acquire() *generation {
	for {
		g := e.current.Load()
		g.mu.Lock()
		if !g.retired {
			g.readers++
			g.mu.Unlock()
			return g
		}
		g.mu.Unlock()
	}
}

func (e *Engine) release(g *generation) {
	if g.release() {
		// the request that finished last does not wait for storage cleanup
		go e.closeIndex(context.Background(), g)
	}
}

func (e *Engine) closeIndex(ctx context.Context, g *generation) {
	if g.index == nil {
		return
	}
	if err := g.index.Close(ctx); err != nil {
		e.logger.Warn("retrieval: release previous index", "generation", g.snap.Generation, "error", err)
	}
}

// Retrieve runs seed selection and context expansion for query. A query with no
// match yields an empty Result and a nil error.
func (e *Engine) Retrieve(ctx context.Context, query string) (Result, error) {
	g := e.acquire()
	defer e.release(g)
	res := Result{Generation: g.snap.Generation, Mode: e.opts.Mode}
	if g.snap.Empty() {
		return res, ErrEmptyCorpus
	}
	if idx := g.index; idx != nil {
		if state, _ := idx.State(); state == semantic.Failed {
			// A failed build is retried in the background; this request does not wait.
			idx.Start(e.buildCtx)
		}
	}

	start := time.Now()
	res.Keywords = e.scorer.Keywords(query)

	seeds, degraded, err := e.seeds(ctx, g, query, res.Keywords)
	if err != nil {
		return res, err
	}
	res.Seeds = seeds
	res.Degraded = degraded
	if len(seeds) == 0 {
		return res, nil
	}

	res.Indices = e.expander.Expand(seeds, res.Keywords, g.entries)
	res.Units = make([]domain.KnowledgeUnit, len(res.Indices))
	for i, idx := range res.Indices {
		res.Units[i] = g.snap.Units[idx]
	}
	e.logger.Debug("retrieval: done",
		"mode", e.opts.Mode,
		"keywords", len(res.Keywords),
		"seeds", len(seeds),
		"units", len(res.Units),
		"elapsed", time.Since(start),
	)
	return res, nil
}

func (e *Engine) seeds(ctx context.Context, g *generation, query string, keywords []string) ([]int, bool, error) {
	k := e.opts.TopK
	switch e.opts.Mode {
	case ModeSemantic:
		idx, err := e.semanticSeeds(ctx, g, query, k)
		return idx, false, err
	case ModeHybrid:
		// Fusion looks deeper than k so a unit ranked modestly by both sides can win.
		depth := 4 * k
		lex := e.lexicalSeeds(g, keywords, depth)
		sem, err := e.semanticSeeds(ctx, g, query, depth)
		if err != nil {
			e.logger.Warn("retrieval: hybrid falling back to lexical", "error", err)
			return truncate(lex, k), true, nil
		}
		return fuse(k, lex, sem), false, nil
	default:
		return e.lexicalSeeds(g, keywords, k), false, nil
	}
}

func (e *Engine) lexicalSeeds(g *generation, keywords []string, k int) []int {
	cands := e.scorer.Score(keywords, g.entries)
	out := make([]int, 0, min(k, len(cands)))
	for _, c := range cands {
		if len(out) == k {
			break
		}
		out = append(out, c.Index)
	}
	return out
}

func (e *Engine) semanticSeeds(ctx context.Context, g *generation, query string, k int) ([]int, error) {
	if g.index == nil {
		return nil, ErrIndexNotReady
	}
	hits, err := g.index.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(hits))
	for _, h := range hits {
		if h.Index >= 0 && h.Index < len(g.entries) {
			out = append(out, h.Index)
		}
	}
	return out, nil
}

func truncate(xs []int, k int) []int {
	if len(xs) > k {
		return xs[:k]
	}
	return xs
}

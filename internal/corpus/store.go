// Package corpus holds the immutable, ordered set of knowledge units the service answers from.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ragqa/internal/domain"
)

// ErrEmptyCorpus reports that loading produced no units at all.
var ErrEmptyCorpus = errors.New("corpus is empty")

// SourceReport describes the outcome of reading one source file.
type SourceReport struct {
	Name  string
	Units int
	Err   error
}

// LoadReport summarises one load.
type LoadReport struct {
	Sources []SourceReport
	Skipped int
}

// Snapshot is one fully loaded generation of the corpus. It is never mutated after
// publication; Units must be treated as read-only by callers.
type Snapshot struct {
	Generation uint64
	Units      []domain.KnowledgeUnit
	Report     LoadReport
	LoadedAt   time.Time
}

// Len returns the number of units.
func (s *Snapshot) Len() int { return len(s.Units) }

// Empty reports whether the snapshot holds no units.
func (s *Snapshot) Empty() bool { return len(s.Units) == 0 }

// Get returns the unit at index i.
func (s *Snapshot) Get(i int) (domain.KnowledgeUnit, bool) {
	if i < 0 || i >= len(s.Units) {
		return domain.KnowledgeUnit{}, false
	}
	return s.Units[i], true
}

// All returns the units in corpus order.
func (s *Snapshot) All() []domain.KnowledgeUnit { return s.Units }

// Store loads units from a directory of sources and publishes them as atomic snapshots.
type Store struct {
	dir     string
	chunker domain.Chunker
	logger  *slog.Logger

	loadMu  sync.Mutex
	gen     uint64
	current atomic.Pointer[Snapshot]
}

// Option configures a Store.
type Option func(*Store)

// WithChunker enables plain-text (.txt) sources segmented by c.
func WithChunker(c domain.Chunker) Option {
	return func(s *Store) { s.chunker = c }
}

// WithLogger sets the logger used for load warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a store over dir. It starts with an empty generation-0 snapshot.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(&Snapshot{})
	return s
}

// Dir returns the source directory.
func (s *Store) Dir() string { return s.dir }

// Current returns the latest published snapshot. It is never nil.
func (s *Store) Current() *Snapshot { return s.current.Load() }

// Get returns the unit at index i of the current snapshot.
func (s *Store) Get(i int) (domain.KnowledgeUnit, bool) { return s.Current().Get(i) }

// All returns the units of the current snapshot.
func (s *Store) All() []domain.KnowledgeUnit { return s.Current().All() }

// Len returns the unit count of the current snapshot.
func (s *Store) Len() int { return s.Current().Len() }

// Load reads the sources and publishes the result. See Read for the reading rules.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	snap, err := s.Read(ctx)
	if snap != nil {
		s.Publish(snap)
	}
	return snap, err
}

// Read reads every source in lexicographic name order and concatenates their units
// into a new, unpublished snapshot. Unreadable or malformed sources are skipped with a
// warning. When no unit is loaded the empty snapshot is still returned together with
// ErrEmptyCorpus. If the directory itself cannot be listed, no snapshot is returned.
func (s *Store) Read(ctx context.Context) (*Snapshot, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && s.gen == 0 {
			s.logger.Warn("corpus: directory missing", "dir", s.dir)
			return s.snapshot(nil, LoadReport{}), ErrEmptyCorpus
		}
		return nil, fmt.Errorf("read corpus dir %s: %w", s.dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !s.supported(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var (
		units  []domain.KnowledgeUnit
		report LoadReport
	)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loaded, err := s.readSource(name)
		report.Sources = append(report.Sources, SourceReport{Name: name, Units: len(loaded), Err: err})
		if err != nil {
			report.Skipped++
			s.logger.Warn("corpus: source skipped", "source", name, "error", err)
			continue
		}
		units = append(units, loaded...)
	}

	snap := s.snapshot(units, report)
	s.logger.Info("corpus: loaded",
		"dir", s.dir,
		"units", snap.Len(),
		"sources", len(names),
		"skipped", report.Skipped,
		"generation", snap.Generation,
	)
	if snap.Empty() {
		return snap, ErrEmptyCorpus
	}
	return snap, nil
}

// Publish makes snap the current snapshot unless a newer generation is already current.
func (s *Store) Publish(snap *Snapshot) {
	for {
		cur := s.current.Load()
		if cur.Generation >= snap.Generation {
			return
		}
		if s.current.CompareAndSwap(cur, snap) {
			return
		}
	}
}

// snapshot numbers a new generation; callers hold loadMu.
func (s *Store) snapshot(units []domain.KnowledgeUnit, report LoadReport) *Snapshot {
	s.gen++
	return &Snapshot{
		Generation: s.gen,
		Units:      units,
		Report:     report,
		LoadedAt:   time.Now(),
	}
}

func (s *Store) supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return true
	case ".txt":
		return s.chunker != nil
	}
	return false
}

func (s *Store) readSource(name string) ([]domain.KnowledgeUnit, error) {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(name), ".txt") {
		return s.chunker.Chunk(path, string(data))
	}
	units, err := decodeUnits(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return units, nil
}

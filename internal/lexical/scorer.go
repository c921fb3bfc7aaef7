// Package lexical scores knowledge units against a query by keyword overlap.
package lexical

import (
	"sort"
	"strings"

	"ragqa/internal/domain"
	"ragqa/internal/textnorm"
)

// minKeywordLength is the shortest token kept as a keyword, in characters.
const minKeywordLength = 3

// Options tunes scoring. KeywordWeight must exceed 1 so keyword density dominates
// the list-marker and page signals.
type Options struct {
	KeywordWeight float64
	MarkerBonus   float64
	PageBias      float64
	Stemming      bool
	Synonyms      Synonyms
}

// DefaultOptions returns the weights used by the service when nothing is configured.
func DefaultOptions() Options {
	return Options{
		KeywordWeight: 5,
		MarkerBonus:   2,
		PageBias:      1,
		Synonyms:      DefaultSynonyms(),
	}
}

// Scorer ranks corpus entries by keyword overlap with a query.
type Scorer struct {
	opts Options
}

func NewScorer(opts Options) *Scorer {
	if opts.KeywordWeight <= 1 {
		opts.KeywordWeight = DefaultOptions().KeywordWeight
	}
	return &Scorer{opts: opts}
}

// Keywords extracts the active keyword set of a query: normalized whitespace tokens
// without stop-words or short tokens, optionally stemmed, then expanded with synonyms.
// Order is first occurrence; duplicates are dropped.
func (s *Scorer) Keywords(query string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(w string) {
		if w == "" {
			return
		}
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	var base []string
	for _, tok := range strings.Fields(textnorm.Normalize(query)) {
		if textnorm.IsStopword(tok) || textnorm.Length(tok) < minKeywordLength {
			continue
		}
		// synonyms are keyed by whole words, so look them up before stemming
		base = append(base, tok)
		if s.opts.Stemming {
			tok = Stem(tok)
		}
		add(tok)
	}
	for _, kw := range base {
		for _, syn := range s.opts.Synonyms.Lookup(kw) {
			add(syn)
		}
	}
	return out
}

// Score returns every entry with a positive score, highest first. Ties keep corpus
// order. Units with no keyword hit are never candidates: the list-marker bonus and the
// page bias only rank units that already match.
func (s *Scorer) Score(keywords []string, entries []Entry) []domain.Candidate {
	if len(keywords) == 0 {
		return nil
	}
	var out []domain.Candidate
	for i, e := range entries {
		hits := e.Hits(keywords)
		if hits == 0 {
			continue
		}
		score := float64(hits) * s.opts.KeywordWeight
		if e.ListItem {
			score += s.opts.MarkerBonus
		}
		score += s.pageBias(e.Page)
		if score > 0 {
			out = append(out, domain.Candidate{Index: i, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Rank extracts keywords from query and scores entries against them.
func (s *Scorer) Rank(query string, entries []Entry) ([]domain.Candidate, []string) {
	keywords := s.Keywords(query)
	return s.Score(keywords, entries), keywords
}

// pageBias decreases linearly from PageBias at page 0 to zero at page 1000.
func (s *Scorer) pageBias(page int) float64 {
	if s.opts.PageBias <= 0 {
		return 0
	}
	if page > 1000 {
		page = 1000
	}
	return s.opts.PageBias * (1 - float64(page)/1000)
}

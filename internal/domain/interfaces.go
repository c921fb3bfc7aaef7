package domain

import (
	"strconv"
	"strings"
)

// Placeholders substituted for missing attribution fields.
const (
	MissingField = "--"
	DefaultPart  = "1"
)

// KnowledgeUnit is one retrievable segment of book text with its attribution.
// Units are immutable once loaded; their position in the corpus encodes textual adjacency.
type KnowledgeUnit struct {
	Content string
	Author  string
	Book    string
	Part    string
	Page    string
	UnitID  string
}

// Attribution is the citation metadata of a unit after default substitution.
type Attribution struct {
	Author string
	Book   string
	Part   string
	Page   string
}

// Attribution returns the unit's metadata with placeholders for absent fields.
func (u KnowledgeUnit) Attribution() Attribution {
	return Attribution{
		Author: orDefault(u.Author, MissingField),
		Book:   orDefault(u.Book, MissingField),
		Part:   orDefault(u.Part, DefaultPart),
		Page:   orDefault(u.Page, MissingField),
	}
}

// PageNumber returns the numeric page, or 0 when the page is absent or a placeholder.
func (u KnowledgeUnit) PageNumber() int {
	n, err := strconv.Atoi(strings.TrimSpace(u.Page))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Matchable reports whether the unit has any content to score against.
func (u KnowledgeUnit) Matchable() bool {
	return strings.TrimSpace(u.Content) != ""
}

// Candidate pairs a corpus index with a relevance score.
type Candidate struct {
	Index int
	Score float64
}

// Chunker splits a plain-text source into ordered knowledge units.
type Chunker interface {
	Chunk(source string, text string) ([]KnowledgeUnit, error)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

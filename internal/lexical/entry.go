package lexical

import (
	"strings"

	"ragqa/internal/domain"
	"ragqa/internal/textnorm"
)

// Entry is the matching view of one knowledge unit, computed once per corpus generation.
type Entry struct {
	Normalized string
	ListItem   bool
	Page       int
}

// Prepare derives the matching view of units, index for index.
func Prepare(units []domain.KnowledgeUnit) []Entry {
	entries := make([]Entry, len(units))
	for i, u := range units {
		entries[i] = Entry{
			Normalized: textnorm.Normalize(u.Content),
			ListItem:   textnorm.IsListItem(u.Content),
			Page:       u.PageNumber(),
		}
	}
	return entries
}

// ContainsAny reports whether the entry's normalized text contains any keyword.
func (e Entry) ContainsAny(keywords []string) bool {
	return e.Hits(keywords) > 0
}

// Hits counts the keywords that occur in the entry as substrings.
func (e Entry) Hits(keywords []string) int {
	if e.Normalized == "" {
		return 0
	}
	n := 0
	for _, kw := range keywords {
		if strings.Contains(e.Normalized, kw) {
			n++
		}
	}
	return n
}

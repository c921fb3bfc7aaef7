// Package fallback composes literal-quote answers from retrieved units when the
// generator cannot be used.
package fallback

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"ragqa/internal/domain"
	"ragqa/internal/prompt"
	"ragqa/internal/textnorm"
)

var sentenceRe = regexp.MustCompile(`[^.!?؟؛]+(?:[.!?؟؛]+|$)`)

// Composer quotes retrieved units verbatim, with sequential citations and a
// bibliography, in the same shape a generated answer takes.
type Composer struct {
	opening string
	// maxRunes is the length above which a unit is trimmed to its best sentences.
	maxRunes     int
	maxSentences int
}

func NewComposer(opening string, maxRunes, maxSentences int) *Composer {
	if strings.TrimSpace(opening) == "" {
		opening = prompt.DefaultOpening
	}
	if maxRunes <= 0 {
		maxRunes = 600
	}
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Composer{opening: opening, maxRunes: maxRunes, maxSentences: maxSentences}
}

// Compose renders units in the order given. Units without text are not cited.
func (c *Composer) Compose(units []domain.KnowledgeUnit, keywords []string) string {
	var b strings.Builder
	b.WriteString(c.opening)
	b.WriteString("\n")

	var cited []domain.KnowledgeUnit
	for _, u := range units {
		excerpt := c.excerpt(u.Content, keywords)
		if excerpt == "" {
			continue
		}
		cited = append(cited, u)
		b.WriteString("\n\"")
		b.WriteString(excerpt)
		b.WriteString("\" [")
		b.WriteString(strconv.Itoa(len(cited)))
		b.WriteString("]")
	}
	if len(cited) == 0 {
		return ""
	}
	b.WriteString("\n\n")
	b.WriteString(prompt.References(cited))
	return b.String()
}

// excerpt returns text unchanged when short. Longer text is reduced to the
// sentences with the most keyword hits, kept in their original order.
func (c *Composer) excerpt(text string, keywords []string) string {
	text = strings.TrimSpace(text)
	if textnorm.Length(text) <= c.maxRunes {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) <= 1 {
		return text
	}

	type scored struct {
		idx  int
		hits int
	}
	scores := make([]scored, len(sentences))
	for i, s := range sentences {
		norm := textnorm.Normalize(s)
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(norm, kw) {
				hits++
			}
		}
		scores[i] = scored{i, hits}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].hits > scores[j].hits })

	n := min(c.maxSentences, len(scores))
	// Sentences with a hit are preferred; without any, the opening sentences stand in.
	if scores[0].hits > 0 {
		for n > 1 && scores[n-1].hits == 0 {
			n--
		}
	}
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)

	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = strings.TrimSpace(sentences[idx])
	}
	return strings.Join(out, " … ")
}

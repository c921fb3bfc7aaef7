package chunker

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"ragqa/internal/domain"
	"ragqa/internal/textnorm"
)

// SentenceChunker segments plain book text into knowledge units. A line that starts
// with a list marker always becomes its own unit so enumerations survive segmentation;
// other text is grouped into units of at most sentencesPerUnit sentences, never
// crossing a paragraph boundary.
type SentenceChunker struct {
	sentencesPerUnit int
	paragraphs       *regexp.Regexp
	splitter         *regexp.Regexp
}

func NewSentenceChunker(sentencesPerUnit int) *SentenceChunker {
	if sentencesPerUnit <= 0 {
		sentencesPerUnit = 3
	}
	return &SentenceChunker{
		sentencesPerUnit: sentencesPerUnit,
		paragraphs:       regexp.MustCompile(`\n[ \t\r]*\n`),
		splitter:         regexp.MustCompile(`[^.!?؟؛]+(?:[.!?؟؛]+|$)`),
	}
}

// Chunk splits text read from source. The book title defaults to the source's base name.
func (c *SentenceChunker) Chunk(source string, text string) ([]domain.KnowledgeUnit, error) {
	book := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var units []domain.KnowledgeUnit
	emit := func(content string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		units = append(units, domain.KnowledgeUnit{
			Content: content,
			Book:    book,
			UnitID:  book + ":" + strconv.Itoa(len(units)),
		})
	}

	for _, para := range c.paragraphs.Split(text, -1) {
		var pending []string
		flush := func() {
			if len(pending) > 0 {
				emit(strings.Join(pending, " "))
				pending = pending[:0]
			}
		}
		for _, line := range strings.Split(para, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if textnorm.IsListItem(line) {
				flush()
				emit(line)
				continue
			}
			sentences := c.splitter.FindAllString(line, -1)
			if len(sentences) == 0 {
				sentences = []string{line}
			}
			for _, s := range sentences {
				s = strings.TrimSpace(s)
				if s == "" {
					continue
				}
				pending = append(pending, s)
				if len(pending) == c.sentencesPerUnit {
					flush()
				}
			}
		}
		flush()
	}
	return units, nil
}

package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentenceChunkerKeepsListItemsSeparate(t *testing.T) {
	text := "تمهيد أول. تمهيد ثان.\n1- البند الأول\n2- البند الثاني\nخاتمة القول"

	units, err := NewSentenceChunker(5).Chunk("/corpus/kitab.txt", text)
	require.NoError(t, err)

	contents := make([]string, len(units))
	for i, u := range units {
		contents[i] = u.Content
		assert.Equal(t, "kitab", u.Book)
	}
	assert.Equal(t, []string{
		"تمهيد أول. تمهيد ثان.",
		"1- البند الأول",
		"2- البند الثاني",
		"خاتمة القول",
	}, contents)
	assert.Equal(t, "kitab:0", units[0].UnitID)
	assert.Equal(t, "kitab:3", units[3].UnitID)
}

func TestSentenceChunkerGroupsSentences(t *testing.T) {
	text := "جملة أولى. جملة ثانية؟ جملة ثالثة! جملة رابعة"

	units, err := NewSentenceChunker(2).Chunk("b.txt", text)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "جملة أولى. جملة ثانية؟", units[0].Content)
	assert.Equal(t, "جملة ثالثة! جملة رابعة", units[1].Content)
}

func TestSentenceChunkerParagraphBoundary(t *testing.T) {
	text := "فقرة أولى.\n\nفقرة ثانية."

	units, err := NewSentenceChunker(10).Chunk("b.txt", text)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "فقرة أولى.", units[0].Content)
	assert.Equal(t, "فقرة ثانية.", units[1].Content)
}

func TestSentenceChunkerEmpty(t *testing.T) {
	units, err := NewSentenceChunker(0).Chunk("b.txt", "  \n\n ")
	require.NoError(t, err)
	assert.Empty(t, units)
}

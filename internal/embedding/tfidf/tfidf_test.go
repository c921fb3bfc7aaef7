package tfidf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/embedding"
)

func TestEmbedBeforePrepare(t *testing.T) {
	_, err := NewEmbedder(0).Embed(context.Background(), "نص")
	assert.ErrorIs(t, err, ErrNotPrepared)
}

func TestPrepareRejectsEmptyCorpus(t *testing.T) {
	assert.Error(t, NewEmbedder(0).Prepare(nil))
	assert.Error(t, NewEmbedder(0).Prepare([]string{"في من"}))
}

func TestEmbedSimilarity(t *testing.T) {
	corpus := []string{
		"النظرية الخليلية الحديثة في اللسانيات",
		"الحاسوب والمعالجة الآلية للغة",
		"المدرسة الخليلية والنظرية",
	}
	e := NewEmbedder(0)
	require.NoError(t, e.Prepare(corpus))
	assert.Positive(t, e.Dimension())

	ctx := context.Background()
	q, err := e.Embed(ctx, "النظرية الخليلية")
	require.NoError(t, err)
	vs, err := e.EmbedBatch(ctx, corpus)
	require.NoError(t, err)
	require.Len(t, vs, 3)

	assert.Greater(t, embedding.Cosine(q, vs[0]), embedding.Cosine(q, vs[1]))
	assert.Greater(t, embedding.Cosine(q, vs[2]), embedding.Cosine(q, vs[1]))
	assert.InDelta(t, 1.0, embedding.Cosine(vs[0], vs[0]), 1e-6)
}

func TestEmbedNormalizesSpelling(t *testing.T) {
	e := NewEmbedder(0)
	require.NoError(t, e.Prepare([]string{"المدرسة", "اللغة"}))
	a, err := e.Embed(context.Background(), "المدرسة")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "المدرسه")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEmbedUnknownTextIsZero(t *testing.T) {
	e := NewEmbedder(0)
	require.NoError(t, e.Prepare([]string{"اللغة العربية"}))
	v, err := e.Embed(context.Background(), "xyz")
	require.NoError(t, err)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestMaxFeatures(t *testing.T) {
	e := NewEmbedder(2)
	require.NoError(t, e.Prepare([]string{"اللغة العربية", "اللغة الحديثة", "اللغة العربية القديمة"}))
	assert.Equal(t, 2, e.Dimension())
}

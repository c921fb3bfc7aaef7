package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

type fakeLister struct {
	models []*genai.Model
	err    error
}

func (f fakeLister) List(context.Context, *genai.ListModelsConfig) (genai.Page[genai.Model], error) {
	return genai.Page[genai.Model]{Items: f.models}, f.err
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestResolveModelPrefersMatchingGenerator(t *testing.T) {
	lister := fakeLister{models: []*genai.Model{
		{Name: "models/text-embedding-004", SupportedActions: []string{"embedContent"}},
		{Name: "models/gemini-1.5-pro", SupportedActions: []string{"generateContent"}},
		{Name: "models/gemini-flash-embed", SupportedActions: []string{"embedContent"}},
		{Name: "models/gemini-2.0-flash", SupportedActions: []string{"generateContent", "countTokens"}},
	}}
	got := ResolveModel(context.Background(), lister, "flash", "gemini-1.5-pro", quiet())
	assert.Equal(t, "gemini-2.0-flash", got)
}

func TestResolveModelFallsBack(t *testing.T) {
	got := ResolveModel(context.Background(), fakeLister{err: errors.New("offline")}, "flash", "fallback-model", quiet())
	assert.Equal(t, "fallback-model", got)

	got = ResolveModel(context.Background(), fakeLister{models: []*genai.Model{
		{Name: "models/gemini-1.5-pro", SupportedActions: []string{"generateContent"}},
	}}, "flash", "fallback-model", quiet())
	assert.Equal(t, "fallback-model", got)
}

func TestIsRateLimit(t *testing.T) {
	assert.True(t, isRateLimit(fmt.Errorf("wrapped: %w", genai.APIError{Code: 429})))
	assert.True(t, isRateLimit(&genai.APIError{Code: 429}))
	assert.False(t, isRateLimit(genai.APIError{Code: 500}))
	assert.False(t, isRateLimit(errors.New("429")))
}

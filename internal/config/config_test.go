package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 6, cfg.Retrieval.TopK)
	assert.Equal(t, 1, cfg.Retrieval.LookBehind)
	assert.Equal(t, 20, cfg.Retrieval.LookAhead)
	assert.Equal(t, 8, cfg.Retrieval.EarlyStop)
	assert.Equal(t, 5.0, cfg.Retrieval.KeywordWeight)
	assert.Equal(t, 2.0, cfg.Retrieval.MarkerBonus)
	assert.Equal(t, 1.0, cfg.Retrieval.PageBias)
	assert.False(t, cfg.Retrieval.Stemming)
	assert.True(t, cfg.Retrieval.SynonymsEnabled())
	assert.True(t, cfg.Generator.LiteralFallbackEnabled())
	assert.Equal(t, "GEMINI_API_KEY", cfg.Generator.Gemini.APIKeyEnv)
	assert.Equal(t, "flash", cfg.Generator.Gemini.Prefer)
	assert.NoError(t, cfg.Validate())
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
retrieval:
  mode: hybrid
  top_k: 3
  synonyms: false
embedder:
  type: openai
vector_store:
  type: qdrant
generator:
  type: openai
  literal_fallback: false
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hybrid", cfg.Retrieval.Mode)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 20, cfg.Retrieval.LookAhead)
	assert.False(t, cfg.Retrieval.SynonymsEnabled())
	assert.False(t, cfg.Generator.LiteralFallbackEnabled())
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, 6334, cfg.VectorStore.Qdrant.Port)
	require.NotNil(t, cfg.Generator.OpenAI)
	assert.Equal(t, "gpt-4o-mini", cfg.Generator.OpenAI.Model)
	assert.NoError(t, cfg.Validate())
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Retrieval.TopK = 4
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":                 "8081",
		"RAGQA_CORPUS_DIR":     "/data/library",
		"RAGQA_RETRIEVAL_MODE": "semantic",
		"LOG_LEVEL":            "debug",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "/data/library", cfg.Corpus.Dir)
	assert.Equal(t, "semantic", cfg.Retrieval.Mode)
	assert.Equal(t, "debug", cfg.Log.Level)

	env["PORT"] = "eighty"
	assert.Error(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
}

func TestValidateRejectsImpossibleValues(t *testing.T) {
	cases := map[string]func(*AppConfig){
		"mode":      func(c *AppConfig) { c.Retrieval.Mode = "fuzzy" },
		"top_k":     func(c *AppConfig) { c.Retrieval.TopK = -1 },
		"window":    func(c *AppConfig) { c.Retrieval.LookAhead = -2 },
		"weight":    func(c *AppConfig) { c.Retrieval.KeywordWeight = 1 },
		"embedder":  func(c *AppConfig) { c.Embedder.Type = "word2vec" },
		"store":     func(c *AppConfig) { c.VectorStore.Type = "faiss" },
		"generator": func(c *AppConfig) { c.Generator.Type = "gpt2" },
		"port":      func(c *AppConfig) { c.Server.Port = 70000 },
		"chunker":   func(c *AppConfig) { c.Corpus.Chunker.Type = "paragraph" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

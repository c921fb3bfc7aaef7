package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port                int      `yaml:"port"`
	ReadTimeoutSecs     int      `yaml:"read_timeout_secs"`
	WriteTimeoutSecs    int      `yaml:"write_timeout_secs"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs"`
	RetryAfterSecs      int      `yaml:"retry_after_secs"`
	AdminTokenEnv       string   `yaml:"admin_token_env"`
	CORSOrigins         []string `yaml:"cors_origins,omitempty"`
}

// ChunkerConfig configures how plain-text sources are split into units.
type ChunkerConfig struct {
	Type             string `yaml:"type"`
	SentencesPerUnit int    `yaml:"sentences_per_unit"`
}

// CorpusConfig locates the knowledge sources.
type CorpusConfig struct {
	Dir     string        `yaml:"dir"`
	Chunker ChunkerConfig `yaml:"chunker"`
}

// RetrievalConfig holds the scoring and expansion tunables.
type RetrievalConfig struct {
	Mode          string  `yaml:"mode"`
	TopK          int     `yaml:"top_k"`
	LookBehind    int     `yaml:"look_behind"`
	LookAhead     int     `yaml:"look_ahead"`
	EarlyStop     int     `yaml:"early_stop"`
	KeywordWeight float64 `yaml:"keyword_weight"`
	MarkerBonus   float64 `yaml:"marker_bonus"`
	PageBias      float64 `yaml:"page_bias"`
	Stemming      bool    `yaml:"stemming"`
	Synonyms      *bool   `yaml:"synonyms,omitempty"`
	SynonymsFile  string  `yaml:"synonyms_file,omitempty"`
}

// SynonymsEnabled reports whether synonym expansion is on; it defaults to true.
func (r RetrievalConfig) SynonymsEnabled() bool { return r.Synonyms == nil || *r.Synonyms }

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	AllowNoKey  bool   `yaml:"allow_no_key,omitempty"`
}

// GeminiEmbedderConfig holds configuration for the Gemini embedder.
type GeminiEmbedderConfig struct {
	APIKeyEnv  string `yaml:"api_key_env"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions,omitempty"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type        string                `yaml:"type"`
	BatchSize   int                   `yaml:"batch_size"`
	Concurrency int                   `yaml:"concurrency"`
	MaxFeatures int                   `yaml:"max_features,omitempty"`
	OpenAI      *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Gemini      *GeminiEmbedderConfig `yaml:"gemini,omitempty"`
}

// ChromemConfig configures the embedded chromem-go store.
type ChromemConfig struct {
	PersistPath string `yaml:"persist_path,omitempty"`
	Compress    bool   `yaml:"compress,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	APIKeyEnv        string `yaml:"api_key_env,omitempty"`
	UseTLS           bool   `yaml:"use_tls,omitempty"`
	CollectionPrefix string `yaml:"collection_prefix"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type    string         `yaml:"type"`
	Chromem *ChromemConfig `yaml:"chromem,omitempty"`
	Qdrant  *QdrantConfig  `yaml:"qdrant,omitempty"`
}

// GeminiGeneratorConfig configures answer generation with Gemini.
type GeminiGeneratorConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	Prefer    string `yaml:"prefer"`
}

// OpenAIGeneratorConfig configures an OpenAI-compatible chat backend.
type OpenAIGeneratorConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Model      string `yaml:"model"`
	AllowNoKey bool   `yaml:"allow_no_key,omitempty"`
}

// GeneratorConfig selects the answer backend and its retry policy.
type GeneratorConfig struct {
	Type            string                 `yaml:"type"`
	MaxAttempts     int                    `yaml:"max_attempts"`
	RetryDelaySecs  int                    `yaml:"retry_delay_secs"`
	TimeoutSecs     int                    `yaml:"timeout_secs"`
	LiteralFallback *bool                  `yaml:"literal_fallback,omitempty"`
	Gemini          *GeminiGeneratorConfig `yaml:"gemini,omitempty"`
	OpenAI          *OpenAIGeneratorConfig `yaml:"openai,omitempty"`
}

// LiteralFallbackEnabled reports whether excerpts may be served without the
// generator; it defaults to true.
func (g GeneratorConfig) LiteralFallbackEnabled() bool {
	return g.LiteralFallback == nil || *g.LiteralFallback
}

// PromptConfig customises the instruction prompt.
type PromptConfig struct {
	Opening string `yaml:"opening,omitempty"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Corpus      CorpusConfig      `yaml:"corpus"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Prompt      PromptConfig      `yaml:"prompt"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragqa", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{
		Corpus:      CorpusConfig{Dir: "library_knowledge", Chunker: ChunkerConfig{Type: "sentence"}},
		Retrieval:   RetrievalConfig{Mode: "lexical"},
		Embedder:    EmbedderConfig{Type: "tfidf"},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Generator:   GeneratorConfig{Type: "gemini"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	s := &cfg.Server
	if s.Port == 0 {
		s.Port = 10000
	}
	if s.ReadTimeoutSecs == 0 {
		s.ReadTimeoutSecs = 15
	}
	if s.WriteTimeoutSecs == 0 {
		// generation may wait out three rate-limit delays
		s.WriteTimeoutSecs = 240
	}
	if s.ShutdownTimeoutSecs == 0 {
		s.ShutdownTimeoutSecs = 10
	}
	if s.RetryAfterSecs == 0 {
		s.RetryAfterSecs = 5
	}
	if s.AdminTokenEnv == "" {
		s.AdminTokenEnv = "RAGQA_ADMIN_TOKEN"
	}

	if cfg.Corpus.Dir == "" {
		cfg.Corpus.Dir = "library_knowledge"
	}
	if cfg.Corpus.Chunker.Type == "" {
		cfg.Corpus.Chunker.Type = "sentence"
	}
	if cfg.Corpus.Chunker.SentencesPerUnit == 0 {
		cfg.Corpus.Chunker.SentencesPerUnit = 3
	}

	r := &cfg.Retrieval
	if r.Mode == "" {
		r.Mode = "lexical"
	}
	if r.TopK == 0 {
		r.TopK = 6
	}
	if r.LookBehind == 0 {
		r.LookBehind = 1
	}
	if r.LookAhead == 0 {
		r.LookAhead = 20
	}
	if r.EarlyStop == 0 {
		r.EarlyStop = 8
	}
	if r.KeywordWeight == 0 {
		r.KeywordWeight = 5
	}
	if r.MarkerBonus == 0 {
		r.MarkerBonus = 2
	}
	if r.PageBias == 0 {
		r.PageBias = 1
	}

	e := &cfg.Embedder
	if e.Type == "" {
		e.Type = "tfidf"
	}
	if e.BatchSize == 0 {
		e.BatchSize = 100
	}
	if e.Concurrency == 0 {
		e.Concurrency = 4
	}
	if e.Type == "openai" {
		if e.OpenAI == nil {
			e.OpenAI = &OpenAIEmbedderConfig{}
		}
		if e.OpenAI.BaseURL == "" {
			e.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if e.OpenAI.APIKeyEnv == "" {
			e.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if e.OpenAI.Model == "" {
			e.OpenAI.Model = "text-embedding-3-small"
		}
		if e.OpenAI.TimeoutSecs == 0 {
			e.OpenAI.TimeoutSecs = 30
		}
	}
	if e.Type == "gemini" {
		if e.Gemini == nil {
			e.Gemini = &GeminiEmbedderConfig{}
		}
		if e.Gemini.APIKeyEnv == "" {
			e.Gemini.APIKeyEnv = "GEMINI_API_KEY"
		}
		if e.Gemini.Model == "" {
			e.Gemini.Model = "text-embedding-004"
		}
	}

	v := &cfg.VectorStore
	if v.Type == "" {
		v.Type = "memory"
	}
	if v.Type == "qdrant" {
		if v.Qdrant == nil {
			v.Qdrant = &QdrantConfig{}
		}
		if v.Qdrant.Host == "" {
			v.Qdrant.Host = "localhost"
		}
		if v.Qdrant.Port == 0 {
			v.Qdrant.Port = 6334
		}
		if v.Qdrant.CollectionPrefix == "" {
			v.Qdrant.CollectionPrefix = "ragqa_units"
		}
	}

	g := &cfg.Generator
	if g.Type == "" {
		g.Type = "gemini"
	}
	if g.MaxAttempts == 0 {
		g.MaxAttempts = 3
	}
	if g.RetryDelaySecs == 0 {
		g.RetryDelaySecs = 15
	}
	if g.TimeoutSecs == 0 {
		g.TimeoutSecs = 60
	}
	if g.Type == "gemini" {
		if g.Gemini == nil {
			g.Gemini = &GeminiGeneratorConfig{}
		}
		if g.Gemini.APIKeyEnv == "" {
			g.Gemini.APIKeyEnv = "GEMINI_API_KEY"
		}
		if g.Gemini.Model == "" {
			g.Gemini.Model = "gemini-2.0-flash"
		}
		if g.Gemini.Prefer == "" {
			g.Gemini.Prefer = "flash"
		}
	}
	if g.Type == "openai" {
		if g.OpenAI == nil {
			g.OpenAI = &OpenAIGeneratorConfig{}
		}
		if g.OpenAI.BaseURL == "" {
			g.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if g.OpenAI.APIKeyEnv == "" {
			g.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if g.OpenAI.Model == "" {
			g.OpenAI.Model = "gpt-4o-mini"
		}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// ApplyEnv overrides file settings from the environment: PORT, RAGQA_CORPUS_DIR,
// RAGQA_RETRIEVAL_MODE and LOG_LEVEL. getenv is usually os.Getenv.
func (c *AppConfig) ApplyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("RAGQA_CORPUS_DIR"); v != "" {
		c.Corpus.Dir = v
	}
	if v := getenv("RAGQA_RETRIEVAL_MODE"); v != "" {
		c.Retrieval.Mode = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate rejects settings no component can run with.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	r := c.Retrieval
	switch strings.ToLower(r.Mode) {
	case "lexical", "semantic", "hybrid":
	default:
		errs = append(errs, fmt.Errorf("retrieval.mode %q unknown", r.Mode))
	}
	if r.TopK <= 0 {
		errs = append(errs, errors.New("retrieval.top_k must be positive"))
	}
	if r.LookBehind < 0 || r.LookAhead < 0 || r.EarlyStop < 0 {
		errs = append(errs, errors.New("retrieval windows must not be negative"))
	}
	if r.KeywordWeight <= 1 {
		errs = append(errs, errors.New("retrieval.keyword_weight must exceed 1"))
	}
	if r.MarkerBonus < 0 || r.PageBias < 0 {
		errs = append(errs, errors.New("retrieval bonuses must not be negative"))
	}
	if !slices.Contains([]string{"sentence", "none"}, c.Corpus.Chunker.Type) {
		errs = append(errs, fmt.Errorf("corpus.chunker.type %q unknown", c.Corpus.Chunker.Type))
	}
	if !slices.Contains([]string{"tfidf", "openai", "gemini"}, c.Embedder.Type) {
		errs = append(errs, fmt.Errorf("embedder.type %q unknown", c.Embedder.Type))
	}
	if !slices.Contains([]string{"memory", "chromem", "qdrant"}, c.VectorStore.Type) {
		errs = append(errs, fmt.Errorf("vector_store.type %q unknown", c.VectorStore.Type))
	}
	if !slices.Contains([]string{"gemini", "openai", "none"}, c.Generator.Type) {
		errs = append(errs, fmt.Errorf("generator.type %q unknown", c.Generator.Type))
	}
	if c.Generator.MaxAttempts < 1 {
		errs = append(errs, errors.New("generator.max_attempts must be at least 1"))
	}
	return errors.Join(errs...)
}

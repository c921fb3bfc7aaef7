// Package app assembles the QA pipeline from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"ragqa/internal/chunker"
	"ragqa/internal/config"
	"ragqa/internal/corpus"
	"ragqa/internal/domain"
	"ragqa/internal/embedding"
	embgemini "ragqa/internal/embedding/gemini"
	embopenai "ragqa/internal/embedding/openai"
	"ragqa/internal/embedding/tfidf"
	"ragqa/internal/expand"
	"ragqa/internal/generator"
	gengemini "ragqa/internal/generator/gemini"
	genopenai "ragqa/internal/generator/openai"
	"ragqa/internal/lexical"
	"ragqa/internal/metrics"
	"ragqa/internal/retrieval"
	"ragqa/internal/retry"
	"ragqa/internal/semantic"
	"ragqa/internal/service"
	"ragqa/internal/vectorstore"
	"ragqa/internal/vectorstore/chromem"
	"ragqa/internal/vectorstore/memory"
	"ragqa/internal/vectorstore/qdrant"
)

// App holds the assembled components shared by the binaries.
type App struct {
	Config  *config.AppConfig
	Engine  *retrieval.Engine
	Service *service.QAService
	Metrics *metrics.Metrics

	closers []func() error
	logger  *slog.Logger
}

// New wires the store, retrieval engine, generator and service. It does not load
// the corpus; call Load for that. getenv resolves API keys, usually os.Getenv.
func New(ctx context.Context, cfg *config.AppConfig, getenv func(string) string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	a := &App{Config: cfg, Metrics: metrics.New(), logger: logger}

	storeOpts := []corpus.Option{corpus.WithLogger(logger)}
	if ch := newChunker(cfg.Corpus.Chunker); ch != nil {
		storeOpts = append(storeOpts, corpus.WithChunker(ch))
	}
	store := corpus.NewStore(cfg.Corpus.Dir, storeOpts...)

	mode, err := retrieval.ParseMode(cfg.Retrieval.Mode)
	if err != nil {
		return nil, err
	}
	lex, err := lexicalOptions(cfg.Retrieval)
	if err != nil {
		return nil, err
	}
	opts := retrieval.Options{
		Mode:    mode,
		TopK:    cfg.Retrieval.TopK,
		Lexical: lex,
		Expand: expand.Options{
			LookBehind: cfg.Retrieval.LookBehind,
			LookAhead:  cfg.Retrieval.LookAhead,
			EarlyStop:  cfg.Retrieval.EarlyStop,
		},
	}
	engineOpts := []retrieval.Option{retrieval.WithLogger(logger), retrieval.WithBuildContext(ctx)}
	if mode.NeedsIndex() {
		factory, err := a.indexFactory(ctx, cfg, getenv)
		if err != nil {
			a.Close()
			return nil, err
		}
		engineOpts = append(engineOpts, retrieval.WithIndexFactory(factory))
	}
	a.Engine = retrieval.NewEngine(store, opts, engineOpts...)

	gen, err := newGenerator(ctx, cfg.Generator, getenv, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Service = service.NewQAService(a.Engine, gen, service.Config{
		Retry: retry.Policy{
			MaxAttempts:    cfg.Generator.MaxAttempts,
			Delay:          time.Duration(cfg.Generator.RetryDelaySecs) * time.Second,
			AttemptTimeout: time.Duration(cfg.Generator.TimeoutSecs) * time.Second,
		},
		LiteralFallback: cfg.Generator.LiteralFallbackEnabled(),
		RetryAfter:      time.Duration(cfg.Server.RetryAfterSecs) * time.Second,
		Opening:         cfg.Prompt.Opening,
	}, a.Metrics, logger)
	return a, nil
}

// Load (re)loads the corpus. An empty corpus is logged, not returned: the service
// answers not_ready until a reload finds units.
func (a *App) Load(ctx context.Context) (*corpus.Snapshot, error) {
	snap, err := a.Engine.Reload(ctx)
	if errors.Is(err, corpus.ErrEmptyCorpus) {
		a.logger.Warn("app: corpus is empty", "dir", a.Config.Corpus.Dir)
		err = nil
	}
	if err != nil {
		return nil, err
	}
	a.Metrics.Corpus(snap.Len(), snap.Generation)
	return snap, nil
}

// Close releases backend connections.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("app: close", "error", err)
		}
	}
	a.closers = nil
}

func newChunker(cfg config.ChunkerConfig) domain.Chunker {
	switch cfg.Type {
	case "sentence", "":
		return chunker.NewSentenceChunker(cfg.SentencesPerUnit)
	default:
		return nil
	}
}

func lexicalOptions(cfg config.RetrievalConfig) (lexical.Options, error) {
	opts := lexical.Options{
		KeywordWeight: cfg.KeywordWeight,
		MarkerBonus:   cfg.MarkerBonus,
		PageBias:      cfg.PageBias,
		Stemming:      cfg.Stemming,
	}
	if !cfg.SynonymsEnabled() {
		return opts, nil
	}
	opts.Synonyms = lexical.DefaultSynonyms()
	if cfg.SynonymsFile != "" {
		syn, err := lexical.LoadSynonyms(cfg.SynonymsFile, opts.Synonyms)
		if err != nil {
			return opts, err
		}
		opts.Synonyms = syn
	}
	return opts, nil
}

// indexFactory returns a constructor for per-generation semantic indexes. Remote
// embedders and store connections are shared; the TF-IDF vocabulary and the
// collection are per generation.
func (a *App) indexFactory(ctx context.Context, cfg *config.AppConfig, getenv func(string) string) (retrieval.IndexFactory, error) {
	var newEmbedder func() embedding.Embedder
	switch cfg.Embedder.Type {
	case "tfidf", "":
		maxFeatures := cfg.Embedder.MaxFeatures
		newEmbedder = func() embedding.Embedder { return tfidf.NewEmbedder(maxFeatures) }
	case "openai":
		oc := cfg.Embedder.OpenAI
		if oc == nil {
			return nil, errors.New("openai embedder config missing")
		}
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:    oc.BaseURL,
			APIKeyEnv:  oc.APIKeyEnv,
			Model:      oc.Model,
			Timeout:    time.Duration(oc.TimeoutSecs) * time.Second,
			AllowNoKey: oc.AllowNoKey,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		newEmbedder = func() embedding.Embedder { return client }
	case "gemini":
		gc := cfg.Embedder.Gemini
		if gc == nil {
			return nil, errors.New("gemini embedder config missing")
		}
		emb, err := embgemini.New(ctx, embgemini.Config{
			APIKey:     getenv(gc.APIKeyEnv),
			Model:      gc.Model,
			Dimensions: gc.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini embedder init failed: %w", err)
		}
		newEmbedder = func() embedding.Embedder { return emb }
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var newStorage func(gen uint64) vectorstore.Storage
	switch cfg.VectorStore.Type {
	case "memory", "":
		newStorage = func(uint64) vectorstore.Storage { return memory.NewStorage() }
	case "chromem":
		var path string
		var compress bool
		if c := cfg.VectorStore.Chromem; c != nil {
			path, compress = c.PersistPath, c.Compress
		}
		db, err := chromem.NewDB(path, compress)
		if err != nil {
			return nil, err
		}
		newStorage = func(gen uint64) vectorstore.Storage {
			return db.Collection(fmt.Sprintf("units_%d", gen))
		}
	case "qdrant":
		qc := cfg.VectorStore.Qdrant
		if qc == nil {
			return nil, errors.New("qdrant config missing")
		}
		var apiKey string
		if qc.APIKeyEnv != "" {
			apiKey = getenv(qc.APIKeyEnv)
		}
		client, err := qdrant.NewClient(qdrant.Config{Host: qc.Host, Port: qc.Port, APIKey: apiKey, UseTLS: qc.UseTLS})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		prefix := qc.CollectionPrefix
		newStorage = func(gen uint64) vectorstore.Storage {
			return client.Collection(fmt.Sprintf("%s_%d", prefix, gen))
		}
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	semCfg := semantic.Config{BatchSize: cfg.Embedder.BatchSize, Concurrency: cfg.Embedder.Concurrency}
	logger := a.logger
	return func(snap *corpus.Snapshot) (*semantic.Index, error) {
		return semantic.New(snap.Units, newEmbedder(), newStorage(snap.Generation), semCfg, logger), nil
	}, nil
}

func newGenerator(ctx context.Context, cfg config.GeneratorConfig, getenv func(string) string, logger *slog.Logger) (generator.Generator, error) {
	switch cfg.Type {
	case "none":
		return nil, nil
	case "gemini", "":
		gc := cfg.Gemini
		if gc == nil {
			return nil, errors.New("gemini generator config missing")
		}
		g, err := gengemini.New(ctx, gengemini.Config{
			APIKey: getenv(gc.APIKeyEnv),
			Model:  gc.Model,
			Prefer: gc.Prefer,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini generator init failed: %w", err)
		}
		logger.Info("app: generator ready", "generator", g.Name())
		return g, nil
	case "openai":
		oc := cfg.OpenAI
		if oc == nil {
			return nil, errors.New("openai generator config missing")
		}
		c, err := genopenai.NewClient(genopenai.Config{
			BaseURL:    oc.BaseURL,
			APIKeyEnv:  oc.APIKeyEnv,
			Model:      oc.Model,
			Timeout:    time.Duration(cfg.TimeoutSecs) * time.Second,
			AllowNoKey: oc.AllowNoKey,
		})
		if err != nil {
			return nil, fmt.Errorf("openai generator init failed: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
	}
}

// LoadConfig reads path, or the default locations when path is empty, then applies
// environment overrides and validates the result. It returns the path it used.
func LoadConfig(path string, getenv func(string) string) (*config.AppConfig, string, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if path == "" {
		cfg, path, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, path, nil
}

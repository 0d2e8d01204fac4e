package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"

	"ragqa/config"
	"ragqa/internal/adapter/analyzer"
	"ragqa/internal/adapter/cache"
	"ragqa/internal/adapter/chunker"
	"ragqa/internal/adapter/dataset"
	"ragqa/internal/adapter/embedding"
	"ragqa/internal/adapter/llm"
	"ragqa/internal/adapter/loader"
	"ragqa/internal/adapter/memstore"
	"ragqa/internal/adapter/metrics"
	"ragqa/internal/adapter/qdrant"
	"ragqa/internal/adapter/ratelimit"
	"ragqa/internal/adapter/sqlite"
	"ragqa/internal/adapter/store"
	"ragqa/internal/port"
	"ragqa/internal/usecase"
)

// app builds adapters from the loaded config and closes them afterwards.
// Every component is built at most once per command.
type app struct {
	cfg     *config.Config
	closers []io.Closer
	bolts   map[string]*store.BoltStore
	limiter *rate.Limiter

	embedder port.Embedder
	model    port.LLM
	index    port.VectorIndex
}

func newApp() *app {
	c := GetConfig()
	return &app{
		cfg:     c,
		bolts:   make(map[string]*store.BoltStore),
		limiter: ratelimit.NewLimiter(c.RateLimit.RequestsPerSecond, c.RateLimit.Burst),
	}
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

// boltStore opens a state file once; bbolt holds an exclusive lock on it.
func (a *app) boltStore(p string) (*store.BoltStore, error) {
	path := statePath(p)
	if st, ok := a.bolts[path]; ok {
		return st, nil
	}
	st, err := store.NewBoltStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	a.bolts[path] = st
	a.closers = append(a.closers, st)
	return st, nil
}

// stateStore holds index manifests, whatever the index backend.
func (a *app) stateStore() (*store.BoltStore, error) {
	return a.boltStore(a.cfg.VectorStore.Path)
}

func (a *app) retryPolicy() usecase.RetryPolicy {
	r := a.cfg.Retry
	return usecase.RetryPolicy{
		MaxAttempts:     r.MaxAttempts,
		InitialInterval: r.InitialInterval,
		MaxInterval:     r.MaxInterval,
	}
}

func (a *app) Embedder(ctx context.Context) (port.Embedder, error) {
	if a.embedder != nil {
		return a.embedder, nil
	}

	ec := a.cfg.Embedding
	apiKey := os.Getenv(ec.APIKeyEnv)

	var e port.Embedder
	switch ec.Provider {
	case "gemini":
		g, err := embedding.NewGeminiEmbedder(ctx, apiKey, ec.Model, ec.Dimension)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		a.closers = append(a.closers, g)
		e = g
	case "openai":
		o, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:    apiKey,
			Model:     ec.Model,
			BaseURL:   ec.BaseURL,
			Dimension: ec.Dimension,
			BatchSize: ec.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		e = o
	case "ollama":
		o, err := embedding.NewOllamaEmbedder(ec.Model, ec.BaseURL, ec.Dimension)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		e = o
	case "mock":
		e = embedding.NewMockEmbedder(ec.Dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", ec.Provider)
	}

	e = ratelimit.WrapEmbedder(e, a.limiter)
	if ec.CacheSize > 0 {
		e = cache.NewCachedEmbedder(e, cache.NewEmbeddingCache(ec.CacheSize, ec.CacheTTL))
	}
	a.embedder = e
	return e, nil
}

func (a *app) LLM(ctx context.Context) (port.LLM, error) {
	if a.model != nil {
		return a.model, nil
	}

	lc := a.cfg.LLM
	llmCfg := llm.Config{
		APIKey:      os.Getenv(lc.APIKeyEnv),
		Model:       lc.Model,
		BaseURL:     lc.BaseURL,
		Temperature: lc.Temperature,
		MaxTokens:   lc.MaxTokens,
	}

	var m port.LLM
	switch lc.Provider {
	case "gemini":
		g, err := llm.NewGemini(ctx, llmCfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g)
		m = g
	case "openai":
		o, err := llm.NewOpenAI(llmCfg)
		if err != nil {
			return nil, err
		}
		m = o
	case "anthropic":
		c, err := llm.NewAnthropic(llmCfg)
		if err != nil {
			return nil, err
		}
		m = c
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", lc.Provider)
	}

	a.model = ratelimit.WrapLLM(m, a.limiter)
	return a.model, nil
}

func (a *app) Index() (port.VectorIndex, error) {
	if a.index != nil {
		return a.index, nil
	}

	vc := a.cfg.VectorStore
	switch vc.Backend {
	case "bolt":
		st, err := a.boltStore(vc.Path)
		if err != nil {
			return nil, err
		}
		a.index = store.NewBoltVectorIndex(st)
	case "qdrant":
		a.index = qdrant.New(qdrant.Config{
			URL:    vc.URL,
			APIKey: os.Getenv(vc.APIKeyEnv),
		})
	case "memory":
		a.index = memstore.NewMemoryIndex()
	default:
		return nil, fmt.Errorf("unsupported vector store backend: %s", vc.Backend)
	}
	return a.index, nil
}

func (a *app) Retriever(ctx context.Context) (*usecase.RetrieveUseCase, error) {
	e, err := a.Embedder(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := a.Index()
	if err != nil {
		return nil, err
	}
	return usecase.NewRetrieveUseCase(e, idx, a.cfg.VectorStore.Collection, a.retryPolicy(), logger), nil
}

func (a *app) Query(ctx context.Context) (*usecase.QueryUseCase, error) {
	r, err := a.Retriever(ctx)
	if err != nil {
		return nil, err
	}
	m, err := a.LLM(ctx)
	if err != nil {
		return nil, err
	}

	var history port.HistoryStore
	if a.cfg.History.Enabled {
		st, err := a.boltStore(a.cfg.History.Path)
		if err != nil {
			return nil, err
		}
		history = st
	}

	generator := usecase.NewAnswerGenerator(m, analyzer.NewTokenizer(false), logger)
	return usecase.NewQueryUseCase(r, generator, history, a.cfg.Query.Concurrency, logger), nil
}

func (a *app) Ingest(ctx context.Context) (*usecase.IngestUseCase, error) {
	ic := a.cfg.Ingest
	chk, err := chunker.NewTextChunker(ic.ChunkSize, ic.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	e, err := a.Embedder(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := a.Index()
	if err != nil {
		return nil, err
	}
	ld := loader.New(loader.Config{
		PDFToTextPath: ic.PDFToTextPath,
		HTTPTimeout:   ic.HTTPTimeout,
	})
	return usecase.NewIngestUseCase(ld, chk, e, idx, usecase.IngestConfig{
		Collection:  a.cfg.VectorStore.Collection,
		Concurrency: ic.LoadConcurrency,
		Retry:       a.retryPolicy(),
	}, logger), nil
}

// Results returns the evaluation result store: JSON files in the results
// directory plus the SQLite history. Listing reads the SQLite history.
func (a *app) Results() (port.ResultStore, error) {
	ec := a.cfg.Evaluation
	dbPath := statePath(ec.HistoryDB)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db)
	return dataset.Tee{db, dataset.NewResultDir(statePath(ec.ResultsDir))}, nil
}

func (a *app) Dataset(path string) port.TestCaseStore {
	if path == "" {
		path = a.cfg.Evaluation.DatasetPath
	}
	return dataset.NewTestCaseFile(statePath(path))
}

func (a *app) Generator(ctx context.Context) (*usecase.TestSetGenerator, error) {
	q, err := a.Query(ctx)
	if err != nil {
		return nil, err
	}
	r, err := a.Retriever(ctx)
	if err != nil {
		return nil, err
	}
	m, err := a.LLM(ctx)
	if err != nil {
		return nil, err
	}
	return usecase.NewTestSetGenerator(r, m, q, a.cfg.Evaluation.Concurrency, logger), nil
}

func (a *app) Evaluate(ctx context.Context, metricNames []string) (*usecase.EvaluateUseCase, error) {
	generator, err := a.Generator(ctx)
	if err != nil {
		return nil, err
	}
	q, err := a.Query(ctx)
	if err != nil {
		return nil, err
	}
	m, err := a.LLM(ctx)
	if err != nil {
		return nil, err
	}
	e, err := a.Embedder(ctx)
	if err != nil {
		return nil, err
	}

	deps := metrics.Deps{LLM: m, Embedder: e, Tokenizer: analyzer.NewTokenizer(true)}
	if len(metricNames) == 0 {
		metricNames = a.cfg.Evaluation.Metrics
	}
	if len(metricNames) == 0 {
		metricNames = metrics.DefaultNames
	}
	full, err := metrics.Build(metricNames, deps)
	if err != nil {
		return nil, err
	}
	quick, err := metrics.Build(metrics.QuickNames, deps)
	if err != nil {
		return nil, err
	}

	results, err := a.Results()
	if err != nil {
		return nil, err
	}

	return usecase.NewEvaluateUseCase(full, quick, generator, q, results, a.cfg.Evaluation.Concurrency, logger), nil
}

func (a *app) generationParams() usecase.GenerationParams {
	ec := a.cfg.Evaluation
	return usecase.GenerationParams{
		Seeds:            ec.SeedQueries,
		NumCases:         ec.NumTestCases,
		TopK:             a.cfg.Retrieve.TopK,
		QuestionsPerSeed: ec.QuestionsPerSeed,
	}
}

// indexSettings fingerprints what the collection's vectors depend on.
func (a *app) indexSettings(e port.Embedder) store.IndexSettings {
	return store.IndexSettings{
		EmbeddingProvider: a.cfg.Embedding.Provider,
		EmbeddingModel:    e.ModelName(),
		Dimension:         e.Dimension(),
		ChunkSize:         a.cfg.Ingest.ChunkSize,
		ChunkOverlap:      a.cfg.Ingest.ChunkOverlap,
	}
}

// ABOUTME: Builds the question answering pipeline from a loaded configuration
// ABOUTME: Shared by the CLI and the standalone MCP server so both wire the same stack
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/harper/wellrag/internal/config"
	"github.com/harper/wellrag/internal/core"
	"github.com/harper/wellrag/internal/ingest"
	"github.com/harper/wellrag/internal/llm"
	"github.com/harper/wellrag/internal/logger"
	"github.com/harper/wellrag/internal/metrics"
	"github.com/harper/wellrag/internal/storage"
	"github.com/harper/wellrag/internal/storage/sqlite"
)

// App holds the wired components. Fields stay nil until the step that builds them ran.
type App struct {
	Config    *config.Config
	Log       logger.Logger
	DB        *sqlite.DB
	Chunks    *sqlite.ChunkStore
	Turns     *sqlite.TurnLog
	Client    *llm.OpenAIClient
	Retriever *core.HybridRetriever
	Metrics   *metrics.Metrics
	Agent     *core.Agent
}

// OpenStore opens only the database, for commands that never call a model
func OpenStore(cfg *config.Config, log logger.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	if log == nil {
		log = logger.NewNop()
	}
	db, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", cfg.Storage.DBPath, err)
	}
	return fromDB(cfg, log, db), nil
}

func fromDB(cfg *config.Config, log logger.Logger, db *sqlite.DB) *App {
	return &App{
		Config: cfg,
		Log:    log,
		DB:     db,
		Chunks: sqlite.NewChunkStore(db),
		Turns:  sqlite.NewTurnLog(db),
	}
}

// Open wires the full query pipeline on top of the store
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	a, err := OpenStore(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := a.Wire(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// Connect creates the model client
func (a *App) Connect() error {
	if a.Client != nil {
		return nil
	}
	client, err := llm.NewOpenAIClient(a.Config.Service, a.Log)
	if err != nil {
		return fmt.Errorf("creating model client: %w", err)
	}
	a.Client = client
	return nil
}

// Wire builds retriever, generator, judge, extractor and agent
func (a *App) Wire(ctx context.Context) error {
	if err := a.Connect(); err != nil {
		return err
	}

	a.Metrics = metrics.New()
	retriever, agent, err := BuildPipeline(a.Config, a.Client, a.Chunks, a.Turns, a.Metrics, a.Log)
	if err != nil {
		return err
	}
	a.Retriever = retriever
	a.Agent = agent

	if _, err := agent.RefreshWells(ctx); err != nil {
		a.Log.Warn("could not load known wells", "error", err)
	}
	return nil
}

// BuildPipeline wires the query pipeline over any chunk store. recorder and
// observer may be nil.
func BuildPipeline(cfg *config.Config, service llm.Service, store storage.ChunkStore, recorder core.TurnRecorder, observer core.Observer, log logger.Logger) (*core.HybridRetriever, *core.Agent, error) {
	if log == nil {
		log = logger.NewNop()
	}
	retriever, err := core.NewHybridRetriever(store, service, cfg.Retrieval, log)
	if err != nil {
		return nil, nil, err
	}
	judge, err := core.NewEnsembleJudge(service, cfg.Judge, cfg.Timeouts, log)
	if err != nil {
		return nil, nil, err
	}
	agent, err := core.NewAgent(core.AgentDeps{
		Config:    cfg,
		Retriever: retriever,
		Generator: core.NewAnswerGenerator(service, cfg, log),
		Judge:     judge,
		Extractor: core.NewTrajectoryExtractor(service, cfg, log),
		Recorder:  recorder,
		Wells:     store,
		Observer:  observer,
		Logger:    log,
	})
	if err != nil {
		return nil, nil, err
	}
	return retriever, agent, nil
}

// NewIngester builds an ingester over store. A nil embedder stores chunks for
// keyword search only.
func NewIngester(cfg *config.Config, embedder llm.Embedder, store ingest.ChunkWriter, log logger.Logger) *ingest.Ingester {
	chunker := core.NewChunker(cfg.Chunking, core.NewTokenCounter(cfg.Chunking.TokenEncoding))
	return ingest.NewIngester(chunker, embedder, store, log)
}

// Ingester builds an ingester writing into this store. Without a client or with
// embed false, chunks are stored for keyword search only.
func (a *App) Ingester(embed bool) *ingest.Ingester {
	var embedder llm.Embedder
	if embed && a.Client != nil {
		embedder = a.Client
	}
	return NewIngester(a.Config, embedder, a.Chunks, a.Log)
}

// ServeMetrics exposes /metrics in the background when metrics.addr is set
func (a *App) ServeMetrics(ctx context.Context) {
	if a.Metrics == nil || a.Config.Metrics.Addr == "" {
		return
	}
	go func() {
		if err := a.Metrics.Serve(ctx, a.Config.Metrics.Addr, a.Log); err != nil {
			a.Log.Error("metrics server stopped", "error", err)
		}
	}()
}

// Close releases the database
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

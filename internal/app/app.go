// Package app wires the configured components together for the binaries.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/timmy/helloreadme/internal/config"
	"github.com/timmy/helloreadme/internal/domain"
	"github.com/timmy/helloreadme/internal/llm"
	"github.com/timmy/helloreadme/internal/logger"
	"github.com/timmy/helloreadme/internal/repository"
	"github.com/timmy/helloreadme/internal/service"
	"github.com/timmy/helloreadme/internal/source/ghsource"
	"github.com/timmy/helloreadme/internal/storage"
)

// App holds the long-lived components built from one configuration.
type App struct {
	Config     *config.Config
	Store      *repository.ProjectRepository
	Vectors    *repository.QdrantRepository
	Forge      *ghsource.Client
	Collector  *service.Collector
	Embedder   *service.EmbeddingService
	Index      *service.VectorIndex
	Vectorizer *service.Vectorizer
	LLM        *llm.Manager
	RAG        *service.RAGService
	Expander   *service.QueryExpansionService
	Artifacts  *storage.Artifacts
}

// NewLogger builds the process logger from cfg and installs it as the default.
// console replaces stdout when no log file is configured; nil keeps stdout.
func NewLogger(cfg *config.LogConfig, name string, console io.Writer) *logger.Logger {
	lc := &logger.Config{
		Level:       cfg.Level,
		Format:      cfg.Format,
		ServiceName: name,
		FilePath:    cfg.FilePath,
		FileOnly:    cfg.FileOnly,
		MaxSizeMB:   cfg.MaxSizeMB,
		MaxBackups:  cfg.MaxBackups,
		MaxAgeDays:  cfg.MaxAgeDays,
		Compress:    true,
	}
	if cfg.FilePath == "" {
		lc.Output = console
	}
	l := logger.New(lc)
	logger.SetDefaultLogger(l)
	return l
}

// New opens the database and constructs every component. Network backends
// (Qdrant, LLM providers) are not contacted until first use.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	store := repository.NewProjectRepository(db, cfg.Database)

	vectors, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Embedding.Dimensions,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("initialize qdrant: %w", err)
	}

	forge, err := ghsource.NewClient(ctx, cfg.GitHub)
	if err != nil {
		_ = store.Close()
		_ = vectors.Close()
		return nil, fmt.Errorf("initialize github client: %w", err)
	}

	objects, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		_ = store.Close()
		_ = vectors.Close()
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	embedder := service.NewEmbeddingService(&cfg.Embedding)
	index := service.NewVectorIndex(vectors, embedder)
	manager := llm.NewManager(&cfg.LLM)

	return &App{
		Config:     cfg,
		Store:      store,
		Vectors:    vectors,
		Forge:      forge,
		Collector:  service.NewCollector(forge, store, service.NewCollectorConfig(cfg)),
		Embedder:   embedder,
		Index:      index,
		Vectorizer: service.NewVectorizer(store, index),
		LLM:        manager,
		RAG:        service.NewRAGService(index, store, manager),
		Expander:   service.NewQueryExpansionService(manager),
		Artifacts:  storage.NewArtifacts(objects, cfg.Storage.Prefix),
	}, nil
}

// Scheduler returns the periodic collector, or nil when scheduling is off.
func (a *App) Scheduler() *service.Scheduler {
	c := a.Config.Collection
	if !c.Scheduled || c.IntervalHours <= 0 {
		return nil
	}
	return service.NewScheduler(a.Collector.Collect, time.Duration(c.IntervalHours)*time.Hour,
		domain.CollectRequest{Type: domain.CollectionTypeSearch})
}

// Close releases the database and vector store connections.
func (a *App) Close() error {
	var firstErr error
	if err := a.Vectors.Close(); err != nil {
		firstErr = err
	}
	if err := a.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

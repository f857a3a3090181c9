package bootstrap

import (
	"context"
	"fmt"

	"github.com/lexhub/legal-retrieval/internal/config"
	"github.com/lexhub/legal-retrieval/internal/core/ports"
	"github.com/lexhub/legal-retrieval/internal/core/usecase"
	"github.com/lexhub/legal-retrieval/internal/infrastructure/analyzer"
	"github.com/lexhub/legal-retrieval/internal/infrastructure/embedding/ollama"
	"github.com/lexhub/legal-retrieval/internal/infrastructure/index/dense"
	"github.com/lexhub/legal-retrieval/internal/infrastructure/index/sparse"
	"github.com/lexhub/legal-retrieval/internal/infrastructure/resilience"
	"github.com/lexhub/legal-retrieval/internal/infrastructure/snapshot"
	"github.com/lexhub/legal-retrieval/internal/observability/metrics"
)

const serviceName = "retrieval-api"

type App struct {
	Config    config.Config
	Metrics   *metrics.ServerMetrics
	Snapshot  ports.SnapshotReader
	Retriever ports.Retriever
}

// New loads the corpus snapshot, probes the embedding model, and wires
// the hybrid retriever. Every failure here is fatal: the service must
// refuse to start on a broken snapshot or an unreachable encoder
// rather than degrade silently.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	snap, err := snapshot.Open(cfg.SnapshotDir)
	if err != nil {
		return nil, fmt.Errorf("load snapshot from %s: %w", cfg.SnapshotDir, err)
	}
	manifest := snap.Manifest()

	if cfg.OllamaEmbedModel != manifest.Embedding.Model {
		return nil, fmt.Errorf("embedding model mismatch: configured %q, snapshot built with %q",
			cfg.OllamaEmbedModel, manifest.Embedding.Model)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	embedder := ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, executor)

	dimension, err := embedder.Probe(ctx)
	if err != nil {
		return nil, fmt.Errorf("embedding encoder unavailable: %w", err)
	}
	if dimension != manifest.Embedding.Dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: model yields %d, snapshot built with %d",
			dimension, manifest.Embedding.Dimension)
	}

	denseIndex := dense.NewIndex(manifest.Embedding.Dimension)
	if err := denseIndex.Load(snap.Vectors()); err != nil {
		return nil, fmt.Errorf("load dense index: %w", err)
	}

	sparseIndex := sparse.NewIndex(manifest.BM25.K1, manifest.BM25.B)
	if err := sparseIndex.Load(snap.Postings(), snap.DocLengths()); err != nil {
		return nil, fmt.Errorf("load sparse index: %w", err)
	}

	// The query tokenizer is reconstructed from the manifest so it
	// cannot drift from the settings the snapshot was built with.
	tokenizer := analyzer.NewTokenizer(manifest.Tokenizer.MinTokenLength, manifest.Tokenizer.FilterStopwords)

	serverMetrics := metrics.NewServerMetrics(serviceName)
	retriever := usecase.NewRetrieveUseCase(
		embedder,
		denseIndex,
		sparseIndex,
		snap,
		tokenizer,
		serverMetrics.Observer(serviceName),
		usecase.RetrieveConfig{
			TopK:       cfg.RetrievalTopK,
			Candidates: cfg.RetrievalCandidates,
			RRFK:       cfg.RetrievalRRFK,
			Timeout:    cfg.RetrievalTimeout,
		},
	)

	return &App{
		Config:    cfg,
		Metrics:   serverMetrics,
		Snapshot:  snap,
		Retriever: retriever,
	}, nil
}

package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/lexhub/legal-retrieval/internal/core/domain"
	"github.com/lexhub/legal-retrieval/internal/core/ports"
)

const (
	defaultTopK = 5
	// Oversampling gives the fusion step more candidates than the
	// caller asked for, so a chunk strong in only one signal can
	// still surface.
	defaultCandidates = 25
)

type RetrieveConfig struct {
	TopK       int
	Candidates int
	RRFK       int
	Timeout    time.Duration
}

// RetrieveUseCase is the hybrid retriever: encode, fan out to the dense
// and sparse indices, fuse, resolve attributions. It holds no per-query
// state; everything it reads is the immutable corpus snapshot.
type RetrieveUseCase struct {
	embedder  ports.Embedder
	dense     ports.DenseIndex
	sparse    ports.SparseIndex
	chunks    ports.ChunkStore
	tokenizer ports.Tokenizer
	observer  ports.RetrievalObserver
	cfg       RetrieveConfig
}

func NewRetrieveUseCase(
	embedder ports.Embedder,
	dense ports.DenseIndex,
	sparse ports.SparseIndex,
	chunks ports.ChunkStore,
	tokenizer ports.Tokenizer,
	observer ports.RetrievalObserver,
	cfg RetrieveConfig,
) *RetrieveUseCase {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.Candidates <= 0 {
		cfg.Candidates = defaultCandidates
	}
	if cfg.RRFK <= 0 {
		cfg.RRFK = 60
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &RetrieveUseCase{
		embedder:  embedder,
		dense:     dense,
		sparse:    sparse,
		chunks:    chunks,
		tokenizer: tokenizer,
		observer:  observer,
		cfg:       cfg,
	}
}

func (uc *RetrieveUseCase) Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievedChunk, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		uc.observer.ObserveRetrieval(0, time.Since(start).Seconds())
		return []domain.RetrievedChunk{}, nil
	}
	if topK <= 0 {
		topK = uc.cfg.TopK
	}

	if uc.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.cfg.Timeout)
		defer cancel()
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, uc.classifyFault("embed query", err)
	}

	dense, sparse, err := uc.searchBoth(ctx, queryVector, query)
	if err != nil {
		return nil, err
	}

	fused := trimCandidates(fuseReciprocalRank(dense, sparse, uc.cfg.RRFK), topK)

	results := make([]domain.RetrievedChunk, 0, len(fused))
	for _, candidate := range fused {
		chunk, ok := uc.chunks.Resolve(candidate.ID)
		if !ok {
			// Index/store desync: drop the item, keep the query alive.
			slog.Warn("attribution_desync", "chunk_id", candidate.ID)
			uc.observer.RecordAttributionDesync()
			continue
		}
		results = append(results, domain.RetrievedChunk{
			SourceDocument: chunk.SourceDocument,
			Text:           chunk.Text,
			Score:          candidate.Score,
		})
	}

	uc.observer.ObserveRetrieval(len(results), time.Since(start).Seconds())
	return results, nil
}

// searchBoth runs the dense and sparse searches concurrently and joins
// before fusion. A fault in either one fails the whole query: a fused
// list built from a single signal would silently degrade ranking
// quality, which is worse than an explicit failure here.
func (uc *RetrieveUseCase) searchBoth(ctx context.Context, queryVector []float32, query string) ([]domain.DenseHit, []domain.SparseHit, error) {
	type denseResult struct {
		hits []domain.DenseHit
		err  error
	}

	denseCh := make(chan denseResult, 1)
	go func() {
		hits, err := uc.dense.Search(ctx, queryVector, uc.cfg.Candidates)
		denseCh <- denseResult{hits: hits, err: err}
	}()

	sparseHits, sparseErr := uc.sparse.Search(ctx, uc.tokenizer.Tokenize(query), uc.cfg.Candidates)
	denseRes := <-denseCh

	if denseRes.err != nil {
		return nil, nil, uc.classifyFault("dense search", denseRes.err)
	}
	if sparseErr != nil {
		return nil, nil, uc.classifyFault("sparse search", sparseErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, uc.classifyFault("retrieval", err)
	}
	return denseRes.hits, sparseHits, nil
}

func (uc *RetrieveUseCase) classifyFault(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		uc.observer.RecordTimeout()
		return domain.WrapError(domain.ErrQueryTimeout, operation, err)
	}
	if domain.IsKind(err, domain.ErrIndexUnavailable) {
		return err
	}
	return domain.WrapError(domain.ErrRetrievalUnavailable, operation, err)
}

type noopObserver struct{}

func (noopObserver) ObserveRetrieval(int, float64) {}
func (noopObserver) RecordTimeout()               {}
func (noopObserver) RecordAttributionDesync()     {}

package ports

import (
	"context"

	"github.com/lexhub/legal-retrieval/internal/core/domain"
)

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// DenseIndex performs nearest-neighbour search over chunk embeddings.
// Hits come back ordered ascending by distance.
type DenseIndex interface {
	Search(ctx context.Context, queryVector []float32, k int) ([]domain.DenseHit, error)
	Size() int
}

// SparseIndex performs BM25 keyword search over chunk tokens.
// Hits come back ordered descending by score.
type SparseIndex interface {
	Search(ctx context.Context, queryTokens []string, k int) ([]domain.SparseHit, error)
	Size() int
}

// Tokenizer turns free text into index terms. The same implementation
// must serve the snapshot build and the query path.
type Tokenizer interface {
	Tokenize(text string) []string
}

// ChunkStore resolves chunk IDs to their source document and text.
type ChunkStore interface {
	Resolve(id int) (domain.Chunk, bool)
	Size() int
}

// RetrievalObserver records per-query retrieval outcomes.
type RetrievalObserver interface {
	ObserveRetrieval(resultCount int, durationSeconds float64)
	RecordTimeout()
	RecordAttributionDesync()
}

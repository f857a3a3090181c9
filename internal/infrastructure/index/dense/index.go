package dense

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/lexhub/legal-retrieval/internal/core/domain"
)

// Index is a brute-force cosine index over the snapshot's chunk
// embeddings. Vectors are positional: row i belongs to chunk ID i.
// After Load completes the index is immutable, so concurrent searches
// need no locking; the loaded flag is the only gate.
type Index struct {
	dimension int
	vectors   [][]float32
	norms     []float64
	loaded    atomic.Bool
}

func NewIndex(dimension int) *Index {
	return &Index{dimension: dimension}
}

// Load installs the snapshot vectors and opens the index for searches.
func (idx *Index) Load(vectors [][]float32) error {
	norms := make([]float64, len(vectors))
	for i, vector := range vectors {
		if len(vector) != idx.dimension {
			return fmt.Errorf("vector %d: dimension %d, expected %d", i, len(vector), idx.dimension)
		}
		norms[i] = vectorNorm(vector)
	}

	idx.vectors = vectors
	idx.norms = norms
	idx.loaded.Store(true)
	return nil
}

func (idx *Index) Size() int {
	if !idx.loaded.Load() {
		return 0
	}
	return len(idx.vectors)
}

// Search returns the k nearest chunks ordered ascending by cosine
// distance. Asking for more than the corpus holds returns everything.
func (idx *Index) Search(ctx context.Context, queryVector []float32, k int) ([]domain.DenseHit, error) {
	if !idx.loaded.Load() {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "dense search", fmt.Errorf("index not loaded"))
	}
	if k < 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "dense search", fmt.Errorf("k must be >= 1, got %d", k))
	}
	if len(queryVector) != idx.dimension {
		return nil, domain.WrapError(domain.ErrInvalidInput, "dense search",
			fmt.Errorf("query dimension %d, expected %d", len(queryVector), idx.dimension))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryNorm := vectorNorm(queryVector)

	hits := make([]domain.DenseHit, 0, len(idx.vectors))
	for id, vector := range idx.vectors {
		hits = append(hits, domain.DenseHit{
			ID:       id,
			Distance: cosineDistance(queryVector, vector, queryNorm, idx.norms[id]),
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func cosineDistance(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 1.0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return 1.0 - dot/(normA*normB)
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

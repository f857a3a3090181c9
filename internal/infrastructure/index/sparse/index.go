package sparse

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/lexhub/legal-retrieval/internal/core/domain"
)

const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Posting records one chunk's term frequency for an index term.
type Posting struct {
	ID int `json:"id"`
	TF int `json:"tf"`
}

// Index is an in-memory BM25 inverted index over the snapshot's chunk
// tokens. Like the dense index it is immutable once loaded and safe for
// unsynchronized concurrent searches.
type Index struct {
	k1 float64
	b  float64

	postings   map[string][]Posting
	docLengths []int
	avgDocLen  float64
	loaded     atomic.Bool
}

func NewIndex(k1, b float64) *Index {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b < 0 || b > 1 {
		b = DefaultB
	}
	return &Index{k1: k1, b: b}
}

// Load installs the posting lists and per-chunk token counts.
// docLengths is positional: entry i is the token count of chunk ID i.
func (idx *Index) Load(postings map[string][]Posting, docLengths []int) error {
	for term, list := range postings {
		for _, posting := range list {
			if posting.ID < 0 || posting.ID >= len(docLengths) {
				return fmt.Errorf("term %q: posting references chunk %d outside corpus of %d", term, posting.ID, len(docLengths))
			}
		}
	}

	var totalTokens int
	for _, length := range docLengths {
		totalTokens += length
	}
	if len(docLengths) > 0 {
		idx.avgDocLen = float64(totalTokens) / float64(len(docLengths))
	}

	idx.postings = postings
	idx.docLengths = docLengths
	idx.loaded.Store(true)
	return nil
}

func (idx *Index) Size() int {
	if !idx.loaded.Load() {
		return 0
	}
	return len(idx.docLengths)
}

// Search scores every chunk containing at least one query term and
// returns the top k ordered descending by BM25 score. An empty token
// set is a normal no-match outcome, not an error.
func (idx *Index) Search(ctx context.Context, queryTokens []string, k int) ([]domain.SparseHit, error) {
	if !idx.loaded.Load() {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "sparse search", fmt.Errorf("index not loaded"))
	}
	if k < 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "sparse search", fmt.Errorf("k must be >= 1, got %d", k))
	}
	if len(queryTokens) == 0 || len(idx.docLengths) == 0 {
		return []domain.SparseHit{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	totalDocs := float64(len(idx.docLengths))
	scores := make(map[int]float64)

	for _, term := range queryTokens {
		list, ok := idx.postings[term]
		if !ok {
			continue
		}

		docsWithTerm := float64(len(list))
		idf := math.Log((totalDocs-docsWithTerm+0.5)/(docsWithTerm+0.5) + 1)

		for _, posting := range list {
			tf := float64(posting.TF)
			dl := float64(idx.docLengths[posting.ID])
			norm := idx.k1 * (1 - idx.b + idx.b*dl/idx.avgDocLen)
			scores[posting.ID] += idf * (tf * (idx.k1 + 1)) / (tf + norm)
		}
	}

	hits := make([]domain.SparseHit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, domain.SparseHit{ID: id, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

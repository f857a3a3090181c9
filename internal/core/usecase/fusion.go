package usecase

import (
	"sort"

	"github.com/lexhub/legal-retrieval/internal/core/domain"
)

// fuseReciprocalRank merges a dense and a sparse ranked list with
// Reciprocal Rank Fusion: each candidate accumulates 1/(rank+k) for
// every list it appears in. A list a candidate is absent from
// contributes nothing; no worst-case rank is imputed.
func fuseReciprocalRank(dense []domain.DenseHit, sparse []domain.SparseHit, rrfK int) []domain.RankedChunk {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[int]domain.RankedChunk, len(dense)+len(sparse))

	for i, hit := range dense {
		candidate := acc[hit.ID]
		candidate.ID = hit.ID
		candidate.DenseRank = i + 1
		candidate.Score += 1.0 / float64(i+1+rrfK)
		acc[hit.ID] = candidate
	}
	for i, hit := range sparse {
		candidate := acc[hit.ID]
		candidate.ID = hit.ID
		candidate.SparseRank = i + 1
		candidate.Score += 1.0 / float64(i+1+rrfK)
		acc[hit.ID] = candidate
	}

	out := make([]domain.RankedChunk, 0, len(acc))
	for _, candidate := range acc {
		out = append(out, candidate)
	}

	// Equal fused scores resolve to the lower chunk ID so repeated
	// queries return the same ordering.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})

	return out
}

func trimCandidates(candidates []domain.RankedChunk, limit int) []domain.RankedChunk {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}

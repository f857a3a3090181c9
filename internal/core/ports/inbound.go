package ports

import (
	"context"

	"github.com/lexhub/legal-retrieval/internal/core/domain"
)

// Retriever is the inbound contract for hybrid document retrieval.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievedChunk, error)
}

// SnapshotReader exposes metadata about the loaded corpus snapshot.
type SnapshotReader interface {
	Info() domain.SnapshotInfo
}

package domain

// Chunk is the atomic retrievable unit of the corpus. ID is positional:
// it must line up with the dense index's vector ordering and the sparse
// index's document ordering within one snapshot.
type Chunk struct {
	ID             int    `json:"id"`
	SourceDocument string `json:"source_document"`
	Text           string `json:"text"`
}

// DenseHit is a dense-index match, ordered ascending by cosine distance.
type DenseHit struct {
	ID       int
	Distance float64
}

// SparseHit is a lexical-index match, ordered descending by BM25 score.
type SparseHit struct {
	ID    int
	Score float64
}

// RankedChunk is the transient fusion record for one candidate chunk.
// DenseRank and SparseRank are 1-based; zero means absent from that list.
type RankedChunk struct {
	ID         int
	DenseRank  int
	SparseRank int
	Score      float64
}

// RetrievedChunk is a fused, attribution-resolved result returned to callers.
type RetrievedChunk struct {
	SourceDocument string  `json:"source_document"`
	Text           string  `json:"text"`
	Score          float64 `json:"score"`
}

// SnapshotInfo describes the corpus snapshot a process is serving.
type SnapshotInfo struct {
	Name           string `json:"name"`
	BuiltAt        string `json:"built_at"`
	ChunkCount     int    `json:"chunk_count"`
	EmbeddingModel string `json:"embedding_model"`
	Dimension      int    `json:"dimension"`
}

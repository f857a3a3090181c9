package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/lexhub/legal-retrieval/internal/core/domain"
	"github.com/lexhub/legal-retrieval/internal/core/ports"
	"github.com/lexhub/legal-retrieval/internal/infrastructure/index/sparse"
)

// Write builds a snapshot directory from aligned chunk and vector
// slices. Chunk IDs are assigned positionally, which is what keeps the
// three stores join-compatible at serve time. The tokenizer must be
// configured exactly as the manifest records, since the query path will
// reconstruct it from there.
func Write(dir string, manifest Manifest, chunks []domain.Chunk, vectors [][]float32, tokenizer ports.Tokenizer) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("write snapshot: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	manifest.ChunkCount = len(chunks)
	if err := manifest.Validate(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	for i, vector := range vectors {
		if len(vector) != manifest.Embedding.Dimension {
			return fmt.Errorf("write snapshot: vector %d has dimension %d, manifest says %d",
				i, len(vector), manifest.Embedding.Dimension)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dir, CorpusFile), 0o644, nil)
	if err != nil {
		return fmt.Errorf("create corpus db: %w", err)
	}
	defer db.Close()

	postings := make(map[string][]sparse.Posting)
	tokenCounts := make([]int, len(chunks))
	for id, chunk := range chunks {
		tokens := tokenizer.Tokenize(chunk.Text)
		tokenCounts[id] = len(tokens)

		termFreq := make(map[string]int, len(tokens))
		for _, token := range tokens {
			termFreq[token]++
		}
		for term, tf := range termFreq {
			postings[term] = append(postings[term], sparse.Posting{ID: id, TF: tf})
		}
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		chunkBucket, err := tx.CreateBucketIfNotExists(bucketChunks)
		if err != nil {
			return err
		}
		vectorBucket, err := tx.CreateBucketIfNotExists(bucketVectors)
		if err != nil {
			return err
		}
		postingBucket, err := tx.CreateBucketIfNotExists(bucketPostings)
		if err != nil {
			return err
		}

		for id, chunk := range chunks {
			if chunk.SourceDocument == "" {
				return fmt.Errorf("chunk %d: empty source document", id)
			}
			if chunk.Text == "" {
				return fmt.Errorf("chunk %d: empty text", id)
			}
			data, err := json.Marshal(storedChunk{
				ID:             id,
				SourceDocument: chunk.SourceDocument,
				Text:           chunk.Text,
				TokenCount:     tokenCounts[id],
			})
			if err != nil {
				return err
			}
			if err := chunkBucket.Put(chunkKey(id), data); err != nil {
				return err
			}
			if err := vectorBucket.Put(chunkKey(id), encodeVector(vectors[id])); err != nil {
				return err
			}
		}

		for term, list := range postings {
			data, err := json.Marshal(list)
			if err != nil {
				return err
			}
			if err := postingBucket.Put([]byte(term), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write corpus db: %w", err)
	}

	return manifest.Write(dir)
}

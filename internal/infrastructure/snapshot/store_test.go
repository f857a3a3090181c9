package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.etcd.io/bbolt"

	"github.com/lexhub/legal-retrieval/internal/core/domain"
	"github.com/lexhub/legal-retrieval/internal/infrastructure/analyzer"
)

func testManifest(chunkCount int) Manifest {
	return Manifest{
		Name:       "corpus-test",
		BuiltAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		ChunkCount: chunkCount,
		Embedding:  EmbeddingParams{Model: "nomic-embed-text", Dimension: 3},
		BM25:       BM25Params{K1: 1.2, B: 0.75},
		Tokenizer:  TokenizerParams{MinTokenLength: 2, FilterStopwords: true},
	}
}

func testChunks(n int) ([]domain.Chunk, [][]float32) {
	chunks := make([]domain.Chunk, 0, n)
	vectors := make([][]float32, 0, n)
	for i := 0; i < n; i++ {
		chunks = append(chunks, domain.Chunk{
			SourceDocument: fmt.Sprintf("act-%d.pdf", i),
			Text:           fmt.Sprintf("registration fee section %d", i),
		})
		vectors = append(vectors, []float32{float32(i), 1, 0})
	}
	return chunks, vectors
}

func writeTestSnapshot(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	chunks, vectors := testChunks(n)
	tok := analyzer.NewTokenizer(2, true)
	if err := Write(dir, testManifest(n), chunks, vectors, tok); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return dir
}

func TestWriteThenOpenRoundTrip(t *testing.T) {
	dir := writeTestSnapshot(t, 4)

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.Size() != 4 {
		t.Fatalf("expected 4 chunks, got %d", s.Size())
	}
	if len(s.Vectors()) != 4 {
		t.Fatalf("expected 4 vectors, got %d", len(s.Vectors()))
	}

	chunk, ok := s.Resolve(2)
	if !ok {
		t.Fatalf("chunk 2 did not resolve")
	}
	if chunk.SourceDocument != "act-2.pdf" {
		t.Fatalf("expected act-2.pdf, got %q", chunk.SourceDocument)
	}

	if len(s.Postings()["registration"]) != 4 {
		t.Fatalf("expected 'registration' posting in all 4 chunks, got %d", len(s.Postings()["registration"]))
	}
	for id, length := range s.DocLengths() {
		if length == 0 {
			t.Fatalf("chunk %d has zero recorded token count", id)
		}
	}
}

func TestOpenPreservesVectorValues(t *testing.T) {
	dir := writeTestSnapshot(t, 3)

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := s.Vectors()[2][0]; got != 2 {
		t.Fatalf("expected vector 2 first component 2, got %v", got)
	}
}

func TestOpenMissingManifestIsCorrupt(t *testing.T) {
	dir := writeTestSnapshot(t, 2)
	if err := os.Remove(filepath.Join(dir, ManifestFile)); err != nil {
		t.Fatalf("remove manifest: %v", err)
	}

	if _, err := Open(dir); !domain.IsKind(err, domain.ErrSnapshotCorrupt) {
		t.Fatalf("expected ErrSnapshotCorrupt, got %v", err)
	}
}

func TestOpenMissingCorpusIsCorrupt(t *testing.T) {
	dir := writeTestSnapshot(t, 2)
	if err := os.Remove(filepath.Join(dir, CorpusFile)); err != nil {
		t.Fatalf("remove corpus: %v", err)
	}

	if _, err := Open(dir); !domain.IsKind(err, domain.ErrSnapshotCorrupt) {
		t.Fatalf("expected ErrSnapshotCorrupt, got %v", err)
	}
}

func TestOpenManifestCountMismatchIsCorrupt(t *testing.T) {
	dir := writeTestSnapshot(t, 3)

	m := testManifest(4)
	if err := m.Write(dir); err != nil {
		t.Fatalf("rewrite manifest: %v", err)
	}

	if _, err := Open(dir); !domain.IsKind(err, domain.ErrSnapshotCorrupt) {
		t.Fatalf("expected ErrSnapshotCorrupt for count mismatch, got %v", err)
	}
}

func TestOpenChunkVectorDesyncIsCorrupt(t *testing.T) {
	dir := writeTestSnapshot(t, 3)

	// Drop one chunk entry so the dense index reports more vectors
	// than the chunk store holds.
	db, err := bbolt.Open(filepath.Join(dir, CorpusFile), 0o644, nil)
	if err != nil {
		t.Fatalf("open corpus db: %v", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChunks).Delete(chunkKey(2))
	})
	if err != nil {
		t.Fatalf("delete chunk: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close corpus db: %v", err)
	}

	if _, err := Open(dir); !domain.IsKind(err, domain.ErrSnapshotCorrupt) {
		t.Fatalf("expected ErrSnapshotCorrupt for desync, got %v", err)
	}
}

func TestWriteRejectsMisalignedInputs(t *testing.T) {
	dir := t.TempDir()
	chunks, vectors := testChunks(3)
	tok := analyzer.NewTokenizer(2, true)

	if err := Write(dir, testManifest(3), chunks, vectors[:2], tok); err == nil {
		t.Fatalf("expected error for chunk/vector count mismatch")
	}
	if err := Write(dir, testManifest(3), chunks, [][]float32{{1}, {2}, {3}}, tok); err == nil {
		t.Fatalf("expected error for vector dimension mismatch")
	}
}

package snapshot

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/lexhub/legal-retrieval/internal/core/domain"
	"github.com/lexhub/legal-retrieval/internal/infrastructure/index/sparse"
)

var (
	bucketChunks   = []byte("chunks")
	bucketVectors  = []byte("vectors")
	bucketPostings = []byte("postings")
)

type storedChunk struct {
	ID             int    `json:"id"`
	SourceDocument string `json:"source_document"`
	Text           string `json:"text"`
	TokenCount     int    `json:"token_count"`
}

// Snapshot is a fully loaded corpus snapshot. Open reads everything
// into memory and verifies the cross-store invariants, so a returned
// Snapshot is internally consistent and immutable for the process
// lifetime. It also serves as the chunk store.
type Snapshot struct {
	manifest   Manifest
	chunks     map[int]domain.Chunk
	vectors    [][]float32
	postings   map[string][]sparse.Posting
	docLengths []int
}

// Open loads the snapshot under dir. Any missing file, decode failure,
// or corpus-size disagreement between the chunk, vector, and posting
// stores comes back wrapped as ErrSnapshotCorrupt: the caller must
// refuse to serve traffic.
func Open(dir string) (*Snapshot, error) {
	manifest, err := LoadManifest(dir)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSnapshotCorrupt, "open snapshot", err)
	}

	db, err := bbolt.Open(filepath.Join(dir, CorpusFile), 0o400, &bbolt.Options{
		ReadOnly: true,
		Timeout:  time.Second,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrSnapshotCorrupt, "open snapshot", fmt.Errorf("open corpus db: %w", err))
	}
	defer db.Close()

	s := &Snapshot{
		manifest: manifest,
		chunks:   make(map[int]domain.Chunk, manifest.ChunkCount),
		postings: make(map[string][]sparse.Posting),
	}

	err = db.View(func(tx *bbolt.Tx) error {
		if err := s.loadChunks(tx); err != nil {
			return err
		}
		if err := s.loadVectors(tx); err != nil {
			return err
		}
		return s.loadPostings(tx)
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrSnapshotCorrupt, "open snapshot", err)
	}

	if err := s.verifyConsistency(); err != nil {
		return nil, domain.WrapError(domain.ErrSnapshotCorrupt, "open snapshot", err)
	}
	return s, nil
}

func (s *Snapshot) loadChunks(tx *bbolt.Tx) error {
	b := tx.Bucket(bucketChunks)
	if b == nil {
		return fmt.Errorf("chunks bucket missing")
	}

	return b.ForEach(func(k, v []byte) error {
		var stored storedChunk
		if err := json.Unmarshal(v, &stored); err != nil {
			return fmt.Errorf("chunk %s: %w", string(k), err)
		}
		if stored.SourceDocument == "" {
			return fmt.Errorf("chunk %d: empty source document", stored.ID)
		}
		if stored.Text == "" {
			return fmt.Errorf("chunk %d: empty text", stored.ID)
		}
		s.chunks[stored.ID] = domain.Chunk{
			ID:             stored.ID,
			SourceDocument: stored.SourceDocument,
			Text:           stored.Text,
		}
		s.docLengths = append(s.docLengths, 0)
		return nil
	})
}

func (s *Snapshot) loadVectors(tx *bbolt.Tx) error {
	b := tx.Bucket(bucketVectors)
	if b == nil {
		return fmt.Errorf("vectors bucket missing")
	}

	dim := s.manifest.Embedding.Dimension
	s.vectors = make([][]float32, 0, b.Stats().KeyN)

	return b.ForEach(func(k, v []byte) error {
		id := int(binary.BigEndian.Uint64(k))
		if len(v) != dim*4 {
			return fmt.Errorf("vector %d: %d bytes, expected %d for dimension %d", id, len(v), dim*4, dim)
		}
		if id != len(s.vectors) {
			return fmt.Errorf("vector ids not contiguous: got %d at position %d", id, len(s.vectors))
		}
		s.vectors = append(s.vectors, decodeVector(v))
		return nil
	})
}

func (s *Snapshot) loadPostings(tx *bbolt.Tx) error {
	b := tx.Bucket(bucketPostings)
	if b == nil {
		return fmt.Errorf("postings bucket missing")
	}

	if err := b.ForEach(func(k, v []byte) error {
		var list []sparse.Posting
		if err := json.Unmarshal(v, &list); err != nil {
			return fmt.Errorf("postings %q: %w", string(k), err)
		}
		s.postings[string(k)] = list
		return nil
	}); err != nil {
		return err
	}

	// Chunk token lengths are recoverable from the stored chunks.
	lengths := tx.Bucket(bucketChunks)
	return lengths.ForEach(func(_, v []byte) error {
		var stored storedChunk
		if err := json.Unmarshal(v, &stored); err != nil {
			return err
		}
		if stored.ID >= 0 && stored.ID < len(s.docLengths) {
			s.docLengths[stored.ID] = stored.TokenCount
		}
		return nil
	})
}

// verifyConsistency enforces the positional-alignment invariant: the
// three stores were built from one corpus pass, so their sizes must
// agree with each other and with the manifest.
func (s *Snapshot) verifyConsistency() error {
	if len(s.chunks) != s.manifest.ChunkCount {
		return fmt.Errorf("chunk store holds %d entries, manifest says %d", len(s.chunks), s.manifest.ChunkCount)
	}
	if len(s.vectors) != len(s.chunks) {
		return fmt.Errorf("dense index holds %d vectors, chunk store holds %d entries", len(s.vectors), len(s.chunks))
	}
	for id := 0; id < len(s.chunks); id++ {
		if _, ok := s.chunks[id]; !ok {
			return fmt.Errorf("chunk ids not contiguous: %d missing", id)
		}
	}
	for term, list := range s.postings {
		for _, posting := range list {
			if posting.ID < 0 || posting.ID >= len(s.chunks) {
				return fmt.Errorf("term %q references chunk %d outside corpus of %d", term, posting.ID, len(s.chunks))
			}
		}
	}
	return nil
}

func (s *Snapshot) Manifest() Manifest { return s.manifest }

func (s *Snapshot) Info() domain.SnapshotInfo {
	return domain.SnapshotInfo{
		Name:           s.manifest.Name,
		BuiltAt:        s.manifest.BuiltAt.UTC().Format(time.RFC3339),
		ChunkCount:     s.manifest.ChunkCount,
		EmbeddingModel: s.manifest.Embedding.Model,
		Dimension:      s.manifest.Embedding.Dimension,
	}
}

// Resolve implements the chunk store contract.
func (s *Snapshot) Resolve(id int) (domain.Chunk, bool) {
	chunk, ok := s.chunks[id]
	return chunk, ok
}

func (s *Snapshot) Size() int { return len(s.chunks) }

func (s *Snapshot) Vectors() [][]float32 { return s.vectors }

func (s *Snapshot) Postings() map[string][]sparse.Posting { return s.postings }

func (s *Snapshot) DocLengths() []int { return s.docLengths }

func decodeVector(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

func encodeVector(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(x))
	}
	return out
}

func chunkKey(id int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

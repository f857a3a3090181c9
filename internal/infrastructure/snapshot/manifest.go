package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ManifestFile = "manifest.yaml"
	CorpusFile   = "corpus.db"
)

// Manifest describes one corpus snapshot. It is written by the builder
// and pins everything the online path must agree with the offline
// build on: corpus size, embedding model and dimension, BM25
// parameters, and tokenizer settings.
type Manifest struct {
	Name       string          `yaml:"name"`
	BuiltAt    time.Time       `yaml:"built_at"`
	ChunkCount int             `yaml:"chunk_count"`
	Embedding  EmbeddingParams `yaml:"embedding"`
	BM25       BM25Params      `yaml:"bm25"`
	Tokenizer  TokenizerParams `yaml:"tokenizer"`
}

type EmbeddingParams struct {
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

type BM25Params struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
}

type TokenizerParams struct {
	MinTokenLength  int  `yaml:"min_token_length"`
	FilterStopwords bool `yaml:"filter_stopwords"`
}

func (m Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest: name is empty")
	}
	if m.ChunkCount < 0 {
		return fmt.Errorf("manifest: negative chunk count %d", m.ChunkCount)
	}
	if m.Embedding.Dimension <= 0 {
		return fmt.Errorf("manifest: embedding dimension %d", m.Embedding.Dimension)
	}
	if m.Embedding.Model == "" {
		return fmt.Errorf("manifest: embedding model is empty")
	}
	return nil
}

func LoadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func (m Manifest) Write(dir string) error {
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

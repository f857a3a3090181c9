package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/lexhub/legal-retrieval/internal/core/domain"
	"github.com/lexhub/legal-retrieval/internal/infrastructure/analyzer"
	"github.com/lexhub/legal-retrieval/internal/infrastructure/chunking"
	"github.com/lexhub/legal-retrieval/internal/infrastructure/embedding/ollama"
	"github.com/lexhub/legal-retrieval/internal/infrastructure/resilience"
	"github.com/lexhub/legal-retrieval/internal/infrastructure/snapshot"
)

var (
	flagChunksFile string
	flagOutDir     string
	flagName       string
	flagOllamaURL  string
	flagEmbedModel string
	flagBatchSize  int
	flagSplitChars int
	flagOverlap    int
)

var rootCmd = &cobra.Command{
	Use:   "snapshotctl",
	Short: "Build and verify corpus snapshots for the retrieval engine",
	Long: `snapshotctl turns a pre-chunked corpus into the snapshot bundle the
retrieval API serves: a bbolt corpus database (chunks, vectors, BM25
postings) plus a manifest pinning the embedding model and tokenizer
settings.

Example usage:
  snapshotctl build --chunks corpus.jsonl --out ./data/snapshot --name corpus-2026-08
  snapshotctl verify ./data/snapshot`,
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a snapshot from a chunks JSONL file",
	RunE:  runBuild,
}

var verifyCmd = &cobra.Command{
	Use:   "verify [dir]",
	Short: "Run the startup consistency check against a snapshot directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	buildCmd.Flags().StringVar(&flagChunksFile, "chunks", "", "chunks JSONL file (one {source_document, text} per line)")
	buildCmd.Flags().StringVar(&flagOutDir, "out", "./data/snapshot", "output snapshot directory")
	buildCmd.Flags().StringVar(&flagName, "name", "", "snapshot name (e.g. corpus-2026-08)")
	buildCmd.Flags().StringVar(&flagOllamaURL, "ollama-url", "http://localhost:11434", "embedding server URL")
	buildCmd.Flags().StringVar(&flagEmbedModel, "embed-model", "nomic-embed-text", "embedding model")
	buildCmd.Flags().IntVar(&flagBatchSize, "batch-size", 32, "texts per embedding request")
	buildCmd.Flags().IntVar(&flagSplitChars, "split-chars", 0, "split chunk texts longer than this many characters (0 disables)")
	buildCmd.Flags().IntVar(&flagOverlap, "split-overlap", 120, "overlap between split windows in characters")
	_ = buildCmd.MarkFlagRequired("chunks")
	_ = buildCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(verifyCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type chunkRecord struct {
	SourceDocument string `json:"source_document"`
	Text           string `json:"text"`
}

func runBuild(cmd *cobra.Command, _ []string) error {
	chunks, err := readChunks(flagChunksFile)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks in %s", flagChunksFile)
	}
	fmt.Printf("Read %d chunks from %s\n", len(chunks), flagChunksFile)

	if flagSplitChars > 0 {
		splitter := chunking.NewSplitter(flagSplitChars, flagOverlap)
		split := make([]domain.Chunk, 0, len(chunks))
		for _, chunk := range chunks {
			for _, window := range splitter.Split(chunk.Text) {
				split = append(split, domain.Chunk{
					SourceDocument: chunk.SourceDocument,
					Text:           window,
				})
			}
		}
		if len(split) != len(chunks) {
			fmt.Printf("Split oversized chunks: %d -> %d\n", len(chunks), len(split))
		}
		chunks = split
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	embedder := ollama.New(flagOllamaURL, flagEmbedModel, executor)

	dimension, err := embedder.Probe(cmd.Context())
	if err != nil {
		return fmt.Errorf("embedding model unavailable: %w", err)
	}

	bar := progressbar.Default(int64(len(chunks)), "embedding")
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += flagBatchSize {
		end := start + flagBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}

		batch, err := embedder.Embed(cmd.Context(), texts)
		if err != nil {
			return fmt.Errorf("embed batch at %d: %w", start, err)
		}
		vectors = append(vectors, batch...)
		_ = bar.Add(end - start)
	}

	manifest := snapshot.Manifest{
		Name:    flagName,
		BuiltAt: time.Now().UTC(),
		Embedding: snapshot.EmbeddingParams{
			Model:     flagEmbedModel,
			Dimension: dimension,
		},
		BM25: snapshot.BM25Params{
			K1: 1.2,
			B:  0.75,
		},
		Tokenizer: snapshot.TokenizerParams{
			MinTokenLength:  2,
			FilterStopwords: true,
		},
	}
	tokenizer := analyzer.NewTokenizer(manifest.Tokenizer.MinTokenLength, manifest.Tokenizer.FilterStopwords)

	if err := snapshot.Write(flagOutDir, manifest, chunks, vectors, tokenizer); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	fmt.Printf("Snapshot %q written to %s (%d chunks, dimension %d)\n", flagName, flagOutDir, len(chunks), dimension)
	return nil
}

func runVerify(_ *cobra.Command, args []string) error {
	snap, err := snapshot.Open(args[0])
	if err != nil {
		return err
	}

	info := snap.Info()
	fmt.Printf("Snapshot %q is consistent: %d chunks, model %s, dimension %d, built %s\n",
		info.Name, info.ChunkCount, info.EmbeddingModel, info.Dimension, info.BuiltAt)
	return nil
}

func readChunks(path string) ([]domain.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chunks file: %w", err)
	}
	defer f.Close()

	var chunks []domain.Chunk
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var record chunkRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if record.SourceDocument == "" || record.Text == "" {
			return nil, fmt.Errorf("line %d: source_document and text are required", line)
		}
		chunks = append(chunks, domain.Chunk{
			SourceDocument: record.SourceDocument,
			Text:           record.Text,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read chunks file: %w", err)
	}
	return chunks, nil
}

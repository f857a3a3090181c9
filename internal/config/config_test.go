package config

import (
	"testing"
	"time"
)

func TestLoadRetrievalDefaults(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "")
	t.Setenv("RETRIEVAL_CANDIDATES", "")
	t.Setenv("RETRIEVAL_RRF_K", "")
	t.Setenv("RETRIEVAL_TIMEOUT_MS", "")

	cfg := Load()
	if cfg.RetrievalTopK != 5 {
		t.Fatalf("expected default top k 5, got %d", cfg.RetrievalTopK)
	}
	if cfg.RetrievalCandidates != 25 {
		t.Fatalf("expected default candidates 25, got %d", cfg.RetrievalCandidates)
	}
	if cfg.RetrievalRRFK != 60 {
		t.Fatalf("expected default rrf k 60, got %d", cfg.RetrievalRRFK)
	}
	if cfg.RetrievalTimeout != 2*time.Second {
		t.Fatalf("expected default timeout 2s, got %v", cfg.RetrievalTimeout)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "8")
	t.Setenv("RETRIEVAL_CANDIDATES", "40")
	t.Setenv("RETRIEVAL_RRF_K", "90")
	t.Setenv("RETRIEVAL_TIMEOUT_MS", "500")
	t.Setenv("SNAPSHOT_DIR", "/srv/corpus/2026-08")

	cfg := Load()
	if cfg.RetrievalTopK != 8 {
		t.Fatalf("expected top k 8, got %d", cfg.RetrievalTopK)
	}
	if cfg.RetrievalCandidates != 40 {
		t.Fatalf("expected candidates 40, got %d", cfg.RetrievalCandidates)
	}
	if cfg.RetrievalRRFK != 90 {
		t.Fatalf("expected rrf k 90, got %d", cfg.RetrievalRRFK)
	}
	if cfg.RetrievalTimeout != 500*time.Millisecond {
		t.Fatalf("expected timeout 500ms, got %v", cfg.RetrievalTimeout)
	}
	if cfg.SnapshotDir != "/srv/corpus/2026-08" {
		t.Fatalf("expected snapshot dir override, got %q", cfg.SnapshotDir)
	}
}

func TestLoadFallsBackOnInvalidInt(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "not-a-number")

	cfg := Load()
	if cfg.RetrievalTopK != 5 {
		t.Fatalf("expected fallback top k 5, got %d", cfg.RetrievalTopK)
	}
}
